// Package term turns typed field values into byte strings whose
// lexicographic order matches the natural order of the values.
//
// Integers are always encoded at a fixed width of eight big-endian bytes so
// that bytes.Compare on two encodings gives the same answer as comparing the
// numbers. The encodings must stay stable for the lifetime of a segment:
// dictionary order depends on them.
package term

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// NumericWidth is the encoded size of every numeric term.
const NumericWidth = 8

const signBit = uint64(1) << 63

// Term is the encoded form of one field value. Terms are immutable.
type Term struct {
	field schema.Field
	typ   schema.FieldType
	bytes []byte
}

func FromU64(field schema.Field, v uint64) Term {
	return Term{field: field, typ: schema.U64, bytes: encodeSortable(v)}
}

func FromI64(field schema.Field, v int64) Term {
	return Term{field: field, typ: schema.I64, bytes: encodeSortable(I64ToSortable(v))}
}

func FromF64(field schema.Field, v float64) Term {
	return Term{field: field, typ: schema.F64, bytes: encodeSortable(F64ToSortable(v))}
}

// FromBytes copies b; the caller may reuse its slice afterwards.
func FromBytes(field schema.Field, b []byte) Term {
	return Term{field: field, typ: schema.Bytes, bytes: bytes.Clone(nonNil(b))}
}

// FromText builds a term from an already analyzed token.
func FromText(field schema.Field, s string) Term {
	return Term{field: field, typ: schema.Text, bytes: []byte(s)}
}

// FromSortable builds a numeric term from its sortable uint64 form.
func FromSortable(field schema.Field, typ schema.FieldType, v uint64) Term {
	return Term{field: field, typ: typ, bytes: encodeSortable(v)}
}

// FromEncoded wraps bytes read back from a dictionary.
func FromEncoded(field schema.Field, typ schema.FieldType, b []byte) Term {
	return Term{field: field, typ: typ, bytes: b}
}

// Encode converts v to a term for a field of the given type.
func Encode(field schema.Field, typ schema.FieldType, v schema.Value) (Term, error) {
	if v.Type != typ {
		return Term{}, apperrors.SchemaMismatchf("field %d expects %s, got %s", field, typ, v.Type)
	}
	switch typ {
	case schema.U64:
		return FromU64(field, v.U64), nil
	case schema.I64:
		return FromI64(field, v.I64), nil
	case schema.F64:
		return FromF64(field, v.F64), nil
	case schema.Bytes:
		return FromBytes(field, v.Bytes), nil
	case schema.Text:
		return FromText(field, v.Text), nil
	default:
		return Term{}, apperrors.SchemaMismatchf("field %d has unsupported type %s", field, typ)
	}
}

func (t Term) Field() schema.Field { return t.field }
func (t Term) Type() schema.FieldType { return t.typ }

// Bytes returns the encoded form. The slice must not be modified.
func (t Term) Bytes() []byte { return t.bytes }

// AsBytes decodes a bytes or text term.
func (t Term) AsBytes() ([]byte, bool) {
	if t.typ != schema.Bytes && t.typ != schema.Text {
		return nil, false
	}
	return bytes.Clone(t.bytes), true
}

func (t Term) AsText() (string, bool) {
	if t.typ != schema.Text && t.typ != schema.Bytes {
		return "", false
	}
	return string(t.bytes), true
}

// Sortable returns the uint64 form of a numeric term.
func (t Term) Sortable() (uint64, bool) {
	if !t.typ.Numeric() || len(t.bytes) != NumericWidth {
		return 0, false
	}
	return binary.BigEndian.Uint64(t.bytes), true
}

func (t Term) AsU64() (uint64, bool) {
	if t.typ != schema.U64 {
		return 0, false
	}
	return t.Sortable()
}

func (t Term) AsI64() (int64, bool) {
	if t.typ != schema.I64 {
		return 0, false
	}
	v, ok := t.Sortable()
	return SortableToI64(v), ok
}

func (t Term) AsF64() (float64, bool) {
	if t.typ != schema.F64 {
		return 0, false
	}
	v, ok := t.Sortable()
	return SortableToF64(v), ok
}

// Compare orders two terms of the same field by their encodings.
func Compare(a, b Term) int {
	return bytes.Compare(a.bytes, b.bytes)
}

func (t Term) Equal(other Term) bool {
	return t.field == other.field && t.typ == other.typ && bytes.Equal(t.bytes, other.bytes)
}

func (t Term) String() string {
	switch t.typ {
	case schema.U64:
		v, _ := t.AsU64()
		return fmt.Sprintf("%d:%d", t.field, v)
	case schema.I64:
		v, _ := t.AsI64()
		return fmt.Sprintf("%d:%d", t.field, v)
	case schema.F64:
		v, _ := t.AsF64()
		return fmt.Sprintf("%d:%g", t.field, v)
	case schema.Text:
		return fmt.Sprintf("%d:%q", t.field, t.bytes)
	default:
		return fmt.Sprintf("%d:%x", t.field, t.bytes)
	}
}

// I64ToSortable flips the sign bit so negative numbers sort first.
func I64ToSortable(v int64) uint64 {
	return uint64(v) ^ signBit
}

func SortableToI64(v uint64) int64 {
	return int64(v ^ signBit)
}

// F64ToSortable maps IEEE-754 bits onto an order-preserving uint64:
// positives get the sign bit set, negatives get every bit flipped. -0 maps
// like +0 so equal values share one term.
func F64ToSortable(v float64) uint64 {
	if v == 0 {
		v = 0
	}
	bits := math.Float64bits(v)
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

func SortableToF64(v uint64) float64 {
	if v&signBit != 0 {
		return math.Float64frombits(v &^ signBit)
	}
	return math.Float64frombits(^v)
}

// ValueToSortable maps a numeric value onto the uint64 that its term encodes.
func ValueToSortable(v schema.Value) (uint64, bool) {
	switch v.Type {
	case schema.U64:
		return v.U64, true
	case schema.I64:
		return I64ToSortable(v.I64), true
	case schema.F64:
		return F64ToSortable(v.F64), true
	default:
		return 0, false
	}
}

// SortableToValue is the inverse of ValueToSortable.
func SortableToValue(typ schema.FieldType, v uint64) schema.Value {
	switch typ {
	case schema.I64:
		return schema.I64Value(SortableToI64(v))
	case schema.F64:
		return schema.F64Value(SortableToF64(v))
	default:
		return schema.U64Value(v)
	}
}

func encodeSortable(v uint64) []byte {
	b := make([]byte, NumericWidth)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
