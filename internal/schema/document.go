package schema

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// Value is one typed field value. Only the member matching Type is set.
type Value struct {
	Type  FieldType `json:"type"`
	U64   uint64    `json:"u64,omitempty"`
	I64   int64     `json:"i64,omitempty"`
	F64   float64   `json:"f64,omitempty"`
	Bytes []byte    `json:"bytes,omitempty"`
	Text  string    `json:"text,omitempty"`
}

func TextValue(s string) Value { return Value{Type: Text, Text: s} }
func U64Value(v uint64) Value { return Value{Type: U64, U64: v} }
func I64Value(v int64) Value { return Value{Type: I64, I64: v} }
func F64Value(v float64) Value { return Value{Type: F64, F64: v} }
func BytesValue(b []byte) Value { return Value{Type: Bytes, Bytes: b} }

// Interface returns the Go value held, for rendering.
func (v Value) Interface() any {
	switch v.Type {
	case Text:
		return v.Text
	case U64:
		return v.U64
	case I64:
		return v.I64
	case F64:
		return v.F64
	case Bytes:
		return v.Bytes
	default:
		return nil
	}
}

// FieldValue pairs a value with the field it belongs to.
type FieldValue struct {
	Field Field `json:"field"`
	Value Value `json:"value"`
}

// Document is an ordered multiset of field values. Adding the same field
// twice makes it multivalued.
type Document struct {
	FieldValues []FieldValue `json:"fields"`
}

func (d *Document) Add(f Field, v Value) {
	d.FieldValues = append(d.FieldValues, FieldValue{Field: f, Value: v})
}

func (d *Document) AddText(f Field, s string) { d.Add(f, TextValue(s)) }
func (d *Document) AddU64(f Field, v uint64) { d.Add(f, U64Value(v)) }
func (d *Document) AddI64(f Field, v int64) { d.Add(f, I64Value(v)) }
func (d *Document) AddF64(f Field, v float64) { d.Add(f, F64Value(v)) }
func (d *Document) AddBytes(f Field, b []byte) { d.Add(f, BytesValue(b)) }

// Get returns every value of f in insertion order.
func (d *Document) Get(f Field) []Value {
	var out []Value
	for _, fv := range d.FieldValues {
		if fv.Field == f {
			out = append(out, fv.Value)
		}
	}
	return out
}

// Validate checks every value against the field it targets.
func (d *Document) Validate(s *Schema) error {
	for i, fv := range d.FieldValues {
		if !s.Has(fv.Field) {
			return apperrors.SchemaMismatchf("value %d targets unknown field %d", i, fv.Field)
		}
		entry := s.Entry(fv.Field)
		if entry.Type != fv.Value.Type {
			return apperrors.SchemaMismatchf("field %q expects %s, got %s", entry.Name, entry.Type, fv.Value.Type)
		}
		if fv.Value.Type == F64 && (math.IsNaN(fv.Value.F64) || math.IsInf(fv.Value.F64, 0)) {
			return apperrors.SchemaMismatchf("field %q: %v is not a finite number", entry.Name, fv.Value.F64)
		}
	}
	return nil
}

// Stored keeps only the values of STORED fields.
func (d *Document) Stored(s *Schema) Document {
	var out Document
	for _, fv := range d.FieldValues {
		if s.Entry(fv.Field).Options.Has(Stored) {
			out.FieldValues = append(out.FieldValues, fv)
		}
	}
	return out
}

// ToJSON renders the document as {"name": [values...]}. Bytes render as
// base64 strings.
func (d *Document) ToJSON(s *Schema) (string, error) {
	named := make(map[string][]any)
	for _, fv := range d.FieldValues {
		if !s.Has(fv.Field) {
			return "", fmt.Errorf("rendering document: %w: field %d", apperrors.ErrFieldNotFound, fv.Field)
		}
		name := s.Entry(fv.Field).Name
		named[name] = append(named[name], fv.Value.Interface())
	}
	data, err := json.Marshal(named)
	if err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return string(data), nil
}
