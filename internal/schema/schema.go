// Package schema declares the typed fields of an index and the documents
// stored in it. A Schema is built once and never mutated afterwards.
package schema

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// Field identifies a field by its position in the schema.
type Field uint32

// FieldType is the value kind a field holds.
type FieldType uint8

const (
	Text FieldType = iota + 1
	U64
	I64
	F64
	Bytes
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "text"
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F64:
		return "f64"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Numeric reports whether values of this type map onto a sortable uint64.
func (t FieldType) Numeric() bool {
	return t == U64 || t == I64 || t == F64
}

// Options are the per-field flags.
type Options uint8

const (
	// Stored fields are returned verbatim by Searcher.Doc.
	Stored Options = 1 << iota
	// Indexed fields get a term dictionary and postings.
	Indexed
	// Fast fields get a dense per-document column.
	Fast
)

// TEXT is the usual option set for a tokenized body field.
const TEXT = Indexed

func (o Options) Has(flag Options) bool { return o&flag == flag }

func (o Options) String() string {
	var parts []string
	if o.Has(Stored) {
		parts = append(parts, "STORED")
	}
	if o.Has(Indexed) {
		parts = append(parts, "INDEXED")
	}
	if o.Has(Fast) {
		parts = append(parts, "FAST")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// FieldEntry describes one declared field.
type FieldEntry struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options Options   `json:"options"`
}

// Schema is the immutable list of fields of an index.
type Schema struct {
	fields []FieldEntry
	byName map[string]Field
}

// Builder accumulates field declarations.
type Builder struct {
	fields []FieldEntry
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(name string, t FieldType, opts Options) Field {
	b.fields = append(b.fields, FieldEntry{Name: name, Type: t, Options: opts})
	return Field(len(b.fields) - 1)
}

func (b *Builder) AddTextField(name string, opts Options) Field { return b.add(name, Text, opts) }
func (b *Builder) AddU64Field(name string, opts Options) Field { return b.add(name, U64, opts) }
func (b *Builder) AddI64Field(name string, opts Options) Field { return b.add(name, I64, opts) }
func (b *Builder) AddF64Field(name string, opts Options) Field { return b.add(name, F64, opts) }
func (b *Builder) AddBytesField(name string, opts Options) Field { return b.add(name, Bytes, opts) }

// Build validates the declarations and freezes them.
func (b *Builder) Build() (*Schema, error) {
	return newSchema(b.fields)
}

// MustBuild is Build for static schemas in commands and tests.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func newSchema(entries []FieldEntry) (*Schema, error) {
	s := &Schema{
		fields: make([]FieldEntry, len(entries)),
		byName: make(map[string]Field, len(entries)),
	}
	copy(s.fields, entries)
	for i, e := range s.fields {
		if e.Name == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "field %d has an empty name", i)
		}
		if _, dup := s.byName[e.Name]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "duplicate field %q", e.Name)
		}
		if e.Type < Text || e.Type > Bytes {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "field %q has unknown type %d", e.Name, e.Type)
		}
		if e.Type == Text && e.Options.Has(Fast) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "text field %q cannot be FAST, use a bytes field", e.Name)
		}
		s.byName[e.Name] = Field(i)
	}
	return s, nil
}

// Field resolves a field name.
func (s *Schema) Field(name string) (Field, error) {
	f, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrFieldNotFound, name)
	}
	return f, nil
}

// Entry returns the declaration of f. It panics on a field from another schema.
func (s *Schema) Entry(f Field) FieldEntry {
	return s.fields[f]
}

// Has reports whether f belongs to this schema.
func (s *Schema) Has(f Field) bool {
	return int(f) < len(s.fields)
}

func (s *Schema) NumFields() int {
	return len(s.fields)
}

// Fields returns a copy of all declarations in field order.
func (s *Schema) Fields() []FieldEntry {
	out := make([]FieldEntry, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.fields)
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var entries []FieldEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	built, err := newSchema(entries)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}

// Equal reports whether two schemas declare the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func (t FieldType) MarshalText() ([]byte, error) {
	if t < Text || t > Bytes {
		return nil, fmt.Errorf("unknown field type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	for c := Text; c <= Bytes; c++ {
		if strings.EqualFold(string(b), c.String()) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown field type %q", b)
}

func (o Options) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText parses the "|"-separated form of String.
func (o *Options) UnmarshalText(b []byte) error {
	var out Options
	for _, part := range strings.Split(string(b), "|") {
		switch strings.ToUpper(strings.TrimSpace(part)) {
		case "STORED":
			out |= Stored
		case "INDEXED", "TEXT":
			out |= Indexed
		case "FAST":
			out |= Fast
		case "NONE", "":
		default:
			return fmt.Errorf("unknown field option %q", part)
		}
	}
	*o = out
	return nil
}
