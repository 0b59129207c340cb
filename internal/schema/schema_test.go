package schema

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsFieldsInOrder(t *testing.T) {
	b := NewBuilder()
	title := b.AddTextField("title", TEXT|Stored)
	ts := b.AddU64Field("timestamp", Stored|Fast|Indexed)
	raw := b.AddBytesField("bytes", Indexed)
	s, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, Field(0), title)
	assert.Equal(t, Field(1), ts)
	assert.Equal(t, Field(2), raw)

	got, err := s.Field("timestamp")
	require.NoError(t, err)
	assert.Equal(t, ts, got)
	assert.Equal(t, "STORED|INDEXED|FAST", s.Entry(ts).Options.String())

	_, err = s.Field("missing")
	assert.ErrorIs(t, err, apperrors.ErrFieldNotFound)
}

func TestBuilderRejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder)
	}{
		{"duplicate", func(b *Builder) {
			b.AddU64Field("a", Fast)
			b.AddI64Field("a", Fast)
		}},
		{"empty name", func(b *Builder) { b.AddBytesField("", Indexed) }},
		{"fast text", func(b *Builder) { b.AddTextField("body", TEXT|Fast) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			_, err := b.Build()
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.AddTextField("title", TEXT|Stored)
	b.AddF64Field("price", Fast)
	s := b.MustBuild()

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Schema
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, s.Equal(&decoded))

	f, err := decoded.Field("price")
	require.NoError(t, err)
	assert.Equal(t, F64, decoded.Entry(f).Type)
}

func TestDocumentValidate(t *testing.T) {
	b := NewBuilder()
	ts := b.AddU64Field("timestamp", Fast)
	s := b.MustBuild()

	var ok Document
	ok.AddU64(ts, 5)
	assert.NoError(t, ok.Validate(s))

	var wrong Document
	wrong.AddI64(ts, -5)
	assert.ErrorIs(t, wrong.Validate(s), apperrors.ErrSchemaMismatch)

	var unknown Document
	unknown.AddU64(Field(7), 1)
	assert.ErrorIs(t, unknown.Validate(s), apperrors.ErrSchemaMismatch)
}

func TestDocumentValidateRejectsNonFiniteFloats(t *testing.T) {
	b := NewBuilder()
	price := b.AddF64Field("price", Indexed|Fast|Stored)
	s := b.MustBuild()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		var d Document
		d.AddF64(price, v)
		assert.ErrorIs(t, d.Validate(s), apperrors.ErrSchemaMismatch, "%v", v)
	}
	var finite Document
	finite.AddF64(price, -0.5)
	assert.NoError(t, finite.Validate(s))
}

func TestDocumentToJSONKeepsRepeatedValues(t *testing.T) {
	b := NewBuilder()
	title := b.AddTextField("title", TEXT|Stored)
	raw := b.AddBytesField("bytes", Indexed|Stored)
	body := b.AddTextField("body", TEXT)
	s := b.MustBuild()

	var doc Document
	doc.AddText(title, "Frankenstein")
	doc.AddText(title, "The Modern Prometheus")
	doc.AddText(body, "You will rejoice to hear")
	doc.AddBytes(raw, []byte("hi"))

	stored := doc.Stored(s)
	out, err := stored.ToJSON(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":["Frankenstein","The Modern Prometheus"],"bytes":["aGk="]}`, out)
	assert.Len(t, doc.Get(title), 2)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "timestamp", "type": "u64", "options": "INDEXED|FAST"},
		{"name": "body", "type": "text", "options": "text|stored"}
	]`), 0644))
	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, s.Fields(), 2)
	assert.Equal(t, FieldEntry{Name: "timestamp", Type: U64, Options: Indexed | Fast}, s.Fields()[0])
	assert.Equal(t, FieldEntry{Name: "body", Type: Text, Options: Indexed | Stored}, s.Fields()[1])

	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "x", "type": "u128", "options": "FAST"}]`), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)

	def, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, Events().Equal(def))
}
