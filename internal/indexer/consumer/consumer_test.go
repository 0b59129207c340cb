package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *schema.Schema {
	b := schema.NewBuilder()
	b.AddU64Field("timestamp", schema.Indexed|schema.Fast)
	b.AddI64Field("delta", schema.Fast)
	b.AddF64Field("price", schema.Indexed)
	b.AddBytesField("key", schema.Indexed|schema.Stored)
	b.AddTextField("title", schema.TEXT|schema.Stored)
	return b.MustBuild()
}

func TestDecode(t *testing.T) {
	s := testSchema()
	doc, err := Decode(s, []byte(`{
		"title": ["a", "b"],
		"timestamp": 18446744073709551615,
		"delta": -3,
		"price": 2.5,
		"key": "AAEC"
	}`))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(s))

	assert.Equal(t, []schema.Value{schema.U64Value(18446744073709551615)}, doc.Get(0))
	assert.Equal(t, []schema.Value{schema.I64Value(-3)}, doc.Get(1))
	assert.Equal(t, []schema.Value{schema.F64Value(2.5)}, doc.Get(2))
	assert.Equal(t, []schema.Value{schema.BytesValue([]byte{0, 1, 2})}, doc.Get(3))
	assert.Equal(t, []schema.Value{schema.TextValue("a"), schema.TextValue("b")}, doc.Get(4))
}

func TestDecodeSkipsNulls(t *testing.T) {
	doc, err := Decode(testSchema(), []byte(`{"timestamp": null, "title": ["x", null]}`))
	require.NoError(t, err)
	assert.Len(t, doc.FieldValues, 1)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not json", `{"timestamp":`, apperrors.ErrInvalidInput},
		{"not an object", `[1, 2]`, apperrors.ErrInvalidInput},
		{"unknown field", `{"author": "x"}`, apperrors.ErrFieldNotFound},
		{"negative u64", `{"timestamp": -1}`, apperrors.ErrSchemaMismatch},
		{"fractional i64", `{"delta": 1.5}`, apperrors.ErrSchemaMismatch},
		{"string for number", `{"price": "2.5"}`, apperrors.ErrSchemaMismatch},
		{"bad base64", `{"key": "%%%"}`, apperrors.ErrSchemaMismatch},
		{"number for text", `{"title": 4}`, apperrors.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(testSchema(), []byte(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type sliceSink struct {
	docs []schema.Document
	err  error
}

func (s *sliceSink) AddDocument(doc schema.Document) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

func TestHandler(t *testing.T) {
	sink := &sliceSink{}
	h := Handler(testSchema(), sink)
	require.NoError(t, h(context.Background(), kafka.Message{Value: []byte(`{"timestamp": 5}`)}))
	assert.Len(t, sink.docs, 1)

	assert.ErrorIs(t, h(context.Background(), kafka.Message{Value: []byte(`{"nope": 5}`)}), apperrors.ErrFieldNotFound)

	sink.err = errors.New("closed")
	assert.ErrorIs(t, h(context.Background(), kafka.Message{Value: []byte(`{"timestamp": 6}`)}), sink.err)
}
