// Package consumer turns Kafka document messages into schema documents and
// feeds them to the indexing engine. A message value is a JSON object
// mapping field names to a value or an array of values:
//
//	{"timestamp": 1700000000, "title": ["first", "second"], "key": "AAEC"}
//
// Numbers are parsed by the target field's type, bytes fields take base64
// strings and text fields take strings. Commits are left to the engine's
// commit loop.
package consumer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
)

// Sink accepts decoded documents.
type Sink interface {
	AddDocument(doc schema.Document) error
}

// Handler decodes each message against s and adds it to sink.
func Handler(s *schema.Schema, sink Sink) kafka.Handler {
	log := logger.WithComponent("index-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		doc, err := Decode(s, msg.Value)
		if err != nil {
			return fmt.Errorf("message %d/%d: %w", msg.Partition, msg.Offset, err)
		}
		if err := sink.AddDocument(doc); err != nil {
			return fmt.Errorf("message %d/%d: indexing: %w", msg.Partition, msg.Offset, err)
		}
		if log.Enabled(ctx, slog.LevelDebug) {
			log.Debug("document indexed", "key", string(msg.Key), "values", len(doc.FieldValues))
		}
		return nil
	}
}

// Decode parses one JSON document. Unknown fields and values that do not
// fit the field type are rejected. Null values are skipped.
func Decode(s *schema.Schema, data []byte) (schema.Document, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return schema.Document{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding document: %v", err)
	}

	var doc schema.Document
	// Field order keeps decoding deterministic.
	for i, entry := range s.Fields() {
		msg, ok := raw[entry.Name]
		if !ok {
			continue
		}
		delete(raw, entry.Name)
		values, err := decodeValues(entry, msg)
		if err != nil {
			return schema.Document{}, err
		}
		for _, v := range values {
			doc.Add(schema.Field(i), v)
		}
	}
	if len(raw) > 0 {
		names := slices.Sorted(maps.Keys(raw))
		return schema.Document{}, apperrors.Newf(apperrors.ErrFieldNotFound, http.StatusBadRequest, "decoding document: unknown field %q", names[0])
	}
	return doc, nil
}

func decodeValues(entry schema.FieldEntry, msg json.RawMessage) ([]schema.Value, error) {
	var items []any
	if err := unmarshalNumber(msg, &items); err != nil {
		var single any
		if err := unmarshalNumber(msg, &single); err != nil {
			return nil, mismatch(entry, string(msg))
		}
		items = []any{single}
	}
	out := make([]schema.Value, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		v, err := decodeValue(entry, item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(entry schema.FieldEntry, item any) (schema.Value, error) {
	switch entry.Type {
	case schema.U64, schema.I64, schema.F64:
		n, ok := item.(json.Number)
		if !ok {
			return schema.Value{}, mismatch(entry, item)
		}
		return decodeNumber(entry, n)
	case schema.Bytes:
		str, ok := item.(string)
		if !ok {
			return schema.Value{}, mismatch(entry, item)
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return schema.Value{}, apperrors.SchemaMismatchf("field %q: %q is not base64", entry.Name, str)
		}
		return schema.BytesValue(b), nil
	default:
		str, ok := item.(string)
		if !ok {
			return schema.Value{}, mismatch(entry, item)
		}
		return schema.TextValue(str), nil
	}
}

func decodeNumber(entry schema.FieldEntry, n json.Number) (schema.Value, error) {
	switch entry.Type {
	case schema.U64:
		v, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return schema.Value{}, mismatch(entry, n)
		}
		return schema.U64Value(v), nil
	case schema.I64:
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return schema.Value{}, mismatch(entry, n)
		}
		return schema.I64Value(v), nil
	default:
		v, err := n.Float64()
		if err != nil || math.IsInf(v, 0) {
			return schema.Value{}, mismatch(entry, n)
		}
		return schema.F64Value(v), nil
	}
}

func unmarshalNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func mismatch(entry schema.FieldEntry, v any) error {
	return apperrors.SchemaMismatchf("field %q expects %s, got %v", entry.Name, entry.Type, v)
}
