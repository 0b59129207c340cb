// Package query turns field predicates into per-segment document streams.
//
// Range predicates have two physical strategies. The inverted strategy
// binary-searches the sorted term dictionary and unions the postings of the
// terms in range; its cost follows the number of matching terms. The
// columnar strategy scans the FAST column of every document; its cost
// follows the segment size. Both must produce the same documents.
package query

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// DocIterator is a lazy stream of ascending segment-local doc ids.
type DocIterator = segment.DocIterator

// Query produces the matching documents of one segment. Implementations
// hold no per-execution state, so one Query may run on many segments and
// goroutines at once.
type Query interface {
	Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error)
	String() string
}

// Strategy picks the physical plan of a range query.
type Strategy int

const (
	StrategyAuto Strategy = iota
	StrategyInverted
	StrategyColumnar
)

func (s Strategy) String() string {
	switch s {
	case StrategyInverted:
		return "inverted"
	case StrategyColumnar:
		return "columnar"
	default:
		return "auto"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return StrategyAuto, nil
	case "inverted":
		return StrategyInverted, nil
	case "columnar", "fast":
		return StrategyColumnar, nil
	default:
		return StrategyAuto, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown strategy %q", s)
	}
}

// NewRangeQuery plans a range query on field. StrategyAuto prefers the
// inverted index when the field is INDEXED and falls back to the FAST
// column otherwise.
func NewRangeQuery(s *schema.Schema, field schema.Field, lower, upper term.Bound, strategy Strategy, opts ...ColumnarOption) (Query, error) {
	entry, err := fieldEntry(s, field)
	if err != nil {
		return nil, err
	}
	if strategy == StrategyAuto {
		switch {
		case entry.Options.Has(schema.Indexed):
			strategy = StrategyInverted
		case entry.Options.Has(schema.Fast):
			strategy = StrategyColumnar
		default:
			return nil, apperrors.SchemaMismatchf("field %q is neither INDEXED nor FAST", entry.Name)
		}
	}
	if strategy == StrategyInverted {
		return NewInvertedRangeQuery(s, field, lower, upper)
	}
	return NewColumnarRangeQuery(s, field, lower, upper, opts...)
}

func fieldEntry(s *schema.Schema, field schema.Field) (schema.FieldEntry, error) {
	if !s.Has(field) {
		return schema.FieldEntry{}, fmt.Errorf("field %d: %w", field, apperrors.ErrFieldNotFound)
	}
	return s.Entry(field), nil
}

// checkBounds verifies that every bounded side targets field with its
// declared type.
func checkBounds(entry schema.FieldEntry, field schema.Field, bounds ...term.Bound) error {
	for _, b := range bounds {
		if b.IsUnbounded() {
			continue
		}
		if b.Term.Field() != field {
			return apperrors.SchemaMismatchf("bound targets field %d, query targets %q", b.Term.Field(), entry.Name)
		}
		if b.Term.Type() != entry.Type {
			return apperrors.SchemaMismatchf("field %q is %s, bound is %s", entry.Name, entry.Type, b.Term.Type())
		}
	}
	return nil
}

func formatRange(name string, lower, upper term.Bound) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte(':')
	switch lower.Kind {
	case term.KindIncluded:
		sb.WriteByte('[')
		sb.WriteString(formatTerm(lower.Term))
	case term.KindExcluded:
		sb.WriteByte('{')
		sb.WriteString(formatTerm(lower.Term))
	default:
		sb.WriteString("[*")
	}
	sb.WriteString(" TO ")
	switch upper.Kind {
	case term.KindIncluded:
		sb.WriteString(formatTerm(upper.Term))
		sb.WriteByte(']')
	case term.KindExcluded:
		sb.WriteString(formatTerm(upper.Term))
		sb.WriteByte('}')
	default:
		sb.WriteString("*]")
	}
	return sb.String()
}

func formatTerm(t term.Term) string {
	switch t.Type() {
	case schema.U64:
		v, _ := t.AsU64()
		return strconv.FormatUint(v, 10)
	case schema.I64:
		v, _ := t.AsI64()
		return strconv.FormatInt(v, 10)
	case schema.F64:
		v, _ := t.AsF64()
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		s, _ := t.AsText()
		return strconv.Quote(s)
	}
}
