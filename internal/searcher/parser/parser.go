// Package parser turns query strings into executable queries.
//
// Grammar:
//
//	query   := clause { [AND | OR] clause }
//	clause  := [NOT | - | +] (term | range | *)
//	term    := field ":" value
//	range   := field ":" ("[" | "{") bound " TO " bound ("]" | "}") [@inverted | @columnar]
//	bound   := value | *
//
// Values may be double quoted. Adjacent clauses default to AND; a single OR
// anywhere turns the plain clauses into alternatives, as the earlier
// keyword parser did.
package parser

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

// QueryPlan is the parsed form of a query string.
type QueryPlan struct {
	Query    query.Query
	Type     QueryType
	Clauses  int
	RawQuery string
}

type options struct {
	strategy  query.Strategy
	skipIndex bool
}

type Option func(*options)

// WithStrategy sets the strategy of ranges that carry no @ suffix.
func WithStrategy(st query.Strategy) Option {
	return func(o *options) { o.strategy = st }
}

// WithSkipIndex toggles the block min/max index for columnar ranges.
func WithSkipIndex(enabled bool) Option {
	return func(o *options) { o.skipIndex = enabled }
}

// Parse builds a plan for q against s.
func Parse(s *schema.Schema, q string, opts ...Option) (*QueryPlan, error) {
	o := options{strategy: query.StrategyAuto, skipIndex: true}
	for _, opt := range opts {
		opt(&o)
	}
	plan := &QueryPlan{Type: QueryAND, RawQuery: q}
	toks, err := lex(q)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, invalid("empty query")
	}

	var clauses []query.Clause
	negate := false
	for _, tok := range toks {
		switch strings.ToUpper(tok) {
		case "AND":
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			negate = true
			continue
		}
		switch {
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			negate = true
			tok = tok[1:]
		case strings.HasPrefix(tok, "+") && len(tok) > 1:
			tok = tok[1:]
		}
		sub, err := parseClause(s, tok, o)
		if err != nil {
			return nil, err
		}
		o := query.Must
		if negate {
			o = query.MustNot
			negate = false
		}
		clauses = append(clauses, query.Clause{Occur: o, Query: sub})
	}
	if negate {
		return nil, invalid("NOT without a clause")
	}
	if plan.Type == QueryOR {
		for i := range clauses {
			if clauses[i].Occur == query.Must {
				clauses[i].Occur = query.Should
			}
		}
	}

	plan.Clauses = len(clauses)
	if len(clauses) == 1 && clauses[0].Occur != query.MustNot {
		plan.Query = clauses[0].Query
	} else {
		plan.Query = query.NewBooleanQuery(clauses...)
	}
	return plan, nil
}

// lex splits q on whitespace, keeping quoted strings and bracketed ranges
// together.
func lex(q string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	depth := 0
	quoted := false
	for _, r := range q {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		case unicode.IsSpace(r) && depth == 0:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if quoted {
		return nil, invalid("unterminated quote")
	}
	if depth != 0 {
		return nil, invalid("unbalanced range brackets")
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks, nil
}

func parseClause(s *schema.Schema, tok string, o options) (query.Query, error) {
	if tok == "*" {
		return query.AllQuery{}, nil
	}
	name, rest, ok := strings.Cut(tok, ":")
	if !ok || name == "" || rest == "" {
		return nil, invalid("clause %q is not field:value", tok)
	}
	field, err := s.Field(name)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrFieldNotFound, http.StatusBadRequest, "parsing query: unknown field %q", name)
	}
	entry := s.Entry(field)

	if rest[0] == '[' || rest[0] == '{' {
		return parseRange(s, field, entry, rest, o)
	}
	if rest == "*" {
		return query.NewRangeQuery(s, field, term.Unbounded(), term.Unbounded(), o.strategy, query.WithSkipIndex(o.skipIndex))
	}
	t, err := parseTerm(field, entry, unquote(rest))
	if err != nil {
		return nil, err
	}
	return query.NewTermQuery(s, t)
}

func parseRange(s *schema.Schema, field schema.Field, entry schema.FieldEntry, rest string, o options) (query.Query, error) {
	strategy := o.strategy
	if i := strings.LastIndexByte(rest, '@'); i > 0 && (rest[i-1] == ']' || rest[i-1] == '}') {
		var err error
		if strategy, err = query.ParseStrategy(rest[i+1:]); err != nil {
			return nil, err
		}
		rest = rest[:i]
	}
	opening, closing := rest[0], rest[len(rest)-1]
	if closing != ']' && closing != '}' {
		return nil, invalid("range %q is not closed", rest)
	}
	body := rest[1 : len(rest)-1]
	lo, hi, ok := strings.Cut(body, " TO ")
	if !ok {
		return nil, invalid("range %q needs lower TO upper", rest)
	}
	lower, err := parseBound(field, entry, strings.TrimSpace(lo), opening == '[')
	if err != nil {
		return nil, err
	}
	upper, err := parseBound(field, entry, strings.TrimSpace(hi), closing == ']')
	if err != nil {
		return nil, err
	}
	return query.NewRangeQuery(s, field, lower, upper, strategy, query.WithSkipIndex(o.skipIndex))
}

func parseBound(field schema.Field, entry schema.FieldEntry, v string, inclusive bool) (term.Bound, error) {
	if v == "*" {
		return term.Unbounded(), nil
	}
	v = unquote(v)
	if entry.Type == schema.Text {
		v = normalizeBound(v)
	}
	t, err := parseTerm(field, entry, v)
	if err != nil {
		return term.Bound{}, err
	}
	if inclusive {
		return term.Included(t), nil
	}
	return term.Excluded(t), nil
}

func parseTerm(field schema.Field, entry schema.FieldEntry, v string) (term.Term, error) {
	switch entry.Type {
	case schema.U64:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return term.Term{}, invalid("field %q: %q is not an unsigned integer", entry.Name, v)
		}
		return term.FromU64(field, n), nil
	case schema.I64:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return term.Term{}, invalid("field %q: %q is not an integer", entry.Name, v)
		}
		return term.FromI64(field, n), nil
	case schema.F64:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			return term.Term{}, invalid("field %q: %q is not a number", entry.Name, v)
		}
		return term.FromF64(field, f), nil
	case schema.Bytes:
		return term.FromBytes(field, []byte(v)), nil
	default:
		return term.FromText(field, v), nil
	}
}

// normalizeBound analyzes a text bound the way indexing analyzes tokens.
// Words the analyzer drops (stop words, very short words) are only
// lowercased.
func normalizeBound(v string) string {
	if word, ok := tokenizer.Default().Normalize(v); ok {
		return word
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func invalid(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "parsing query: %s", fmt.Sprintf(format, args...))
}
