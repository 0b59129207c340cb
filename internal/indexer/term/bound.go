package term

import (
	"bytes"
	"fmt"
	"math"
)

// BoundKind says how one edge of an interval treats its term.
type BoundKind uint8

const (
	KindUnbounded BoundKind = iota
	KindIncluded
	KindExcluded
)

// Bound is one edge of a query interval.
type Bound struct {
	Kind BoundKind
	Term Term
}

func Included(t Term) Bound { return Bound{Kind: KindIncluded, Term: t} }
func Excluded(t Term) Bound { return Bound{Kind: KindExcluded, Term: t} }
func Unbounded() Bound { return Bound{Kind: KindUnbounded} }

func (b Bound) IsUnbounded() bool { return b.Kind == KindUnbounded }

// AboveLower reports whether key satisfies b used as a lower bound.
func (b Bound) AboveLower(key []byte) bool {
	switch b.Kind {
	case KindIncluded:
		return bytes.Compare(key, b.Term.bytes) >= 0
	case KindExcluded:
		return bytes.Compare(key, b.Term.bytes) > 0
	default:
		return true
	}
}

// BelowUpper reports whether key satisfies b used as an upper bound.
func (b Bound) BelowUpper(key []byte) bool {
	switch b.Kind {
	case KindIncluded:
		return bytes.Compare(key, b.Term.bytes) <= 0
	case KindExcluded:
		return bytes.Compare(key, b.Term.bytes) < 0
	default:
		return true
	}
}

// SortableRange is a closed interval over sortable uint64 values.
// Empty is set when no value can satisfy the original bounds.
type SortableRange struct {
	Lo, Hi uint64
	Empty  bool
}

func (r SortableRange) Contains(v uint64) bool {
	return !r.Empty && v >= r.Lo && v <= r.Hi
}

// NormalizeSortable turns a pair of numeric bounds into the tightest closed
// interval. The numeric term space is discrete, so Excluded(v) on the lower
// side becomes Included(v+1) and on the upper side Included(v-1).
func NormalizeSortable(lower, upper Bound) (SortableRange, error) {
	r := SortableRange{Lo: 0, Hi: math.MaxUint64}
	switch lower.Kind {
	case KindIncluded, KindExcluded:
		v, ok := lower.Term.Sortable()
		if !ok {
			return r, fmt.Errorf("lower bound %s is not numeric", lower.Term)
		}
		if lower.Kind == KindExcluded {
			if v == math.MaxUint64 {
				return SortableRange{Empty: true}, nil
			}
			v++
		}
		r.Lo = v
	}
	switch upper.Kind {
	case KindIncluded, KindExcluded:
		v, ok := upper.Term.Sortable()
		if !ok {
			return r, fmt.Errorf("upper bound %s is not numeric", upper.Term)
		}
		if upper.Kind == KindExcluded {
			if v == 0 {
				return SortableRange{Empty: true}, nil
			}
			v--
		}
		r.Hi = v
	}
	if r.Lo > r.Hi {
		return SortableRange{Empty: true}, nil
	}
	return r, nil
}
