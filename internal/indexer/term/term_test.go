package term

import (
	"bytes"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU64OrderPreserved(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		a, b := rng.Uint64(), rng.Uint64()
		assertSameOrder(t, cmpU64(a, b), FromU64(0, a), FromU64(0, b))
	}
	edges := []uint64{0, 1, 255, 256, 1 << 32, math.MaxUint64 - 1, math.MaxUint64}
	for i := 1; i < len(edges); i++ {
		assert.Negative(t, Compare(FromU64(0, edges[i-1]), FromU64(0, edges[i])))
	}
}

func TestI64OrderPreserved(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 5000; i++ {
		a, b := int64(rng.Uint64()), int64(rng.Uint64())
		assertSameOrder(t, cmpI64(a, b), FromI64(0, a), FromI64(0, b))
	}
	edges := []int64{math.MinInt64, -1 << 40, -2, -1, 0, 1, 2, 1 << 40, math.MaxInt64}
	for i := 1; i < len(edges); i++ {
		assert.Negative(t, Compare(FromI64(0, edges[i-1]), FromI64(0, edges[i])),
			"%d should sort before %d", edges[i-1], edges[i])
	}
}

func TestF64OrderPreserved(t *testing.T) {
	values := []float64{math.Inf(-1), -1e300, -2.5, -1, -math.SmallestNonzeroFloat64, 0,
		math.SmallestNonzeroFloat64, 0.5, 1, 3.75, 1e300, math.Inf(1)}
	for i := 1; i < len(values); i++ {
		assert.Negative(t, Compare(FromF64(0, values[i-1]), FromF64(0, values[i])),
			"%g should sort before %g", values[i-1], values[i])
	}
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 5000; i++ {
		a := (rng.Float64() - 0.5) * 1e6
		b := (rng.Float64() - 0.5) * 1e6
		assertSameOrder(t, cmpF64(a, b), FromF64(0, a), FromF64(0, b))
	}
}

func TestF64NegativeZeroEqualsZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	assert.True(t, FromF64(0, negZero).Equal(FromF64(0, 0)))
	assert.Equal(t, F64ToSortable(0), F64ToSortable(negZero))
	assert.Negative(t, Compare(FromF64(0, -math.SmallestNonzeroFloat64), FromF64(0, negZero)))
}

func TestNumericEncodingIsFixedWidth(t *testing.T) {
	for _, tm := range []Term{FromU64(0, 0), FromU64(0, math.MaxUint64), FromI64(0, -1), FromF64(0, 2.5)} {
		assert.Len(t, tm.Bytes(), NumericWidth)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	u, ok := FromU64(1, 123456789).AsU64()
	require.True(t, ok)
	assert.Equal(t, uint64(123456789), u)

	i, ok := FromI64(1, -42).AsI64()
	require.True(t, ok)
	assert.Equal(t, int64(-42), i)

	f, ok := FromF64(1, -3.25).AsF64()
	require.True(t, ok)
	assert.Equal(t, -3.25, f)

	raw := []byte("Some bytes here 0")
	b, ok := FromBytes(2, raw).AsBytes()
	require.True(t, ok)
	assert.Equal(t, raw, b)

	s, ok := FromText(3, "prometheu").AsText()
	require.True(t, ok)
	assert.Equal(t, "prometheu", s)

	_, ok = FromBytes(2, raw).AsU64()
	assert.False(t, ok)
}

func TestBytesRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < 500; i++ {
		b := make([]byte, rng.IntN(32))
		for j := range b {
			b[j] = byte(rng.UintN(256))
		}
		got, ok := FromBytes(0, b).AsBytes()
		require.True(t, ok)
		assert.True(t, bytes.Equal(b, got))
	}
}

func TestEmptyBytesSortFirst(t *testing.T) {
	empty := FromBytes(0, nil)
	assert.NotNil(t, empty.Bytes())
	assert.Negative(t, Compare(empty, FromBytes(0, []byte{0})))
	assert.Negative(t, Compare(FromBytes(0, []byte("ab")), FromBytes(0, []byte("abc"))))
}

func TestFromBytesCopiesInput(t *testing.T) {
	buf := []byte("abc")
	tm := FromBytes(0, buf)
	buf[0] = 'z'
	assert.Equal(t, []byte("abc"), tm.Bytes())
}

func TestEncodeRejectsWrongType(t *testing.T) {
	_, err := Encode(0, schema.U64, schema.I64Value(3))
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)

	tm, err := Encode(0, schema.I64, schema.I64Value(-3))
	require.NoError(t, err)
	assert.True(t, tm.Equal(FromI64(0, -3)))
}

func TestSortedEncodingsMatchSortedValues(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	values := make([]int64, 1000)
	terms := make([]Term, len(values))
	for i := range values {
		values[i] = rng.Int64N(2000) - 1000
		terms[i] = FromI64(0, values[i])
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	sort.Slice(terms, func(i, j int) bool { return Compare(terms[i], terms[j]) < 0 })
	for i := range values {
		got, _ := terms[i].AsI64()
		assert.Equal(t, values[i], got)
	}
}

func TestNormalizeSortable(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper Bound
		want         SortableRange
	}{
		{"closed", Included(FromU64(0, 10)), Included(FromU64(0, 20)), SortableRange{Lo: 10, Hi: 20}},
		{"half open", Included(FromU64(0, 10)), Excluded(FromU64(0, 20)), SortableRange{Lo: 10, Hi: 19}},
		{"open lower", Excluded(FromU64(0, 10)), Unbounded(), SortableRange{Lo: 11, Hi: math.MaxUint64}},
		{"unbounded", Unbounded(), Unbounded(), SortableRange{Lo: 0, Hi: math.MaxUint64}},
		{"inverted", Included(FromU64(0, 20)), Included(FromU64(0, 10)), SortableRange{Empty: true}},
		{"exclusive point", Excluded(FromU64(0, 5)), Excluded(FromU64(0, 6)), SortableRange{Empty: true}},
		{"exclude max", Excluded(FromU64(0, math.MaxUint64)), Unbounded(), SortableRange{Empty: true}},
		{"exclude zero", Unbounded(), Excluded(FromU64(0, 0)), SortableRange{Empty: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSortable(tt.lower, tt.upper)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeSortable(Included(FromBytes(0, []byte("a"))), Unbounded())
	assert.Error(t, err)
}

func TestBoundPredicates(t *testing.T) {
	lo := Included(FromBytes(0, []byte("b")))
	hi := Excluded(FromBytes(0, []byte("d")))
	assert.False(t, lo.AboveLower([]byte("a")))
	assert.True(t, lo.AboveLower([]byte("b")))
	assert.True(t, hi.BelowUpper([]byte("c")))
	assert.False(t, hi.BelowUpper([]byte("d")))
	assert.True(t, Unbounded().AboveLower(nil))
}

func assertSameOrder(t *testing.T, want int, a, b Term) {
	t.Helper()
	got := Compare(a, b)
	switch {
	case want < 0:
		assert.Negative(t, got)
	case want > 0:
		assert.Positive(t, got)
	default:
		assert.Zero(t, got)
	}
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpF64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
