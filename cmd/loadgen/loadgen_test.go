package main

import (
	"bytes"
	"math/rand/v2"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestRandomRangeStaysInDomain(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	re := regexp.MustCompile(`^timestamp:\[(\d+) TO (\d+)\]@(inverted|columnar)$`)
	for i := 0; i < 200; i++ {
		m := re.FindStringSubmatch(randomRange(rng, 1000))
		require.NotNil(t, m)
		lo, _ := strconv.ParseUint(m[1], 10, 64)
		hi, _ := strconv.ParseUint(m[2], 10, 64)
		assert.LessOrEqual(t, lo, hi)
		assert.LessOrEqual(t, hi, uint64(1000))
	}
}

func TestSyntheticDocTimestamps(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	doc := syntheticDoc(rng, 42)
	assert.Equal(t, uint64(42), doc["timestamp"])
	assert.Contains(t, doc, "key")
}

func TestReport(t *testing.T) {
	stats := NewStats()
	stats.Record(3*time.Millisecond, 200, nil)
	stats.Record(5*time.Millisecond, 429, nil)
	var buf bytes.Buffer
	assert.True(t, printReport(&buf, stats, time.Second))
	assert.Contains(t, buf.String(), "Errors:          1")
	assert.Contains(t, buf.String(), "429: 1")

	buf.Reset()
	assert.False(t, printReport(&buf, NewStats(), time.Second))
}
