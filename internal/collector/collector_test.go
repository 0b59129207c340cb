package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	c := NewCount()
	assert.Equal(t, 0, c.Finish())
	for i := uint32(0); i < 5; i++ {
		c.Collect(DocAddress{Doc: i}, 1)
	}
	assert.Equal(t, 5, c.Finish())
}

func TestTopKKeepsHighestScores(t *testing.T) {
	c := NewTopK(3)
	scores := []float32{0.5, 2, 1, 3, 0.1, 2}
	for i, s := range scores {
		c.Collect(DocAddress{Doc: uint32(i)}, s)
	}
	got := c.Finish()
	require.Len(t, got, 3)
	assert.Equal(t, float32(3), got[0].Score)
	assert.Equal(t, DocAddress{Doc: 3}, got[0].Address)
	// Equal scores: the smaller address wins.
	assert.Equal(t, DocAddress{Doc: 1}, got[1].Address)
	assert.Equal(t, DocAddress{Doc: 5}, got[2].Address)
}

func TestTopKUnscoredReturnsFirstAddresses(t *testing.T) {
	c := NewTopK(4)
	for seg := uint32(0); seg < 3; seg++ {
		for doc := uint32(0); doc < 3; doc++ {
			c.Collect(DocAddress{Segment: seg, Doc: doc}, 1)
		}
	}
	var addrs []DocAddress
	for _, sd := range c.Finish() {
		addrs = append(addrs, sd.Address)
	}
	assert.Equal(t, []DocAddress{{0, 0}, {0, 1}, {0, 2}, {1, 0}}, addrs)
}

func TestTopKZeroLimit(t *testing.T) {
	c := NewTopK(0)
	c.Collect(DocAddress{}, 1)
	assert.Empty(t, c.Finish())
}

func TestDocSet(t *testing.T) {
	c := NewDocSet()
	c.Collect(DocAddress{Segment: 1, Doc: 7}, 1)
	c.Collect(DocAddress{Segment: 0, Doc: 3}, 1)
	c.Collect(DocAddress{Segment: 1, Doc: 2}, 1)
	res := c.Finish()

	assert.Equal(t, uint64(3), res.Len())
	assert.True(t, res.Contains(DocAddress{Segment: 1, Doc: 7}))
	assert.False(t, res.Contains(DocAddress{Segment: 2, Doc: 7}))
	assert.Equal(t, []DocAddress{{0, 3}, {1, 2}, {1, 7}}, res.Addresses())
	assert.Nil(t, res.Segment(5))

	other := NewDocSet()
	for _, a := range res.Addresses() {
		other.Collect(a, 0)
	}
	assert.True(t, res.Equal(other.Finish()))
}

func TestDocAddressOrder(t *testing.T) {
	assert.True(t, DocAddress{Segment: 0, Doc: 9}.Less(DocAddress{Segment: 1, Doc: 0}))
	assert.False(t, DocAddress{Segment: 1, Doc: 1}.Less(DocAddress{Segment: 1, Doc: 1}))
	assert.Equal(t, "1/2", DocAddress{Segment: 1, Doc: 2}.String())
}

func TestTeeFeedsBoth(t *testing.T) {
	c := Tee[int, []ScoredDoc](NewCount(), NewTopK(2))
	for doc := uint32(0); doc < 5; doc++ {
		c.Collect(DocAddress{Doc: doc}, 1)
	}
	got := c.Finish()
	assert.Equal(t, 5, got.First)
	require.Len(t, got.Second, 2)
	assert.Equal(t, DocAddress{Doc: 0}, got.Second[0].Address)
}
