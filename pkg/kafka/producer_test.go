package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecords(t *testing.T) {
	msgs, err := encode([]Record{
		{Key: "a", Value: map[string]any{"timestamp": 7}},
		{Key: "b", Value: map[string]any{"title": []string{"x", "y"}}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("a"), msgs[0].Key)
	assert.JSONEq(t, `{"timestamp":7}`, string(msgs[0].Value))
	assert.JSONEq(t, `{"title":["x","y"]}`, string(msgs[1].Value))

	_, err = encode([]Record{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}
