package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Unique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestID_Short(t *testing.T) {
	assert.Equal(t, "abc", ID("abc").Short())
	assert.Len(t, NewID().Short(), 8)
	assert.True(t, ID("").IsZero())
}
