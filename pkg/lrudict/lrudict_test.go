package lrudict_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/pkg/lrudict"
)

func keys(d *lrudict.Dict[string, int]) []string {
	return slices.Collect(d.Keys())
}

func TestOrderSemantics(t *testing.T) {
	t.Parallel()

	d := lrudict.New[string, int]()

	d.Set("a", 1)
	d.Set("b", 2)
	d.Set("c", 3)

	// New keys enter at the front.
	assert.Equal(t, []string{"c", "b", "a"}, keys(d))

	// Access moves to the front.
	require.NoError(t, d.Access("b"))
	assert.Equal(t, []string{"b", "c", "a"}, keys(d))

	// Updating a key keeps its position.
	d.Set("a", 10)
	assert.Equal(t, []string{"b", "c", "a"}, keys(d))

	v, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	// Pop removes from the back.
	key, value, ok := d.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, 10, value)
	assert.Equal(t, 2, d.Len())
}

func TestDeleteAndMissing(t *testing.T) {
	t.Parallel()

	d := lrudict.New[string, int]()
	d.Set("a", 1)

	require.NoError(t, d.Delete("a"))
	assert.ErrorIs(t, d.Delete("a"), lrudict.ErrKeyNotFound)
	assert.ErrorIs(t, d.Access("a"), lrudict.ErrKeyNotFound)

	_, _, ok := d.Pop()
	assert.False(t, ok)
}

func TestSizedTotals(t *testing.T) {
	t.Parallel()

	s := lrudict.NewSized[string]()

	s.Set("a", &lrudict.Entry{Size: 100})
	s.Set("b", &lrudict.Entry{Size: 50})
	assert.Equal(t, int64(150), s.TotalSize())

	require.NoError(t, s.AddBytesToKey("b", 25))
	assert.Equal(t, int64(175), s.TotalSize())

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, int64(75), s.TotalSize())

	_, entry, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(75), entry.Size)
	assert.Zero(t, s.TotalSize())
}
