package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
)

func parts(specs ...[2]int64) []workload.PartSpec {
	out := make([]workload.PartSpec, len(specs))
	for i, s := range specs {
		out[i] = workload.PartSpec{Ind: workload.PartInd(s[0]), Bytes: s[1]}
	}

	return out
}

func TestStoragePlaceAndAccounting(t *testing.T) {
	t.Parallel()

	s := cache.NewStorage(100)

	added, err := s.Place("f", parts([2]int64{0, 30}))
	require.NoError(t, err)
	assert.Equal(t, int64(30), added)
	assert.Equal(t, int64(30), s.UsedBytes())
	assert.Equal(t, int64(70), s.FreeBytes())
	assert.True(t, s.ContainsFile("f"))

	// Growing part 0 and adding part 1: only the new bytes are added.
	added, err = s.Place("f", parts([2]int64{0, 50}, [2]int64{1, 10}))
	require.NoError(t, err)
	assert.Equal(t, int64(30), added)
	assert.Equal(t, int64(60), s.UsedBytes())

	// Shrinking requests add nothing; stored sizes keep their maximum.
	added, err = s.Place("f", parts([2]int64{0, 20}))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, parts([2]int64{0, 50}, [2]int64{1, 10}), s.Parts("f"))

	assert.Equal(t, int64(60), s.FileBytes("f"))
	assert.Equal(t, int64(45), s.ContainedBytes("f", parts([2]int64{0, 40}, [2]int64{1, 5})))
	assert.Equal(t, int64(10), s.MissingBytes("f", parts([2]int64{0, 60})))
}

func TestStorageInsufficientFreeSpace(t *testing.T) {
	t.Parallel()

	s := cache.NewStorage(10)

	_, err := s.Place("big", parts([2]int64{0, 11}))
	assert.ErrorIs(t, err, cache.ErrInsufficientFreeSpace)
	assert.Zero(t, s.UsedBytes())
	assert.False(t, s.ContainsFile("big"))
}

func TestStorageEvict(t *testing.T) {
	t.Parallel()

	s := cache.NewStorage(100)

	_, err := s.Place("f", parts([2]int64{0, 30}, [2]int64{2, 20}))
	require.NoError(t, err)

	evicted := s.Evict("f")
	assert.Equal(t, int64(50), evicted)
	assert.Zero(t, s.UsedBytes())
	assert.False(t, s.ContainsFile("f"))

	assert.Zero(t, s.Evict("f"), "evicting an absent file frees nothing")
}
