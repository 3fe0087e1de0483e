package keyedpq_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/pkg/keyedpq"
)

func TestMinHeapOrdering(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, int](false)

	for key, value := range map[string]float64{"a": 3, "b": 1, "c": 2, "d": 5, "e": 4} {
		_, err := pq.Add(key, value, 0)
		require.NoError(t, err)
	}

	var keys []string

	for pq.Len() > 0 {
		it, ok := pq.Pop()
		require.True(t, ok)

		keys = append(keys, it.Key())
	}

	assert.Equal(t, []string{"b", "c", "a", "e", "d"}, keys)
}

func TestMaxHeapWithInfinity(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, struct{}](true)

	pq.AddOrChange("finite", 17, struct{}{})
	pq.AddOrChange("inf", math.Inf(1), struct{}{})

	it, ok := pq.Pop()
	require.True(t, ok)
	assert.Equal(t, "inf", it.Key())
}

func TestDuplicateKey(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, int](false)

	_, err := pq.Add("a", 1, 0)
	require.NoError(t, err)

	_, err = pq.Add("a", 2, 0)
	assert.ErrorIs(t, err, keyedpq.ErrDuplicateKey)
}

func TestChangeValue(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, int](false)

	pq.AddOrChange("a", 1, 0)
	pq.AddOrChange("b", 2, 0)
	pq.AddOrChange("c", 3, 0)

	require.NoError(t, pq.ChangeKeyValue("c", 0))

	it, ok := pq.Peek()
	require.True(t, ok)
	assert.Equal(t, "c", it.Key())

	it, ok = pq.Get("a")
	require.True(t, ok)
	pq.ChangeValue(it, 10)

	var keys []string

	for pq.Len() > 0 {
		popped, _ := pq.Pop()
		keys = append(keys, popped.Key())
	}

	assert.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, int](false)

	pq.AddOrChange("a", 1, 0)
	pq.AddOrChange("b", 2, 0)

	_, err := pq.Remove("a")
	require.NoError(t, err)
	assert.False(t, pq.Contains("a"))
	assert.Equal(t, 1, pq.Len())

	_, err = pq.Remove("a")
	assert.ErrorIs(t, err, keyedpq.ErrKeyNotFound)
}

func TestOrderedIterationDoesNotMutate(t *testing.T) {
	t.Parallel()

	pq := keyedpq.New[string, int](true)

	values := map[string]float64{"a": 1, "b": 4, "c": 2, "d": 9, "e": 7}
	for key, value := range values {
		pq.AddOrChange(key, value, 0)
	}

	var ordered []string

	for it := range pq.Ordered() {
		ordered = append(ordered, it.Key())
	}

	assert.Equal(t, []string{"d", "e", "b", "c", "a"}, ordered)
	assert.Equal(t, len(values), pq.Len())

	top, ok := pq.Peek()
	require.True(t, ok)
	assert.Equal(t, "d", top.Key())
}
