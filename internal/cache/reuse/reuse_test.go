package reuse_test

import (
	"iter"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache/reuse"
	"github.com/datatier/cachesim/internal/workload"
)

// seq adapts a slice of accesses to the AccessSeq interface.
type seq []workload.Access

func (s seq) Len() int { return len(s) }

func (s seq) Forward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		for _, a := range s {
			if !yield(a) {
				return
			}
		}
	}
}

func (s seq) Backward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		for i := len(s) - 1; i >= 0; i-- {
			if !yield(s[i]) {
				return
			}
		}
	}
}

func accessesOf(files ...workload.FileID) seq {
	out := make(seq, len(files))
	for i, f := range files {
		out[i] = workload.Access{
			AccessTS: int64(i + 1),
			File:     f,
			Parts:    []workload.PartSpec{{Ind: 0, Bytes: 1}},
		}
	}

	return out
}

func TestTimerKnownSequence(t *testing.T) {
	t.Parallel()

	timer := reuse.NewTimer(accessesOf("a", "b", "c", "a", "b"))
	require.Equal(t, 5, timer.Len())

	wantNext := []int{3, 4, 5, 5, 5}
	for i, want := range wantNext {
		next, ok := timer.ReuseInd(i)
		if want < timer.Len() {
			require.True(t, ok, "index %d", i)
			assert.Equal(t, want, next, "index %d", i)
		} else {
			assert.False(t, ok, "index %d", i)
			assert.True(t, math.IsInf(timer.ReuseIndInf(i), 1), "index %d", i)
		}
	}

	rt, ok := timer.ReuseTime(0)
	require.True(t, ok)
	assert.Equal(t, 3, rt)

	rt, ok = timer.ReuseTime(1)
	require.True(t, ok)
	assert.Equal(t, 3, rt)

	_, ok = timer.ReuseTime(2)
	assert.False(t, ok)
}

func TestTimerProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(11, 13))

	files := []workload.FileID{"a", "b", "c", "d", "e", "f"}

	var ids []workload.FileID
	for range 500 {
		ids = append(ids, files[rng.IntN(len(files))])
	}

	accesses := accessesOf(ids...)
	timer := reuse.NewTimer(accesses)

	for i := range accesses {
		next, ok := timer.ReuseInd(i)
		if ok {
			assert.Equal(t, accesses[next].File, accesses[i].File)

			for j := i + 1; j < next; j++ {
				assert.NotEqual(t, accesses[j].File, accesses[i].File)
			}
		} else {
			for j := i + 1; j < len(accesses); j++ {
				assert.NotEqual(t, accesses[j].File, accesses[i].File)
			}
		}
	}
}

func TestFullIndexPrevUse(t *testing.T) {
	t.Parallel()

	idx := reuse.NewFullIndex(accessesOf("a", "b", "c", "a", "b"))

	_, ok := idx.PrevUseInd(0)
	assert.False(t, ok)

	prev, ok := idx.PrevUseInd(3)
	require.True(t, ok)
	assert.Equal(t, 0, prev)

	prev, ok = idx.PrevUseInd(4)
	require.True(t, ok)
	assert.Equal(t, 1, prev)

	next, ok := idx.NextUseInd(0)
	require.True(t, ok)
	assert.Equal(t, 3, next)

	assert.Equal(t, int64(3), idx.AccessTS(2))
}

func TestFullIndexAccessedAfter(t *testing.T) {
	t.Parallel()

	accesses := seq{
		{AccessTS: 1, File: "f", Parts: []workload.PartSpec{{Ind: 0, Bytes: 100}, {Ind: 1, Bytes: 50}}},
		{AccessTS: 2, File: "g", Parts: []workload.PartSpec{{Ind: 0, Bytes: 10}}},
		{AccessTS: 3, File: "f", Parts: []workload.PartSpec{{Ind: 0, Bytes: 40}}},
		{AccessTS: 4, File: "f", Parts: []workload.PartSpec{{Ind: 0, Bytes: 80}, {Ind: 2, Bytes: 7}}},
	}

	idx := reuse.NewFullIndex(accesses)

	after := idx.AccessedAfter(0, []workload.PartSpec{{Ind: 0, Bytes: 100}, {Ind: 1, Bytes: 50}})

	// Part 0 is later read up to 80 of the requested 100 bytes; part 1 never
	// again.
	assert.Equal(t, []workload.PartSpec{{Ind: 0, Bytes: 80}}, after)

	before := idx.AccessedBefore(3, []workload.PartSpec{{Ind: 0, Bytes: 60}, {Ind: 2, Bytes: 7}})

	// Part 0 was earlier read beyond the requested 60 bytes (100 at index
	// 0); part 2 never before.
	assert.Equal(t, []workload.PartSpec{{Ind: 0, Bytes: 60}}, before)
}
