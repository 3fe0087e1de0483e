package binning_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/pkg/binning"
)

func TestLinearBinner(t *testing.T) {
	t.Parallel()

	b := binning.NewLinearBinner(100)

	assert.Equal(t, 0, b.Bin(0))
	assert.Equal(t, 0, b.Bin(99))
	assert.Equal(t, 1, b.Bin(100))
	assert.Equal(t, 7, b.Bin(799))
	assert.False(t, b.Bounded())

	first, past := b.BinLimits(3)
	assert.Equal(t, int64(300), first)
	assert.Equal(t, int64(400), past)
}

func TestLogBinnerBounded(t *testing.T) {
	t.Parallel()

	// Classes 10..40 in steps of 2: 16 bins.
	b := binning.NewLogBinner(10, 40, 2)

	require.Equal(t, 16, b.Bins())
	assert.True(t, b.Bounded())

	// Values below 2^10 land in the first bin.
	assert.Equal(t, 0, b.Bin(0))
	assert.Equal(t, 0, b.Bin(1023))
	assert.Equal(t, 0, b.Bin(1024))
	assert.Equal(t, 0, b.Bin(4095))
	assert.Equal(t, 1, b.Bin(4096))

	// Values of 2^41 and above land in the last bin.
	assert.Equal(t, 15, b.Bin(1<<41))
	assert.Equal(t, 15, b.Bin(1<<50))

	first, past := b.BinLimits(0)
	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(1<<12), past)

	first, past = b.BinLimits(15)
	assert.Equal(t, int64(1<<40), first)
	assert.Equal(t, int64(binning.Unbounded), past)
}

func TestLogBinnerUnbounded(t *testing.T) {
	t.Parallel()

	b := binning.NewLogBinner(0, binning.Unbounded, 1)

	assert.Equal(t, 0, b.Bin(1))
	assert.Equal(t, 1, b.Bin(2))
	assert.Equal(t, 1, b.Bin(3))
	assert.Equal(t, 10, b.Bin(1024))
	assert.False(t, b.Bounded())
}

func TestCounters(t *testing.T) {
	t.Parallel()

	c := binning.NewCounters(binning.NewLinearBinner(10))

	c.Increment(5, 1)
	c.Increment(7, 2)
	c.Increment(25, 4)

	assert.Equal(t, int64(3), c.Get(9))
	assert.Equal(t, int64(0), c.Get(15))
	assert.Equal(t, int64(4), c.Get(20))
	assert.Equal(t, int64(7), c.Total())

	c.Reset()
	assert.Zero(t, c.Total())
	assert.Zero(t, c.Get(5))
}

func TestCountersUpdateEWMA(t *testing.T) {
	t.Parallel()

	binner := binning.NewLinearBinner(1)

	durable := binning.NewCounters(binner)
	durable.Increment(0, 100)
	durable.Increment(1, 50)

	live := binning.NewCounters(binner)
	live.Increment(0, 200)
	live.Increment(2, 10)

	durable.UpdateEWMA(live, 0.5)

	assert.Equal(t, int64(150), durable.Get(0))
	assert.Equal(t, int64(25), durable.Get(1))
	assert.Equal(t, int64(5), durable.Get(2))
	assert.Equal(t, int64(180), durable.Total())
}

func TestProbabilities(t *testing.T) {
	t.Parallel()

	c := binning.NewCounters(binning.NewLinearBinner(1))
	c.Increment(0, 3)
	c.Increment(1, 1)

	p := binning.Probabilities(c)
	assert.InDelta(t, 0.75, p.Get(0), 1e-12)
	assert.InDelta(t, 0.25, p.Get(1), 1e-12)
}

func TestMappingRanges(t *testing.T) {
	t.Parallel()

	type bucket struct{ id int }

	next := 0
	m := binning.NewMapping(binning.NewLogBinner(0, 4, 1), func() *bucket {
		next++

		return &bucket{id: next}
	})

	// Bin of 4 is 2; strictly-below excludes it, inclusive includes it.
	var below []*bucket
	for b := range m.ValuesUntil(4, true) {
		below = append(below, b)
	}

	assert.Len(t, below, 2)

	var upTo []*bucket
	for b := range m.ValuesUntil(4, false) {
		upTo = append(upTo, b)
	}

	assert.Len(t, upTo, 3)

	var from []*bucket
	for b := range m.ValuesFrom(4, true) {
		from = append(from, b)
	}

	assert.Len(t, from, 2)

	require.NotNil(t, m.Get(1<<30))
	assert.Same(t, m.Get(16), m.Get(1<<30), "values beyond the last class share its bucket")
}
