package policy_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/policy"
)

func TestParseARCBitConfig(t *testing.T) {
	t.Parallel()

	cfg, err := policy.ParseARCBitConfig("")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cfg.GhostsFactor, 1e-12)

	cfg, err = policy.ParseARCBitConfig("ghosts_factor=0.5")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.GhostsFactor, 1e-12)

	_, err = policy.ParseARCBitConfig("bogus=1")
	assert.Error(t, err)
}

// ARC keeps frequently re-accessed files over one-shot scans.
func TestARCBitRetainsFrequentFiles(t *testing.T) {
	t.Parallel()

	capacity := int64(8)
	p := policy.NewARCBit(policy.ARCBitConfig{GhostsFactor: 1.0}, capacity)
	proc := cache.NewProcessor(cache.NewStorage(capacity), p)
	stats := cache.NewStatsCounters()

	rng := rand.New(rand.NewPCG(17, 19))

	ts := int64(0)
	scan := 0

	for range 2000 {
		ts++

		var file string

		if rng.IntN(2) == 0 {
			// Hot set of four files.
			file = fileID(rng.IntN(4))
		} else {
			// One-shot scan files.
			scan++
			file = fileID(100 + scan)
		}

		info, err := proc.ProcessAccess(access(ts, file, [2]int64{0, 1}))
		require.NoError(t, err)

		// Cache invariant: bytes in storage never exceed capacity.
		require.LessOrEqual(t, proc.Storage().UsedBytes(), capacity)

		stats.ProcessAccessInfo(info)
	}

	total := stats.Total()

	// Half of the accesses go to four hot files that fit in half the
	// capacity; ARC must keep them resident through the one-shot scan.
	hitRate := float64(total.FilesHit) / float64(total.Accesses)
	assert.Greater(t, hitRate, 0.3)
}

func TestARCBitDeterminism(t *testing.T) {
	t.Parallel()

	trace := unitTrace(
		"a", "b", "a", "c", "d", "a", "b", "e", "f", "a",
		"b", "c", "g", "a", "h", "b", "i", "a", "b", "c",
	)

	first := evictionLog(t, policy.NewARCBit(policy.ARCBitConfig{GhostsFactor: 1.0}, 3), 3, trace)
	second := evictionLog(t, policy.NewARCBit(policy.ARCBitConfig{GhostsFactor: 1.0}, 3), 3, trace)

	assert.Equal(t, first, second)
}
