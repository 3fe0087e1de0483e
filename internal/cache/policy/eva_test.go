package policy_test

import (
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/policy"
	"github.com/datatier/cachesim/internal/workload"
)

func evaConfig(t *testing.T, args string) policy.EVAConfig {
	t.Helper()

	cfg, err := policy.ParseEVAConfig(args)
	require.NoError(t, err)

	return cfg
}

func TestParseEVAConfig(t *testing.T) {
	t.Parallel()

	cfg := evaConfig(t, "classifier=dataset&dirname, age_bin_width=3600, ewma_factor=0.5, eva_computation_interval=100, weighting=bytes")

	assert.Equal(t, int64(3600), cfg.AgeBinWidth)
	assert.InDelta(t, 0.5, cfg.EWMAFactor, 1e-12)
	assert.Equal(t, 100, cfg.ComputationInterval)
	assert.Equal(t, policy.EVAWeightBytes, cfg.Weighting)

	_, err := policy.ParseEVAConfig("weighting=bogus")
	assert.Error(t, err)
}

func TestEVADefaults(t *testing.T) {
	t.Parallel()

	cfg := evaConfig(t, "")

	assert.Equal(t, int64(3*24*60*60), cfg.AgeBinWidth)
	assert.InDelta(t, 0.0088, cfg.EWMAFactor, 1e-12)
	assert.Equal(t, 10000, cfg.ComputationInterval)
	assert.Equal(t, policy.EVAWeightAccesses, cfg.Weighting)
}

// EVA must sustain a long skewed workload, recompute its curves several
// times and keep policy and storage consistent throughout.
func runEVAWorkload(t *testing.T, args string) *cache.StatsCounters {
	t.Helper()

	cfg := evaConfig(t, args)

	capacity := int64(40)
	p := policy.NewEVA(cfg, capacity, slog.Default())
	proc := cache.NewProcessor(cache.NewStorage(capacity), p)
	stats := cache.NewStatsCounters()

	rng := rand.New(rand.NewPCG(3, 5))

	ts := int64(0)

	for range 3000 {
		ts += int64(rng.IntN(600))

		// Skewed popularity: low file numbers are hot.
		fileNum := rng.IntN(1 + rng.IntN(30))
		size := int64(1 + fileNum%7)

		info, err := proc.ProcessAccess(access(ts, fileID(fileNum), [2]int64{0, size}))
		require.NoError(t, err)
		require.LessOrEqual(t, proc.Storage().UsedBytes(), proc.Storage().TotalBytes())

		stats.ProcessAccessInfo(info)
	}

	assert.Equal(t, int64(3000), stats.Total().Accesses)
	assert.Positive(t, stats.Total().FilesHit, "a skewed workload must produce hits")

	return stats
}

func fileID(n int) workload.FileID {
	return workload.FileID("/pool0/dir/file" + string(rune('a'+n%26)) + string(rune('a'+(n/26)%26)))
}

func TestEVAAccessWeighted(t *testing.T) {
	t.Parallel()

	runEVAWorkload(t, "age_bin_width=600, eva_computation_interval=250")
}

func TestEVAByteWeighted(t *testing.T) {
	t.Parallel()

	runEVAWorkload(t, "age_bin_width=600, eva_computation_interval=250, weighting=bytes")
}

func TestEVAWithClassifier(t *testing.T) {
	t.Parallel()

	runEVAWorkload(t, "classifier=dataset, age_bin_width=600, eva_computation_interval=250")
}

func TestClassifiers(t *testing.T) {
	t.Parallel()

	a := access(1, "/store/group7/file42", [2]int64{0, 1})

	dataset, err := policy.ParseClassifier("dataset")
	require.NoError(t, err)
	assert.Equal(t, "store", dataset.Class(a))

	dirname, err := policy.ParseClassifier("dirname")
	require.NoError(t, err)
	assert.Equal(t, "/store/group7", dirname.Class(a))

	constant, err := policy.ParseClassifier("constant")
	require.NoError(t, err)
	assert.Equal(t, "", constant.Class(a))

	combined, err := policy.ParseClassifier("dataset&dirname")
	require.NoError(t, err)
	assert.NotEqual(t, combined.Class(a), dataset.Class(a))

	_, err = policy.ParseClassifier("bogus")
	assert.Error(t, err)
}
