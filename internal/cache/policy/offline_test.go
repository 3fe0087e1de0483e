package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/policy"
	"github.com/datatier/cachesim/internal/workload"
)

// replayOffline runs a trace through one offline processor and returns the
// infos in order.
func replayOffline(
	t *testing.T,
	build cache.OfflinePolicyBuilder,
	capacity int64,
	trace []workload.Access,
) []*cache.AccessInfo {
	t.Helper()

	system, err := offlineSystem(build, capacity, trace)()
	require.NoError(t, err)

	var infos []*cache.AccessInfo

	for {
		info, err := system.Next()
		require.NoError(t, err)

		if info == nil {
			return infos
		}

		infos = append(infos, info)
	}
}

func TestMINEvictsFarthestReuse(t *testing.T) {
	t.Parallel()

	// b is reused soonest, c latest, "never" not at all. The first eviction
	// must take "never" (+Inf reuse).
	trace := []workload.Access{
		unitAccess(1, "never"),
		unitAccess(2, "b"),
		unitAccess(3, "c"),
		unitAccess(4, "d"), // evicts
		unitAccess(5, "b"),
		unitAccess(6, "d"),
		unitAccess(7, "c"),
	}

	infos := replayOffline(t, policy.BuildMIN, 3, trace)
	assert.Equal(t, []workload.FileID{"never"}, infos[3].EvictedFiles)

	// b, d and c stay resident and hit.
	assert.True(t, infos[4].FileHit)
	assert.True(t, infos[5].FileHit)
	assert.True(t, infos[6].FileHit)
}

func TestMINDPrefersSmallAmongFarthest(t *testing.T) {
	t.Parallel()

	// Both cached files are never reused; MIN-d with d covering the whole
	// queue takes the smaller one although the larger has the farther tie.
	trace := []workload.Access{
		access(1, "big", [2]int64{0, 6}),
		access(2, "small", [2]int64{0, 2}),
		access(3, "new", [2]int64{0, 4}),
	}

	infos := replayOffline(t, policy.BuildMIND(policy.MINDConfig{DFactor: 1, MinD: 2}), 10, trace)
	assert.Equal(t, []workload.FileID{"small"}, infos[2].EvictedFiles)
}

func TestMINDWithoutDepthFallsBackToMIN(t *testing.T) {
	t.Parallel()

	trace := []workload.Access{
		access(1, "big", [2]int64{0, 6}),
		access(2, "small", [2]int64{0, 2}),
		access(3, "new", [2]int64{0, 4}),
		access(4, "big", [2]int64{0, 6}),
	}

	// d = 1: only the farthest-reuse entry is considered. "small" is never
	// reused, "big" is; the top of the max-heap is "small".
	infos := replayOffline(t, policy.BuildMIND(policy.MINDConfig{DFactor: 0, MinD: 1, MaxD: 1}), 10, trace)
	assert.Equal(t, []workload.FileID{"small"}, infos[2].EvictedFiles)
}

func TestMINCodExactSizes(t *testing.T) {
	t.Parallel()

	// cod = size / reuse-distance. "far" has reuse index 4 and size 2
	// (cod 0.5); "soon" has reuse index 3 and size 8 (cod 8/3). The
	// eviction takes "far".
	trace := []workload.Access{
		access(1, "far", [2]int64{0, 2}),
		access(2, "soon", [2]int64{0, 8}),
		access(3, "new", [2]int64{0, 4}), // needs eviction
		access(4, "soon", [2]int64{0, 8}),
		access(5, "far", [2]int64{0, 2}),
	}

	infos := replayOffline(t, policy.BuildMINCod(policy.MINCodConfig{}), 12, trace)
	assert.Equal(t, []workload.FileID{"far"}, infos[2].EvictedFiles)
}

func TestMINCodClassesMode(t *testing.T) {
	t.Parallel()

	trace := []workload.Access{
		access(1, "far", [2]int64{0, 2}),
		access(2, "soon", [2]int64{0, 8}),
		access(3, "new", [2]int64{0, 4}),
		access(4, "soon", [2]int64{0, 8}),
		access(5, "far", [2]int64{0, 2}),
	}

	cfg := policy.MINCodConfig{Classes: true, FirstClass: 0, LastClass: 8, ClassWidth: 1}

	infos := replayOffline(t, policy.BuildMINCod(cfg), 12, trace)
	assert.Equal(t, []workload.FileID{"far"}, infos[2].EvictedFiles)
}

func TestOBMAEvictsAcrossClasses(t *testing.T) {
	t.Parallel()

	// Small files (class of sizes <= requirement) are evicted immediately;
	// the large file's class only accumulates its eviction counter.
	trace := []workload.Access{
		access(1, "small1", [2]int64{0, 2}),
		access(2, "small2", [2]int64{0, 2}),
		access(3, "large", [2]int64{0, 8}),
		access(4, "new", [2]int64{0, 3}),
	}

	cfg := policy.OBMAConfig{FirstClass: 0, LastClass: 4, ClassWidth: 1}

	infos := replayOffline(t, policy.BuildOBMA(cfg), 12, trace)

	evicted := infos[3].EvictedFiles
	require.NotEmpty(t, evicted)
	assert.NotContains(t, evicted, "large")
}

func TestOBMATooSmallCacheFails(t *testing.T) {
	t.Parallel()

	trace := []workload.Access{
		access(1, "huge", [2]int64{0, 100}),
	}

	system, err := offlineSystem(policy.BuildOBMA(policy.OBMAConfig{}), 10, trace)()
	require.NoError(t, err)

	_, err = system.Next()
	assert.ErrorIs(t, err, cache.ErrNoEvictionCandidate)
}
