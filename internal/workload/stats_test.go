package workload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/workload"
)

func TestStatsCountersUniqueBytes(t *testing.T) {
	t.Parallel()

	c := workload.NewStatsCounters()

	c.ProcessAccess(workload.Access{
		AccessTS: 1, File: "f",
		Parts: []workload.PartSpec{{Ind: 0, Bytes: 100}},
	})
	c.ProcessAccess(workload.Access{
		AccessTS: 2, File: "f",
		Parts: []workload.PartSpec{{Ind: 0, Bytes: 60}, {Ind: 1, Bytes: 40}},
	})

	total := c.Total()
	assert.Equal(t, int64(2), total.Accesses)
	assert.Equal(t, int64(200), total.TotalBytesAccessed)
	assert.Equal(t, int64(140), total.UniqueBytesAccessed)

	fs := c.File("f")
	require.NotNil(t, fs)
	require.Len(t, fs.Parts, 2)
	assert.Equal(t, int64(100), fs.Parts[0].UniqueBytesAccessed)
	assert.Equal(t, int64(160), fs.Parts[0].TotalBytesAccessed)
	assert.Equal(t, int64(2), fs.Parts[0].Accesses)

	assert.Equal(t, 1, c.FileCount())
}

func TestCanonicalParts(t *testing.T) {
	t.Parallel()

	parts := []workload.PartSpec{
		{Ind: 2, Bytes: 10},
		{Ind: 0, Bytes: 5},
		{Ind: 2, Bytes: 30},
	}

	canon := workload.CanonicalParts(parts)
	assert.Equal(t, []workload.PartSpec{{Ind: 0, Bytes: 5}, {Ind: 2, Bytes: 30}}, canon)

	// The input slice is not modified.
	assert.Len(t, parts, 3)
	assert.Equal(t, workload.PartSpec{Ind: 2, Bytes: 10}, parts[0])
}
