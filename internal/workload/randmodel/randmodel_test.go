package randmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/internal/workload/randmodel"
)

const validParams = `{
	"seed": 7,
	"file_count": 50,
	"mean_file_bytes": 1048576,
	"job_count": 10,
	"accesses_per_job": 3,
	"interarrival_seconds": 30
}`

func TestLoadParams(t *testing.T) {
	t.Parallel()

	params, err := randmodel.LoadParams([]byte(validParams))
	require.NoError(t, err)

	assert.Equal(t, 50, params.FileCount)
	assert.Equal(t, int64(30), params.InterarrivalSeconds)
	assert.Equal(t, 1, params.PartsPerFile, "default applies")
}

func TestLoadParamsRejectsUnknownAndMissing(t *testing.T) {
	t.Parallel()

	_, err := randmodel.LoadParams([]byte(`{"file_count": 1}`))
	assert.ErrorIs(t, err, randmodel.ErrInvalidParams)

	_, err = randmodel.LoadParams([]byte(`{
		"file_count": 1, "mean_file_bytes": 10, "job_count": 1, "bogus": true
	}`))
	assert.ErrorIs(t, err, randmodel.ErrInvalidParams)
}

func TestGeneratorDeterminism(t *testing.T) {
	t.Parallel()

	params, err := randmodel.LoadParams([]byte(validParams))
	require.NoError(t, err)

	first := collect(t, randmodel.NewGenerator(params))
	second := collect(t, randmodel.NewGenerator(params))

	require.Len(t, first, 10)
	assert.Equal(t, first, second)

	for _, job := range first {
		assert.Len(t, job.AccessSchemes, 3)

		for _, scheme := range job.AccessSchemes {
			require.NotEmpty(t, scheme.Parts)

			for _, part := range scheme.Parts {
				assert.Positive(t, part.Bytes)
			}
		}
	}
}

func collect(t *testing.T, g *randmodel.Generator) []workload.Job {
	t.Helper()

	var jobs []workload.Job

	for {
		job, ok := g.Next()
		if !ok {
			return jobs
		}

		jobs = append(jobs, job)
	}
}
