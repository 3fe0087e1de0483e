package recorder_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/distributor"
	"github.com/datatier/cachesim/internal/recorder"
	"github.com/datatier/cachesim/internal/workload"
)

func sampleAssignments(n int) []distributor.AccessAssignment {
	out := make([]distributor.AccessAssignment, n)
	for i := range out {
		out[i] = distributor.AccessAssignment{
			Access: workload.Access{
				AccessTS: int64(i + 1),
				File:     workload.FileID("/pool/dir/file" + string(rune('a'+i%26))),
				Parts: []workload.PartSpec{
					{Ind: 0, Bytes: int64(100 + i)},
					{Ind: 1, Bytes: int64(50 + i)},
				},
			},
			CacheProc: i % 2,
		}
	}

	return out
}

func writeTrace(t *testing.T, path string, assignments []distributor.AccessAssignment) {
	t.Helper()

	writer, err := recorder.CreatePath(path)
	require.NoError(t, err)

	for _, assignment := range assignments {
		require.NoError(t, writer.WriteAssignment(assignment))
	}

	require.NoError(t, writer.Close())
}

func readAll(t *testing.T, source cache.AssignmentSource) []distributor.AccessAssignment {
	t.Helper()

	var out []distributor.AccessAssignment

	for {
		assignment, ok, err := source.Next()
		require.NoError(t, err)

		if !ok {
			return out
		}

		out = append(out, assignment)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl")
	want := sampleAssignments(10)

	writeTrace(t, path, want)

	source, err := recorder.NewReader(path).Assignments()
	require.NoError(t, err)

	assert.Equal(t, want, readAll(t, source))
}

func TestRoundTripCompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl.lz4")
	want := sampleAssignments(50)

	writeTrace(t, path, want)

	source, err := recorder.NewReader(path).Assignments()
	require.NoError(t, err)

	assert.Equal(t, want, readAll(t, source))
}

func TestScopedForwardAndBackward(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl")
	assignments := sampleAssignments(21)

	writeTrace(t, path, assignments)

	var wantScoped []workload.Access

	for _, assignment := range assignments {
		if assignment.CacheProc == 1 {
			wantScoped = append(wantScoped, assignment.Access)
		}
	}

	scoped := recorder.NewReader(path).ScopeToCacheProcessor(1)

	var forward []workload.Access
	for a := range scoped.Forward() {
		forward = append(forward, a)
	}

	assert.Equal(t, wantScoped, forward)
	assert.Equal(t, len(wantScoped), scoped.Len())

	var backward []workload.Access
	for a := range scoped.Backward() {
		backward = append(backward, a)
	}

	slices.Reverse(backward)
	assert.Equal(t, wantScoped, backward)
}

func TestScopedBackwardCrossesChunks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl")

	// Enough records to span several 64 KiB reverse-read chunks.
	assignments := sampleAssignments(3000)
	writeTrace(t, path, assignments)

	scoped := recorder.NewReader(path).ScopeToCacheProcessor(0)

	var backward []workload.Access
	for a := range scoped.Backward() {
		backward = append(backward, a)
	}

	require.Len(t, backward, 1500)
	assert.Equal(t, assignments[2998].Access, backward[0])
	assert.Equal(t, assignments[0].Access, backward[len(backward)-1])
}

func TestStopEarlyPredicateByAccesses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl")
	assignments := sampleAssignments(10)

	writeTrace(t, path, assignments)

	reader := recorder.NewReaderWithPredicate(path, &recorder.StopEarlyPredicate{Accesses: 4})

	length, err := reader.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, length)

	source, err := reader.Assignments()
	require.NoError(t, err)
	assert.Equal(t, assignments[:4], readAll(t, source))
}

func TestStopEarlyPredicateByTime(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.jsonl")
	assignments := sampleAssignments(10)

	writeTrace(t, path, assignments)

	reader := recorder.NewReaderWithPredicate(path, &recorder.StopEarlyPredicate{Time: 6})

	source, err := reader.Assignments()
	require.NoError(t, err)
	assert.Equal(t, assignments[:6], readAll(t, source))

	// The scoped backward view honors the same range.
	scoped := reader.ScopeToCacheProcessor(0)

	var backward []workload.Access
	for a := range scoped.Backward() {
		backward = append(backward, a)
	}

	require.Len(t, backward, 3)
	assert.Equal(t, int64(5), backward[0].AccessTS)
	assert.Equal(t, int64(1), backward[2].AccessTS)
}

func TestAccessInfoRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "infos.jsonl")

	infos := []*cache.AccessInfo{
		{
			Access:       sampleAssignments(1)[0].Access,
			FileHit:      true,
			BytesHit:     100,
			BytesMissed:  50,
			BytesAdded:   50,
			BytesRemoved: 75,
			TotalBytes:   150,
			EvictedFiles: []workload.FileID{"/pool/dir/old"},
		},
		{
			Access:       sampleAssignments(2)[1].Access,
			EvictedFiles: []workload.FileID{},
		},
	}

	writer, err := recorder.CreatePath(path)
	require.NoError(t, err)

	for _, info := range infos {
		require.NoError(t, writer.WriteAccessInfo(info))
	}

	require.NoError(t, writer.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	scanner := recorder.NewAccessInfoScanner(file)

	var got []*cache.AccessInfo
	for scanner.Scan() {
		got = append(got, scanner.AccessInfo())
	}

	require.NoError(t, scanner.Err())
	assert.Equal(t, infos, got)
}
