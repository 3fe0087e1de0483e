package cache

import (
	"fmt"
	"iter"

	"github.com/datatier/cachesim/internal/distributor"
	"github.com/datatier/cachesim/internal/workload"
)

// System is one simulated cache deployment: a set of processors consuming an
// assignment stream. Advancing the system with Next drives upstream readers
// lazily; (nil, nil) marks exhaustion.
type System interface {
	Next() (*AccessInfo, error)
	Stats() *StatsCounters

	// ResetAfterWarmUp clears the statistics and arms the warm-up filter.
	ResetAfterWarmUp()
}

// AssignmentSource is a pull stream of access assignments. Next returns
// (zero, false, nil) at stream end.
type AssignmentSource interface {
	Next() (distributor.AccessAssignment, bool, error)
}

// OnlineCacheSystem routes each assignment to its processor as it arrives.
type OnlineCacheSystem struct {
	processors []*Processor
	source     AssignmentSource
	stats      *StatsCounters
}

// NewOnlineCacheSystem creates a system over online processors.
func NewOnlineCacheSystem(processors []*Processor, source AssignmentSource) *OnlineCacheSystem {
	return &OnlineCacheSystem{
		processors: processors,
		source:     source,
		stats:      NewStatsCounters(),
	}
}

// Stats returns the collected counters.
func (s *OnlineCacheSystem) Stats() *StatsCounters { return s.stats }

// ResetAfterWarmUp implements System.
func (s *OnlineCacheSystem) ResetAfterWarmUp() { s.stats.Reset() }

// Next processes one assignment and returns its AccessInfo.
func (s *OnlineCacheSystem) Next() (*AccessInfo, error) {
	assignment, ok, err := s.source.Next()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil
	}

	if assignment.CacheProc < 0 || assignment.CacheProc >= len(s.processors) {
		return nil, fmt.Errorf("assignment names cache processor %d of %d", assignment.CacheProc, len(s.processors))
	}

	info, err := s.processors[assignment.CacheProc].ProcessAccess(assignment.Access)
	if err != nil {
		return nil, err
	}

	s.stats.ProcessAccessInfo(info)

	return info, nil
}

// AssignmentReader is a re-iterable recorded assignment sequence that can be
// scoped to the accesses of one cache processor.
type AssignmentReader interface {
	ScopeToCacheProcessor(cacheProc int) AccessReader
}

// OfflineCacheSystem gives each offline processor a scoped view of the full
// trace, then merges the per-processor result streams in timestamp order.
type OfflineCacheSystem struct {
	merger *infoMerger
	stats  *StatsCounters
}

// NewOfflineCacheSystem prepares per-processor views and result streams.
// Processor i consumes the accesses assigned to cache processor i.
func NewOfflineCacheSystem(processors []*OfflineProcessor, reader AssignmentReader) (*OfflineCacheSystem, error) {
	streams := make([]*InfoStream, 0, len(processors))

	for ind, processor := range processors {
		stream, err := processor.Run(reader.ScopeToCacheProcessor(ind))
		if err != nil {
			return nil, fmt.Errorf("cache processor %d: %w", ind, err)
		}

		streams = append(streams, stream)
	}

	merger, err := newInfoMerger(streams)
	if err != nil {
		return nil, err
	}

	return &OfflineCacheSystem{merger: merger, stats: NewStatsCounters()}, nil
}

// Stats returns the collected counters.
func (s *OfflineCacheSystem) Stats() *StatsCounters { return s.stats }

// ResetAfterWarmUp implements System.
func (s *OfflineCacheSystem) ResetAfterWarmUp() { s.stats.Reset() }

// Next returns the next AccessInfo in merged timestamp order.
func (s *OfflineCacheSystem) Next() (*AccessInfo, error) {
	info, err := s.merger.Next()
	if err != nil || info == nil {
		return nil, err
	}

	s.stats.ProcessAccessInfo(info)

	return info, nil
}

// SliceAssignmentSource adapts an in-memory assignment slice to
// AssignmentSource.
type SliceAssignmentSource struct {
	assignments []distributor.AccessAssignment
	pos         int
}

// NewSliceAssignmentSource creates a source over assignments.
func NewSliceAssignmentSource(assignments []distributor.AccessAssignment) *SliceAssignmentSource {
	return &SliceAssignmentSource{assignments: assignments}
}

// Next implements AssignmentSource.
func (s *SliceAssignmentSource) Next() (distributor.AccessAssignment, bool, error) {
	if s.pos >= len(s.assignments) {
		return distributor.AccessAssignment{}, false, nil
	}

	assignment := s.assignments[s.pos]
	s.pos++

	return assignment, true, nil
}

// SliceAssignmentReader adapts an in-memory assignment slice to
// AssignmentReader for offline systems.
type SliceAssignmentReader []distributor.AccessAssignment

// ScopeToCacheProcessor implements AssignmentReader.
func (r SliceAssignmentReader) ScopeToCacheProcessor(cacheProc int) AccessReader {
	var scoped []workload.Access

	for _, assignment := range r {
		if assignment.CacheProc == cacheProc {
			scoped = append(scoped, assignment.Access)
		}
	}

	return SliceAccessReader(scoped)
}

// SliceAccessReader adapts an access slice to AccessReader.
type SliceAccessReader []workload.Access

// Len implements AccessReader.
func (r SliceAccessReader) Len() int { return len(r) }

// Forward implements AccessReader.
func (r SliceAccessReader) Forward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		for _, access := range r {
			if !yield(access) {
				return
			}
		}
	}
}

// Backward implements AccessReader.
func (r SliceAccessReader) Backward() iter.Seq[workload.Access] {
	return func(yield func(workload.Access) bool) {
		for i := len(r) - 1; i >= 0; i-- {
			if !yield(r[i]) {
				return
			}
		}
	}
}
