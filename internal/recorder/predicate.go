package recorder

import (
	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/distributor"
)

// Predicate restricts a Reader's view to the one contiguous range of
// records for which Keep holds. Keep is called in sequence order; stateful
// predicates must not be shared between readers.
type Predicate interface {
	Keep(assignment distributor.AccessAssignment) bool
}

// StopEarlyPredicate keeps records from the start of the trace until either
// limit is exceeded: a timestamp bound (inclusive) or a record count. A zero
// value disables the respective limit.
type StopEarlyPredicate struct {
	Time     int64
	Accesses int64

	seen int64
}

// Keep implements Predicate.
func (p *StopEarlyPredicate) Keep(assignment distributor.AccessAssignment) bool {
	if p.Time > 0 && assignment.Access.AccessTS > p.Time {
		return false
	}

	if p.Accesses > 0 {
		p.seen++

		return p.seen <= p.Accesses
	}

	return true
}

// StopEarlySource bounds an assignment source by a predicate, for online
// replay where no Reader range evaluation is involved. The stream ends at
// the first record the predicate rejects.
type StopEarlySource struct {
	source    cache.AssignmentSource
	predicate Predicate
	done      bool
}

// NewStopEarlySource wraps source.
func NewStopEarlySource(source cache.AssignmentSource, predicate Predicate) *StopEarlySource {
	return &StopEarlySource{source: source, predicate: predicate}
}

// Next implements cache.AssignmentSource.
func (s *StopEarlySource) Next() (distributor.AccessAssignment, bool, error) {
	if s.done {
		return distributor.AccessAssignment{}, false, nil
	}

	assignment, ok, err := s.source.Next()
	if err != nil || !ok {
		s.done = true

		return distributor.AccessAssignment{}, false, err
	}

	if !s.predicate.Keep(assignment) {
		s.done = true

		return distributor.AccessAssignment{}, false, nil
	}

	return assignment, true, nil
}
