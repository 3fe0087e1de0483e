// Package reuse builds forward and backward next-use indices over a
// recorded access sequence. The indices are the priority source for the
// offline policies.
package reuse

import (
	"iter"
	"math"

	"github.com/datatier/cachesim/internal/workload"
)

// AccessSeq is the sequence shape required to build an index: a known
// length and iteration in both directions.
type AccessSeq interface {
	Len() int
	Forward() iter.Seq[workload.Access]
	Backward() iter.Seq[workload.Access]
}

// Timer holds the forward next-use index of a sequence: for each access
// position, the next position at which the same file is accessed again.
// Positions without a later use store the sequence length.
type Timer struct {
	reuseInd []uint64
}

// NewTimer builds the index with one backward pass over accesses.
func NewTimer(accesses AccessSeq) *Timer {
	length := accesses.Len()
	reuseInd := make([]uint64, length)
	nextAccess := make(map[workload.FileID]int)

	ind := length
	for access := range accesses.Backward() {
		ind--

		if next, ok := nextAccess[access.File]; ok {
			reuseInd[ind] = uint64(next)
		} else {
			reuseInd[ind] = uint64(length)
		}

		nextAccess[access.File] = ind
	}

	return &Timer{reuseInd: reuseInd}
}

// Len returns the indexed sequence length.
func (t *Timer) Len() int { return len(t.reuseInd) }

// ReuseInd returns the next-use position of the access at ind, or false if
// the file is never accessed again.
func (t *Timer) ReuseInd(ind int) (int, bool) {
	next := int(t.reuseInd[ind])
	if next >= len(t.reuseInd) {
		return 0, false
	}

	return next, true
}

// ReuseIndInf returns the next-use position as a float, +Inf for no reuse.
// The value is directly usable as a priority key.
func (t *Timer) ReuseIndInf(ind int) float64 {
	next := int(t.reuseInd[ind])
	if next >= len(t.reuseInd) {
		return math.Inf(1)
	}

	return float64(next)
}

// ReuseTime returns the distance to the next use of the same file, or false
// if there is none.
func (t *Timer) ReuseTime(ind int) (int, bool) {
	next, ok := t.ReuseInd(ind)
	if !ok {
		return 0, false
	}

	return next - ind, true
}
