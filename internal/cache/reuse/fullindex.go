package reuse

import (
	"math"

	"github.com/datatier/cachesim/internal/workload"
)

// FullIndex records, in addition to the forward next-use index, the backward
// previous-use index, each access's timestamp and its sorted part list. It
// supports querying which of a part set's bytes are accessed again later (or
// were accessed earlier).
type FullIndex struct {
	prevUseInd []uint64
	nextUseInd []uint64
	accessTS   []int64

	// partsOffset[i] is the first index into parts/partSizes belonging to
	// access i; its parts end at partsOffset[i+1] (or len(parts) for the
	// last access).
	partsOffset []uint64
	parts       []uint64
	partSizes   []uint64
}

// NewFullIndex builds the index with one forward pass (previous use, parts,
// timestamps) and one backward pass (next use).
func NewFullIndex(accesses AccessSeq) *FullIndex {
	length := accesses.Len()

	idx := &FullIndex{
		prevUseInd:  make([]uint64, length),
		accessTS:    make([]int64, length),
		partsOffset: make([]uint64, length),
	}

	prevAccess := make(map[workload.FileID]int)

	ind := 0
	for access := range accesses.Forward() {
		if prev, ok := prevAccess[access.File]; ok {
			idx.prevUseInd[ind] = uint64(prev)
		} else {
			idx.prevUseInd[ind] = uint64(length)
		}

		prevAccess[access.File] = ind

		idx.accessTS[ind] = access.AccessTS
		idx.partsOffset[ind] = uint64(len(idx.parts))

		for _, p := range workload.CanonicalParts(access.Parts) {
			idx.parts = append(idx.parts, uint64(p.Ind))
			idx.partSizes = append(idx.partSizes, uint64(p.Bytes))
		}

		ind++
	}

	idx.nextUseInd = NewTimer(accesses).reuseInd

	return idx
}

// Len returns the indexed sequence length.
func (x *FullIndex) Len() int { return len(x.nextUseInd) }

// NextUseInd returns the next-use position of the access at ind, or false.
func (x *FullIndex) NextUseInd(ind int) (int, bool) {
	next := int(x.nextUseInd[ind])
	if next >= len(x.nextUseInd) {
		return 0, false
	}

	return next, true
}

// PrevUseInd returns the previous-use position of the access at ind, or
// false.
func (x *FullIndex) PrevUseInd(ind int) (int, bool) {
	prev := int(x.prevUseInd[ind])
	if prev >= len(x.prevUseInd) {
		return 0, false
	}

	return prev, true
}

// NextUseIndInf returns the next-use position, +Inf for no later use.
func (x *FullIndex) NextUseIndInf(ind int) float64 {
	next := int(x.nextUseInd[ind])
	if next >= len(x.nextUseInd) {
		return math.Inf(1)
	}

	return float64(next)
}

// AccessTS returns the timestamp of the access at ind.
func (x *FullIndex) AccessTS(ind int) workload.TimeStamp { return x.accessTS[ind] }

// Parts returns the sorted part list of the access at ind.
func (x *FullIndex) Parts(ind int) []workload.PartSpec {
	start, end := x.partsRange(ind)

	out := make([]workload.PartSpec, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, workload.PartSpec{
			Ind:   workload.PartInd(x.parts[i]),
			Bytes: workload.BytesSize(x.partSizes[i]),
		})
	}

	return out
}

// AccessedAfter returns, for each requested part, the maximum size stored by
// later accesses of the same file, capped at the requested size. Parts never
// touched again are omitted.
func (x *FullIndex) AccessedAfter(afterInd int, parts []workload.PartSpec) []workload.PartSpec {
	return x.accessedFollowing(afterInd, x.nextUseInd, parts)
}

// AccessedBefore is AccessedAfter's mirror over earlier accesses.
func (x *FullIndex) AccessedBefore(beforeInd int, parts []workload.PartSpec) []workload.PartSpec {
	return x.accessedFollowing(beforeInd, x.prevUseInd, parts)
}

type partialFind struct {
	requested uint64
	maxFound  uint64
}

func (x *FullIndex) accessedFollowing(
	startInd int,
	followingUseInd []uint64,
	parts []workload.PartSpec,
) []workload.PartSpec {
	missing := make(map[uint64]partialFind, len(parts))
	for _, p := range parts {
		missing[uint64(p.Ind)] = partialFind{requested: uint64(p.Bytes)}
	}

	var out []workload.PartSpec

	length := uint64(len(followingUseInd))
	nextInd := followingUseInd[startInd]

	for len(missing) > 0 && nextInd < length {
		start, end := x.partsRange(int(nextInd))

		for i := start; i < end; i++ {
			partInd := x.parts[i]

			find, ok := missing[partInd]
			if !ok {
				continue
			}

			partSize := x.partSizes[i]

			switch {
			case partSize >= find.requested:
				delete(missing, partInd)
				out = append(out, workload.PartSpec{
					Ind:   workload.PartInd(partInd),
					Bytes: workload.BytesSize(find.requested),
				})
			case partSize > find.maxFound:
				find.maxFound = partSize
				missing[partInd] = find
			}
		}

		nextInd = followingUseInd[nextInd]
	}

	for partInd, find := range missing {
		if find.maxFound > 0 {
			out = append(out, workload.PartSpec{
				Ind:   workload.PartInd(partInd),
				Bytes: workload.BytesSize(find.maxFound),
			})
		}
	}

	return workload.CanonicalParts(out)
}

func (x *FullIndex) partsRange(ind int) (int, int) {
	start := int(x.partsOffset[ind])

	end := len(x.parts)
	if ind+1 < len(x.partsOffset) {
		end = int(x.partsOffset[ind+1])
	}

	return start, end
}
