// Package distributor schedules generated jobs onto a set of compute nodes
// and emits the resulting access stream, each access assigned to one cache
// processor.
package distributor

import (
	"github.com/datatier/cachesim/internal/workload"
)

// AccessAssignment binds one access to the cache processor serving it.
type AccessAssignment struct {
	Access    workload.Access
	CacheProc int
}

// NodeSpec describes one compute node available to the scheduler.
type NodeSpec struct {
	// Cores bounds the number of jobs running concurrently on the node.
	Cores int

	// Throughput is the node's read rate in bytes per second; it stretches
	// job runtimes.
	Throughput workload.BytesSize
}

// Scheduler assigns jobs to the earliest-free node slot and spreads the
// resulting accesses over the configured cache processors round-robin by
// node. Start times of consecutive jobs may leapfrog when slots free up at
// different times; callers requiring a time-ordered stream sort the
// collected assignments before writing.
type Scheduler struct {
	cacheProcs int
	slots      []slot
}

type slot struct {
	node   int
	freeAt workload.TimeStamp
	rate   workload.BytesSize
}

// NewScheduler creates a scheduler over the given nodes. cacheProcs must be
// positive.
func NewScheduler(cacheProcs int, nodes []NodeSpec) *Scheduler {
	s := &Scheduler{cacheProcs: cacheProcs}

	for nodeInd, node := range nodes {
		for core := 0; core < node.Cores; core++ {
			s.slots = append(s.slots, slot{node: nodeInd, rate: node.Throughput})
		}
	}

	return s
}

// Assign schedules one job and returns its accesses with processor
// assignments. The job starts at the later of its submit time and the
// earliest slot becoming free.
func (s *Scheduler) Assign(job workload.Job) []AccessAssignment {
	slotInd := s.earliestSlot()
	sl := &s.slots[slotInd]

	start := max(job.SubmitTS, sl.freeAt)

	out := make([]AccessAssignment, 0, len(job.AccessSchemes))

	var jobBytes workload.BytesSize

	for _, scheme := range job.AccessSchemes {
		access := workload.Access{
			AccessTS: start,
			File:     scheme.File,
			Parts:    workload.CanonicalParts(scheme.Parts),
		}
		jobBytes += access.RequestedBytes()

		out = append(out, AccessAssignment{
			Access:    access,
			CacheProc: sl.node % s.cacheProcs,
		})
	}

	runtime := workload.TimeStamp(1)
	if sl.rate > 0 {
		runtime += jobBytes / sl.rate
	}

	sl.freeAt = start + runtime

	return out
}

func (s *Scheduler) earliestSlot() int {
	best := 0
	for i := 1; i < len(s.slots); i++ {
		if s.slots[i].freeAt < s.slots[best].freeAt {
			best = i
		}
	}

	return best
}
