package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/keyedpq"
)

// sizeKeyed evicts by cached file size; the heap direction decides whether
// the smallest (MCF) or largest (Size) file goes first.
type sizeKeyed struct {
	name string
	pq   *keyedpq.PQ[workload.FileID, struct{}]
}

// MCF evicts the file with the lowest fetch cost, i.e. the smallest file.
type MCF struct{ sizeKeyed }

// NewMCF creates the policy state.
func NewMCF() *MCF {
	return &MCF{sizeKeyed{name: "mcf", pq: keyedpq.New[workload.FileID, struct{}](false)}}
}

// Size evicts the largest file.
type Size struct{ sizeKeyed }

// NewSize creates the policy state.
func NewSize() *Size {
	return &Size{sizeKeyed{name: "size", pq: keyedpq.New[workload.FileID, struct{}](true)}}
}

// PopEvictionCandidates implements cache.Policy.
func (p *sizeKeyed) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	it, ok := p.pq.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: %s queue is empty", cache.ErrNoEvictionCandidate, p.name)
	}

	return []workload.FileID{it.Key()}, nil
}

// Contains implements cache.Policy.
func (p *sizeKeyed) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy.
func (p *sizeKeyed) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy. The priority tracks the file's
// current cached size.
func (p *sizeKeyed) ProcessAccess(file workload.FileID, _ int, _ bool, info *cache.AccessInfo) {
	p.pq.AddOrChange(file, float64(info.TotalBytes), struct{}{})
}
