package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/reuse"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/keyedpq"
)

// MIN performs Belady's algorithm offline: it evicts the cached file whose
// next use lies farthest in the future. With uniform sizes this yields the
// best possible hit rate. The next-use position of every cached file is kept
// in a max-heap and refreshed from the precomputed reuse index on access.
type MIN struct {
	timer *reuse.Timer
	pq    *keyedpq.PQ[workload.FileID, struct{}]
}

// BuildMIN is the offline builder for MIN.
func BuildMIN(accesses cache.AccessReader) (cache.Policy, error) {
	return &MIN{
		timer: reuse.NewTimer(accesses),
		pq:    keyedpq.New[workload.FileID, struct{}](true),
	}, nil
}

// PopEvictionCandidates implements cache.Policy.
func (p *MIN) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	it, ok := p.pq.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: min queue is empty", cache.ErrNoEvictionCandidate)
	}

	return []workload.FileID{it.Key()}, nil
}

// Contains implements cache.Policy.
func (p *MIN) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy.
func (p *MIN) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy.
func (p *MIN) ProcessAccess(file workload.FileID, ind int, _ bool, _ *cache.AccessInfo) {
	p.pq.AddOrChange(file, p.timer.ReuseIndInf(ind), struct{}{})
}
