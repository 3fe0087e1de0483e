package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/lrudict"
)

// FIFO evicts the file that entered the cache first. Hits do not reorder.
type FIFO struct {
	queue *lrudict.Dict[workload.FileID, struct{}]
}

// NewFIFO creates the policy state.
func NewFIFO() *FIFO {
	return &FIFO{queue: lrudict.New[workload.FileID, struct{}]()}
}

// PopEvictionCandidates implements cache.Policy.
func (p *FIFO) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	file, _, ok := p.queue.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: fifo queue is empty", cache.ErrNoEvictionCandidate)
	}

	return []workload.FileID{file}, nil
}

// Contains implements cache.Policy.
func (p *FIFO) Contains(file workload.FileID) bool {
	return p.queue.Contains(file)
}

// Remove implements cache.Policy.
func (p *FIFO) Remove(file workload.FileID) error {
	if err := p.queue.Delete(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy. Files enter the queue on their
// first miss only.
func (p *FIFO) ProcessAccess(file workload.FileID, _ int, ensure bool, _ *cache.AccessInfo) {
	if !ensure {
		return
	}

	p.queue.Set(file, struct{}{})

	if err := p.queue.Access(file); err != nil {
		divergence("fifo", err)
	}
}
