package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/lrudict"
)

// LRU evicts the least recently accessed file.
type LRU struct {
	lru *lrudict.Dict[workload.FileID, struct{}]
}

// NewLRU creates the policy state.
func NewLRU() *LRU {
	return &LRU{lru: lrudict.New[workload.FileID, struct{}]()}
}

// PopEvictionCandidates implements cache.Policy.
func (p *LRU) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	file, _, ok := p.lru.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: lru list is empty", cache.ErrNoEvictionCandidate)
	}

	return []workload.FileID{file}, nil
}

// Contains implements cache.Policy.
func (p *LRU) Contains(file workload.FileID) bool {
	return p.lru.Contains(file)
}

// Remove implements cache.Policy.
func (p *LRU) Remove(file workload.FileID) error {
	if err := p.lru.Delete(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy.
func (p *LRU) ProcessAccess(file workload.FileID, _ int, ensure bool, _ *cache.AccessInfo) {
	if ensure {
		p.lru.Set(file, struct{}{})
	}

	if err := p.lru.Access(file); err != nil {
		divergence("lru", err)
	}
}
