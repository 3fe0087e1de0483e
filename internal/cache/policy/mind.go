package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/reuse"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
)

// MINDConfig configures the MIN-d policy. d is derived per eviction as
// DFactor times the number of cached files, clamped to [MinD, MaxD] where
// set (zero disables a bound).
type MINDConfig struct {
	DFactor float64
	MinD    int
	MaxD    int
}

// ParseMINDConfig parses the key=value arguments of MIN-d.
func ParseMINDConfig(args string) (MINDConfig, error) {
	cfg := MINDConfig{DFactor: 0.1}

	err := params.Parse(args,
		params.Float("d_factor", &cfg.DFactor),
		params.Int("min_d", &cfg.MinD),
		params.Int("max_d", &cfg.MaxD),
	)
	if err != nil {
		return MINDConfig{}, err
	}

	return cfg, nil
}

// mindMeta is the per-file payload: the cached size considered as eviction
// cost.
type mindMeta struct {
	size workload.BytesSize
}

// MIND is the cost-aware MIN variant: among the d cached files with the
// farthest reuse it evicts the smallest one.
type MIND struct {
	cfg   MINDConfig
	timer *reuse.Timer
	pq    *keyedpq.PQ[workload.FileID, *mindMeta]
}

// BuildMIND returns the offline builder for a MIN-d configuration.
func BuildMIND(cfg MINDConfig) cache.OfflinePolicyBuilder {
	return func(accesses cache.AccessReader) (cache.Policy, error) {
		return &MIND{
			cfg:   cfg,
			timer: reuse.NewTimer(accesses),
			pq:    keyedpq.New[workload.FileID, *mindMeta](true),
		}, nil
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *MIND) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	top, ok := p.pq.Peek()
	if !ok {
		return nil, fmt.Errorf("%w: mind queue is empty", cache.ErrNoEvictionCandidate)
	}

	d := int(p.cfg.DFactor * float64(p.pq.Len()))
	if p.cfg.MinD > 0 {
		d = max(p.cfg.MinD, d)
	}

	if p.cfg.MaxD > 0 {
		d = min(p.cfg.MaxD, d)
	}

	minItem := top
	minCost := top.Data.size

	seen := 0

	for it := range p.pq.Ordered() {
		if seen >= d {
			break
		}

		seen++

		if it.Data.size < minCost {
			minItem = it
			minCost = it.Data.size
		}
	}

	p.pq.RemoveItem(minItem)

	return []workload.FileID{minItem.Key()}, nil
}

// Contains implements cache.Policy.
func (p *MIND) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy.
func (p *MIND) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy.
func (p *MIND) ProcessAccess(file workload.FileID, ind int, _ bool, info *cache.AccessInfo) {
	val := p.timer.ReuseIndInf(ind)

	if it, ok := p.pq.Get(file); ok {
		it.Data.size = info.TotalBytes
		p.pq.ChangeValue(it, val)

		return
	}

	if _, err := p.pq.Add(file, val, &mindMeta{size: info.TotalBytes}); err != nil {
		divergence("mind", err)
	}
}
