package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
)

// GreedyDualMode selects the cost assigned to a file on access.
type GreedyDualMode int

// GreedyDual cost modes.
const (
	// GreedyDualTotalSize prices a file at its total cached size.
	GreedyDualTotalSize GreedyDualMode = iota

	// GreedyDualAccessSize prices a file at the size of the accessed
	// fraction.
	GreedyDualAccessSize
)

// GreedyDualConfig configures the GreedyDual policy.
type GreedyDualConfig struct {
	Mode GreedyDualMode
}

// ParseGreedyDualConfig parses the key=value arguments of GreedyDual.
func ParseGreedyDualConfig(args string) (GreedyDualConfig, error) {
	cfg := GreedyDualConfig{Mode: GreedyDualTotalSize}

	err := params.Parse(args, params.Func("mode", func(value string) error {
		switch value {
		case "total_size":
			cfg.Mode = GreedyDualTotalSize
		case "access_size":
			cfg.Mode = GreedyDualAccessSize
		default:
			return fmt.Errorf("greedydual: unknown mode %q", value)
		}

		return nil
	}))
	if err != nil {
		return GreedyDualConfig{}, err
	}

	return cfg, nil
}

// GreedyDual evicts the file with the lowest running credit. The popped
// credit becomes the deduction threshold for all surviving files, so the
// effective credit of any survivor (stored value minus threshold) stays
// non-negative.
type GreedyDual struct {
	mode      GreedyDualMode
	pq        *keyedpq.PQ[workload.FileID, struct{}]
	threshold float64
}

// NewGreedyDual creates the policy state.
func NewGreedyDual(cfg GreedyDualConfig) *GreedyDual {
	return &GreedyDual{
		mode: cfg.Mode,
		pq:   keyedpq.New[workload.FileID, struct{}](false),
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *GreedyDual) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	it, ok := p.pq.Pop()
	if !ok {
		return nil, fmt.Errorf("%w: greedydual queue is empty", cache.ErrNoEvictionCandidate)
	}

	p.threshold = it.Value()

	return []workload.FileID{it.Key()}, nil
}

// Contains implements cache.Policy.
func (p *GreedyDual) Contains(file workload.FileID) bool {
	return p.pq.Contains(file)
}

// Remove implements cache.Policy.
func (p *GreedyDual) Remove(file workload.FileID) error {
	if _, err := p.pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	return nil
}

// ProcessAccess implements cache.Policy. The credit never decreases on
// re-access: credit = max(current, cost), stored as credit + threshold.
func (p *GreedyDual) ProcessAccess(file workload.FileID, _ int, _ bool, info *cache.AccessInfo) {
	var cost float64

	switch p.mode {
	case GreedyDualTotalSize:
		cost = float64(info.TotalBytes)
	case GreedyDualAccessSize:
		cost = float64(info.BytesRequested())
	}

	currentCredit := 0.0
	if it, ok := p.pq.Get(file); ok {
		currentCredit = it.Value() - p.threshold
	}

	credit := max(currentCredit, cost)
	p.pq.AddOrChange(file, p.threshold+credit, struct{}{})
}
