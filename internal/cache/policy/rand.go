package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/params"
)

// RandConfig configures the Rand policy.
type RandConfig struct {
	Seed uint64
}

// ParseRandConfig parses the key=value arguments of the Rand policy.
func ParseRandConfig(args string) (RandConfig, error) {
	var seed int64 = 1

	if err := params.Parse(args, params.Int64("seed", &seed)); err != nil {
		return RandConfig{}, err
	}

	return RandConfig{Seed: uint64(seed)}, nil
}

// Rand evicts a uniformly random cached file. Runs are deterministic for a
// fixed seed.
type Rand struct {
	rng   *rand.Rand
	files []workload.FileID
	index map[workload.FileID]int
}

// NewRand creates the policy state.
func NewRand(cfg RandConfig) *Rand {
	return &Rand{
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		index: make(map[workload.FileID]int),
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *Rand) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	if len(p.files) == 0 {
		return nil, fmt.Errorf("%w: no files tracked", cache.ErrNoEvictionCandidate)
	}

	ind := p.rng.IntN(len(p.files))
	candidate := p.files[ind]
	p.swapRemove(ind)

	return []workload.FileID{candidate}, nil
}

// Contains implements cache.Policy.
func (p *Rand) Contains(file workload.FileID) bool {
	_, ok := p.index[file]

	return ok
}

// Remove implements cache.Policy.
func (p *Rand) Remove(file workload.FileID) error {
	ind, ok := p.index[file]
	if !ok {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	p.swapRemove(ind)

	return nil
}

// ProcessAccess implements cache.Policy.
func (p *Rand) ProcessAccess(file workload.FileID, _ int, ensure bool, _ *cache.AccessInfo) {
	if !ensure {
		return
	}

	if _, ok := p.index[file]; ok {
		return
	}

	p.index[file] = len(p.files)
	p.files = append(p.files, file)
}

func (p *Rand) swapRemove(ind int) {
	file := p.files[ind]
	last := len(p.files) - 1

	p.files[ind] = p.files[last]
	p.index[p.files[ind]] = ind
	p.files = p.files[:last]
	delete(p.index, file)
}
