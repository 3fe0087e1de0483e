package policy

import (
	"fmt"
	"math"
	"slices"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/reuse"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/binning"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
)

// MINCodConfig configures the MIN-cod policy. Without Classes every exact
// file size gets its own queue; with Classes files are bucketed by the
// log-binned size classes [FirstClass, LastClass] coarsened by ClassWidth.
type MINCodConfig struct {
	Classes    bool
	FirstClass int
	LastClass  int
	ClassWidth int
}

// ParseMINCodConfig parses the key=value arguments of MIN-cod.
func ParseMINCodConfig(args string) (MINCodConfig, error) {
	cfg := MINCodConfig{FirstClass: 10, LastClass: 40, ClassWidth: 2}

	err := params.Parse(args,
		params.Bool("classes", &cfg.Classes),
		params.Int("first_class", &cfg.FirstClass),
		params.Int("last_class", &cfg.LastClass),
		params.Int("class_width", &cfg.ClassWidth),
	)
	if err != nil {
		return MINCodConfig{}, err
	}

	return cfg, nil
}

// codMeta is the per-file payload of the size-bucketed queues.
type codMeta struct {
	size workload.BytesSize
}

type codPQ = keyedpq.PQ[workload.FileID, *codMeta]

// MINCod is the cost-over-distance MIN variant: it evicts the file
// minimizing size divided by reuse distance. Files of similar size share a
// max-heap ordered by reuse index, so each bucket is scanned in an order
// that admits early termination.
type MINCod struct {
	timer *reuse.Timer

	// classes mode
	useClasses bool
	classes    *binning.Mapping[*codPQ]

	// exact-size mode: one queue per distinct size, keys kept sorted
	bySize    map[workload.BytesSize]*codPQ
	sizeOrder []workload.BytesSize
}

// BuildMINCod returns the offline builder for a MIN-cod configuration.
func BuildMINCod(cfg MINCodConfig) cache.OfflinePolicyBuilder {
	return func(accesses cache.AccessReader) (cache.Policy, error) {
		p := &MINCod{
			timer:      reuse.NewTimer(accesses),
			useClasses: cfg.Classes,
		}

		if cfg.Classes {
			p.classes = binning.NewMapping(
				binning.NewLogBinner(cfg.FirstClass, cfg.LastClass, cfg.ClassWidth),
				func() *codPQ { return keyedpq.New[workload.FileID, *codMeta](true) },
			)
		} else {
			p.bySize = make(map[workload.BytesSize]*codPQ)
		}

		return p, nil
	}
}

// PopEvictionCandidates implements cache.Policy.
func (p *MINCod) PopEvictionCandidates(cache.EvictionContext) ([]workload.FileID, error) {
	if p.useClasses {
		return p.popUsingClasses()
	}

	return p.popUsingSortedSizes()
}

func (p *MINCod) popUsingClasses() ([]workload.FileID, error) {
	var (
		minItem *keyedpq.Item[workload.FileID, *codMeta]
		minPQ   *codPQ
	)

	minCod := math.Inf(1)

	for bin, pq := range p.classes.All() {
		if pq.Len() == 0 {
			continue
		}

		pqMinCost, _ := p.classes.Binner().BinLimits(bin)

		// Items arrive in decreasing reuse-index order, so item.Value()
		// bounds the reuse index of everything still to come; once even the
		// bucket's smallest possible size cannot beat the current best, the
		// rest of the bucket cannot either.
		for it := range pq.Ordered() {
			cod := float64(it.Data.size) / it.Value()
			if cod < minCod {
				minItem = it
				minPQ = pq
				minCod = cod
			}

			if float64(pqMinCost)/it.Value() >= minCod {
				break
			}
		}
	}

	if minItem == nil {
		return nil, fmt.Errorf("%w: mincod classes are empty", cache.ErrNoEvictionCandidate)
	}

	minPQ.RemoveItem(minItem)

	return []workload.FileID{minItem.Key()}, nil
}

func (p *MINCod) popUsingSortedSizes() ([]workload.FileID, error) {
	var (
		minItem *keyedpq.Item[workload.FileID, *codMeta]
		minPQ   *codPQ
		minSize workload.BytesSize
	)

	minCod := math.Inf(1)

	for _, size := range p.sizeOrder {
		pq := p.bySize[size]

		it, ok := pq.Peek() // queues are removed once empty
		if !ok {
			continue
		}

		cod := float64(it.Data.size) / it.Value()
		if cod < minCod {
			minItem = it
			minPQ = pq
			minSize = size
			minCod = cod
		}
	}

	if minItem == nil {
		return nil, fmt.Errorf("%w: mincod queues are empty", cache.ErrNoEvictionCandidate)
	}

	minPQ.RemoveItem(minItem)
	p.dropIfEmpty(minSize)

	return []workload.FileID{minItem.Key()}, nil
}

// Contains implements cache.Policy.
func (p *MINCod) Contains(file workload.FileID) bool {
	_, _, ok := p.find(file)

	return ok
}

// Remove implements cache.Policy.
func (p *MINCod) Remove(file workload.FileID) error {
	pq, size, ok := p.find(file)
	if !ok {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	if _, err := pq.Remove(file); err != nil {
		return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
	}

	if !p.useClasses {
		p.dropIfEmpty(size)
	}

	return nil
}

// ProcessAccess implements cache.Policy. Size growth moves the entry
// between buckets.
func (p *MINCod) ProcessAccess(file workload.FileID, ind int, _ bool, info *cache.AccessInfo) {
	oldSize := info.TotalBytes - info.BytesAdded
	newSize := info.TotalBytes
	reuseInd := p.timer.ReuseIndInf(ind)

	switch {
	case oldSize == 0:
		if _, err := p.bucket(newSize).Add(file, reuseInd, &codMeta{size: newSize}); err != nil {
			divergence("mincod", err)
		}
	case p.moved(oldSize, newSize):
		oldPQ := p.bucket(oldSize)

		it, err := oldPQ.Remove(file)
		if err != nil {
			divergence("mincod", err)
		}

		if !p.useClasses {
			p.dropIfEmpty(oldSize)
		}

		it.Data.size = newSize

		if _, err := p.bucket(newSize).Add(file, reuseInd, it.Data); err != nil {
			divergence("mincod", err)
		}
	default:
		pq := p.bucket(newSize)

		it, ok := pq.Get(file)
		if !ok {
			divergence("mincod", fmt.Errorf("%w: %s", cache.ErrNotTracked, file))
		}

		it.Data.size = newSize
		pq.ChangeValue(it, reuseInd)
	}
}

func (p *MINCod) moved(oldSize, newSize workload.BytesSize) bool {
	if p.useClasses {
		return p.classes.Binner().Bin(oldSize) != p.classes.Binner().Bin(newSize)
	}

	return oldSize != newSize
}

// bucket returns the queue for size, creating exact-size queues on demand.
func (p *MINCod) bucket(size workload.BytesSize) *codPQ {
	if p.useClasses {
		return p.classes.Get(size)
	}

	pq, ok := p.bySize[size]
	if !ok {
		pq = keyedpq.New[workload.FileID, *codMeta](true)
		p.bySize[size] = pq

		pos, _ := slices.BinarySearch(p.sizeOrder, size)
		p.sizeOrder = slices.Insert(p.sizeOrder, pos, size)
	}

	return pq
}

func (p *MINCod) dropIfEmpty(size workload.BytesSize) {
	pq, ok := p.bySize[size]
	if !ok || pq.Len() > 0 {
		return
	}

	delete(p.bySize, size)

	pos, found := slices.BinarySearch(p.sizeOrder, size)
	if found {
		p.sizeOrder = slices.Delete(p.sizeOrder, pos, pos+1)
	}
}

func (p *MINCod) find(file workload.FileID) (*codPQ, workload.BytesSize, bool) {
	if p.useClasses {
		for _, pq := range p.classes.All() {
			if pq.Contains(file) {
				return pq, 0, true
			}
		}

		return nil, 0, false
	}

	for size, pq := range p.bySize {
		if pq.Contains(file) {
			return pq, size, true
		}
	}

	return nil, 0, false
}
