package policy

import (
	"fmt"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/reuse"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/binning"
	"github.com/datatier/cachesim/pkg/keyedpq"
	"github.com/datatier/cachesim/pkg/params"
)

// OBMAConfig configures the offline bit-model algorithm. Files are bucketed
// by the log-binned size classes [FirstClass, LastClass] coarsened by
// ClassWidth.
type OBMAConfig struct {
	FirstClass int
	LastClass  int
	ClassWidth int
}

// ParseOBMAConfig parses the key=value arguments of OBMA.
func ParseOBMAConfig(args string) (OBMAConfig, error) {
	cfg := OBMAConfig{FirstClass: 10, LastClass: 40, ClassWidth: 2}

	err := params.Parse(args,
		params.Int("first_class", &cfg.FirstClass),
		params.Int("last_class", &cfg.LastClass),
		params.Int("class_width", &cfg.ClassWidth),
	)
	if err != nil {
		return OBMAConfig{}, err
	}

	return cfg, nil
}

// obmaClass is one size class: a max-heap of cached files by reuse index,
// the class's cached byte total and its delayed-eviction counter.
type obmaClass struct {
	pq              *codPQ
	totalSize       workload.BytesSize
	evictionCounter workload.BytesSize
}

func (c *obmaClass) popFile() (workload.FileID, *codMeta) {
	it, _ := c.pq.Pop()
	c.totalSize -= it.Data.size

	return it.Key(), it.Data
}

func (c *obmaClass) removeFile(file workload.FileID) error {
	it, err := c.pq.Remove(file)
	if err != nil {
		return err
	}

	c.totalSize -= it.Data.size

	return nil
}

func (c *obmaClass) addFile(file workload.FileID, size workload.BytesSize, reuseInd float64) error {
	if _, err := c.pq.Add(file, reuseInd, &codMeta{size: size}); err != nil {
		return err
	}

	c.totalSize += size

	return nil
}

func (c *obmaClass) updateFile(file workload.FileID, size workload.BytesSize, reuseInd float64) error {
	it, ok := c.pq.Get(file)
	if !ok {
		return cache.ErrNotTracked
	}

	c.pq.ChangeValue(it, reuseInd)
	c.totalSize += size - it.Data.size
	it.Data.size = size

	return nil
}

// OBMA evicts across size classes: the bytes to free are marked in every
// class; classes of files smaller than the requirement evict files
// immediately, larger classes accumulate an eviction counter and only evict
// once it surpasses their head file's size.
type OBMA struct {
	timer   *reuse.Timer
	classes *binning.Mapping[*obmaClass]
}

// BuildOBMA returns the offline builder for an OBMA configuration.
func BuildOBMA(cfg OBMAConfig) cache.OfflinePolicyBuilder {
	return func(accesses cache.AccessReader) (cache.Policy, error) {
		return &OBMA{
			timer: reuse.NewTimer(accesses),
			classes: binning.NewMapping(
				binning.NewLogBinner(cfg.FirstClass, cfg.LastClass, cfg.ClassWidth),
				func() *obmaClass {
					return &obmaClass{pq: keyedpq.New[workload.FileID, *codMeta](true)}
				},
			),
		}, nil
	}
}

// roundUpToEvict determines how many bytes to mark in every class: the
// requirement itself when the small classes can cover it, otherwise the head
// size of the first non-empty larger class.
func (p *OBMA) roundUpToEvict(requiredFreeBytes workload.BytesSize) (workload.BytesSize, error) {
	var smallTotal workload.BytesSize
	for class := range p.classes.ValuesUntil(requiredFreeBytes, false) {
		smallTotal += class.totalSize
	}

	if smallTotal >= requiredFreeBytes {
		return requiredFreeBytes, nil
	}

	for class := range p.classes.ValuesFrom(requiredFreeBytes, true) {
		if it, ok := class.pq.Peek(); ok {
			return it.Data.size, nil
		}
	}

	return 0, fmt.Errorf("%w: cache cannot fit the file", cache.ErrNoEvictionCandidate)
}

// PopEvictionCandidates implements cache.Policy.
func (p *OBMA) PopEvictionCandidates(ctx cache.EvictionContext) ([]workload.FileID, error) {
	toEvictBytes, err := p.roundUpToEvict(ctx.RequiredFreeBytes)
	if err != nil {
		return nil, err
	}

	var candidates []workload.FileID

	for class := range p.classes.ValuesUntil(ctx.RequiredFreeBytes, false) {
		// Classes of files at most as large as the requirement must evict
		// several files; their eviction counters stay untouched.
		var evictedBytes workload.BytesSize

		for class.pq.Len() > 0 && evictedBytes < toEvictBytes {
			file, meta := class.popFile()
			evictedBytes += meta.size
			candidates = append(candidates, file)
		}
	}

	for class := range p.classes.ValuesFrom(ctx.RequiredFreeBytes, true) {
		// Classes of larger files accumulate marked bytes and evict their
		// head once the counter exceeds its size.
		class.evictionCounter += toEvictBytes

		for class.pq.Len() > 0 {
			head, _ := class.pq.Peek()
			if class.evictionCounter <= head.Data.size {
				break
			}

			file, meta := class.popFile()
			class.evictionCounter -= meta.size
			candidates = append(candidates, file)
		}
	}

	return candidates, nil
}

// Contains implements cache.Policy.
func (p *OBMA) Contains(file workload.FileID) bool {
	for _, class := range p.classes.All() {
		if class.pq.Contains(file) {
			return true
		}
	}

	return false
}

// Remove implements cache.Policy.
func (p *OBMA) Remove(file workload.FileID) error {
	for _, class := range p.classes.All() {
		if class.pq.Contains(file) {
			if err := class.removeFile(file); err != nil {
				return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
			}

			return nil
		}
	}

	return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
}

// ProcessAccess implements cache.Policy. Size growth moves the entry between
// classes.
func (p *OBMA) ProcessAccess(file workload.FileID, ind int, _ bool, info *cache.AccessInfo) {
	oldSize := info.TotalBytes - info.BytesAdded
	newSize := info.TotalBytes
	moved := p.classes.Binner().Bin(oldSize) != p.classes.Binner().Bin(newSize)

	reuseInd := p.timer.ReuseIndInf(ind)

	var err error

	switch {
	case oldSize == 0:
		err = p.classes.Get(newSize).addFile(file, newSize, reuseInd)
	case moved:
		if err = p.classes.Get(oldSize).removeFile(file); err == nil {
			err = p.classes.Get(newSize).addFile(file, newSize, reuseInd)
		}
	default:
		err = p.classes.Get(newSize).updateFile(file, newSize, reuseInd)
	}

	if err != nil {
		divergence("obma", err)
	}
}
