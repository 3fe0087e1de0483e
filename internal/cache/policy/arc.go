package policy

import (
	"fmt"
	"math"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/pkg/lrudict"
	"github.com/datatier/cachesim/pkg/params"
)

// ARCBitConfig configures the ARC-bit policy. GhostsFactor scales the byte
// budget of the ghost lists relative to the cache size.
type ARCBitConfig struct {
	GhostsFactor float64
}

// ParseARCBitConfig parses the key=value arguments of ARC-bit.
func ParseARCBitConfig(args string) (ARCBitConfig, error) {
	cfg := ARCBitConfig{GhostsFactor: 1.0}

	if err := params.Parse(args, params.Float("ghosts_factor", &cfg.GhostsFactor)); err != nil {
		return ARCBitConfig{}, err
	}

	return cfg, nil
}

// ARCBit adapts ARC to byte-sized files. Four LRU lists track the cached
// files seen once (topOnce, T1) and several times (topMultiple, T2) plus the
// ghost metadata of recently evicted files (bottomOnce B1, bottomMultiple
// B2). The byte target of T1 adapts on ghost hits.
//
// Invariants, in bytes: |T1|+|T2| <= total, |T1|+|B1| <= onceTotal =
// (1+ghostsFactor)*total/2, and |B1|+|B2| <= ghostsFactor*total.
type ARCBit struct {
	totalSize       workload.BytesSize
	ghostsTotalSize workload.BytesSize
	onceTotalSize   workload.BytesSize

	topOnceTargetSize workload.BytesSize

	topOnce        *lrudict.Sized[workload.FileID]
	bottomOnce     *lrudict.Sized[workload.FileID]
	topMultiple    *lrudict.Sized[workload.FileID]
	bottomMultiple *lrudict.Sized[workload.FileID]
}

// NewARCBit creates the policy state for a cache of totalSize bytes.
func NewARCBit(cfg ARCBitConfig, totalSize workload.BytesSize) *ARCBit {
	return &ARCBit{
		totalSize:       totalSize,
		ghostsTotalSize: workload.BytesSize(float64(totalSize) * cfg.GhostsFactor),
		onceTotalSize:   workload.BytesSize((1 + cfg.GhostsFactor) * float64(totalSize) / 2),
		topOnce:         lrudict.NewSized[workload.FileID](),
		bottomOnce:      lrudict.NewSized[workload.FileID](),
		topMultiple:     lrudict.NewSized[workload.FileID](),
		bottomMultiple:  lrudict.NewSized[workload.FileID](),
	}
}

// PopEvictionCandidates implements cache.Policy. ARC performs its list
// transitions here, before the storage eviction happens.
func (p *ARCBit) PopEvictionCandidates(ctx cache.EvictionContext) ([]workload.FileID, error) {
	file := ctx.File
	missingBytes := ctx.MissingBytes

	inTopOnce := p.topOnce.Contains(file)

	switch {
	case p.topMultiple.Contains(file) || inTopOnce:
		// Case 1: the file is cached.
		if inTopOnce {
			p.moveFile(file, p.topOnce, p.topMultiple)
		} else if err := p.topMultiple.Access(file); err != nil {
			divergence("arcbit", err)
		}

		candidates := p.evict(missingBytes, inTopOnce)

		evictedSelf := false

		for _, candidate := range candidates {
			if candidate == file {
				evictedSelf = true

				break
			}
		}

		if evictedSelf {
			candidates = append(candidates, p.evict(ctx.RequestedBytes, inTopOnce)...)
			p.topMultiple.Set(file, &lrudict.Entry{Size: ctx.RequestedBytes})
		} else if err := p.topMultiple.AddBytesToKey(file, missingBytes); err != nil {
			divergence("arcbit", err)
		}

		return candidates, nil

	case p.bottomOnce.Contains(file):
		// Case 2: ghost hit in B1; grow the T1 target.
		growth := math.Max(
			float64(p.bottomMultiple.TotalSize())/float64(p.bottomOnce.TotalSize()),
			1,
		) * p.averageFileSize()

		p.topOnceTargetSize = min(
			p.totalSize,
			p.topOnceTargetSize+workload.BytesSize(math.Round(growth)),
		)

		candidates := p.evict(missingBytes, true)
		p.moveFileFromBottom(file, p.bottomOnce, p.topMultiple, missingBytes)

		return candidates, nil

	case p.bottomMultiple.Contains(file):
		// Case 3: ghost hit in B2; shrink the T1 target.
		shrink := math.Max(
			float64(p.bottomOnce.TotalSize())/float64(p.bottomMultiple.TotalSize()),
			1,
		) * p.averageFileSize()

		p.topOnceTargetSize = max(
			0,
			p.topOnceTargetSize-workload.BytesSize(math.Round(shrink)),
		)

		candidates := p.evict(missingBytes, false)
		p.moveFileFromBottom(file, p.bottomMultiple, p.topMultiple, missingBytes)

		return candidates, nil

	default:
		// Case 4: the file is unknown to cache and directory.
		var candidates []workload.FileID

		for p.topOnce.TotalSize()+p.bottomOnce.TotalSize()+missingBytes > p.onceTotalSize {
			if p.bottomOnce.Len() > 0 {
				p.bottomOnce.Pop()

				continue
			}

			candidate, _, ok := p.topOnce.Pop()
			if !ok {
				break
			}

			candidates = append(candidates, candidate)
		}

		candidates = append(candidates, p.evict(missingBytes, false)...)
		p.topOnce.Set(file, &lrudict.Entry{Size: missingBytes})

		return candidates, nil
	}
}

// evict rebalances the top lists until requiredBytes fit, demoting evicted
// files into their ghost lists and trimming the ghosts to budget.
func (p *ARCBit) evict(requiredBytes workload.BytesSize, inOnce bool) []workload.FileID {
	var candidates []workload.FileID

	for p.topOnce.TotalSize()+p.topMultiple.TotalSize()+requiredBytes > p.totalSize {
		var (
			candidate     workload.FileID
			candidateSize workload.BytesSize
		)

		target := p.topOnceTargetSize

		fromOnce := p.topOnce.Len() > 1 &&
			(p.topOnce.TotalSize() > target ||
				(!inOnce && p.topOnce.TotalSize()+requiredBytes > target) ||
				p.topMultiple.Len() == 0)

		if fromOnce {
			candidate, candidateSize = p.moveLRU(p.topOnce, p.bottomOnce)
		} else {
			if p.topMultiple.Len() == 0 {
				// Nothing left to demote; the eviction loop in the driver
				// re-checks free space and fails if still short.
				return candidates
			}

			candidate, candidateSize = p.moveLRU(p.topMultiple, p.bottomMultiple)
		}

		// The ghosts invariant may be violated until this loop completes.
		for p.bottomOnce.TotalSize()+p.bottomMultiple.TotalSize()+candidateSize > p.ghostsTotalSize {
			if _, _, ok := p.bottomMultiple.Pop(); !ok {
				if _, _, ok := p.bottomOnce.Pop(); !ok {
					break
				}
			}
		}

		candidates = append(candidates, candidate)
	}

	return candidates
}

// averageFileSize estimates the mean tracked file size; zero while nothing
// is tracked yet.
func (p *ARCBit) averageFileSize() float64 {
	entries := p.topOnce.Len() + p.bottomOnce.Len() + p.topMultiple.Len() + p.bottomMultiple.Len()
	if entries == 0 {
		return 0
	}

	total := p.topOnce.TotalSize() + p.bottomOnce.TotalSize() +
		p.topMultiple.TotalSize() + p.bottomMultiple.TotalSize()

	return float64(total) / float64(entries)
}

func (p *ARCBit) moveFile(file workload.FileID, origin, dest *lrudict.Sized[workload.FileID]) {
	entry, ok := origin.Get(file)
	if !ok {
		divergence("arcbit", fmt.Errorf("%w: %s", cache.ErrNotTracked, file))
	}

	if err := origin.Delete(file); err != nil {
		divergence("arcbit", err)
	}

	dest.Set(file, entry)
}

func (p *ARCBit) moveFileFromBottom(
	file workload.FileID,
	origin, dest *lrudict.Sized[workload.FileID],
	requestedBytes workload.BytesSize,
) {
	entry, ok := origin.Get(file)
	if ok {
		if err := origin.Delete(file); err != nil {
			divergence("arcbit", err)
		}

		entry.Size = requestedBytes
	} else {
		entry = &lrudict.Entry{Size: requestedBytes}
	}

	dest.Set(file, entry)
}

func (p *ARCBit) moveLRU(origin, dest *lrudict.Sized[workload.FileID]) (workload.FileID, workload.BytesSize) {
	file, entry, ok := origin.Pop()
	if !ok {
		divergence("arcbit", fmt.Errorf("pop from empty list"))
	}

	dest.Set(file, entry)

	return file, entry.Size
}

// Contains implements cache.Policy.
func (p *ARCBit) Contains(file workload.FileID) bool {
	return p.topOnce.Contains(file) || p.topMultiple.Contains(file) ||
		p.bottomOnce.Contains(file) || p.bottomMultiple.Contains(file)
}

// Remove implements cache.Policy.
func (p *ARCBit) Remove(file workload.FileID) error {
	for _, list := range []*lrudict.Sized[workload.FileID]{
		p.topOnce, p.bottomOnce, p.topMultiple, p.bottomMultiple,
	} {
		if list.Contains(file) {
			return list.Delete(file)
		}
	}

	return fmt.Errorf("%w: %s", cache.ErrNotTracked, file)
}

// ProcessAccess implements cache.Policy. The list transitions happened in
// PopEvictionCandidates; this handles the two paths that skip it: full hits
// and misses with sufficient free space.
func (p *ARCBit) ProcessAccess(file workload.FileID, ind int, _ bool, info *cache.AccessInfo) {
	if info.BytesAdded == 0 {
		// Full hit; the file must be in one of the top lists.
		switch {
		case p.topMultiple.Contains(file):
			if err := p.topMultiple.Access(file); err != nil {
				divergence("arcbit", err)
			}
		case p.topOnce.Contains(file):
			p.moveFile(file, p.topOnce, p.topMultiple)
		default:
			divergence("arcbit", fmt.Errorf("full hit on file missing from cache directory: %s", file))
		}

		return
	}

	if info.BytesRemoved == 0 {
		// Miss with sufficient free space; run the transitions now. With
		// spare capacity they must not produce eviction candidates.
		candidates, err := p.PopEvictionCandidates(cache.EvictionContext{
			File:           file,
			Ind:            ind,
			RequestedBytes: info.BytesRequested(),
			ContainedBytes: info.BytesHit,
			MissingBytes:   info.BytesMissed,
			InCacheBytes:   info.BytesHit,
			FreeBytes:      info.BytesMissed,
		})
		if err != nil {
			divergence("arcbit", err)
		}

		if len(candidates) > 0 {
			divergence("arcbit", fmt.Errorf("eviction candidates produced with spare capacity"))
		}
	}
}
