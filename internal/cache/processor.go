package cache

import (
	"fmt"
	"iter"

	"github.com/datatier/cachesim/internal/workload"
)

// AccessInfo describes the outcome of processing one access.
type AccessInfo struct {
	Access       workload.Access
	FileHit      bool
	BytesHit     workload.BytesSize
	BytesMissed  workload.BytesSize
	BytesAdded   workload.BytesSize
	BytesRemoved workload.BytesSize
	TotalBytes   workload.BytesSize
	EvictedFiles []workload.FileID
}

// BytesRequested returns the total byte count of the access.
func (info *AccessInfo) BytesRequested() workload.BytesSize {
	return info.BytesHit + info.BytesMissed
}

// EvictionContext carries the circumstances of an eviction request to the
// policy.
type EvictionContext struct {
	File              workload.FileID
	TS                workload.TimeStamp
	Ind               int
	RequestedBytes    workload.BytesSize
	ContainedBytes    workload.BytesSize
	MissingBytes      workload.BytesSize
	InCacheBytes      workload.BytesSize
	FreeBytes         workload.BytesSize
	RequiredFreeBytes workload.BytesSize
}

// Policy is the replacement-policy state machine driven by a Processor. The
// policy tracks exactly the files resident in storage, except transiently
// inside an eviction loop.
type Policy interface {
	// PopEvictionCandidates removes and returns at least one file to evict.
	// Returning ErrNoEvictionCandidate (or an empty list) aborts the run.
	PopEvictionCandidates(ctx EvictionContext) ([]workload.FileID, error)

	// Contains reports whether the policy tracks file.
	Contains(file workload.FileID) bool

	// Remove stops tracking file. It returns ErrNotTracked for unknown
	// files.
	Remove(file workload.FileID) error

	// ProcessAccess records the access in the policy state. ensure is true
	// when no byte of the file was in storage before the access, i.e. the
	// policy must create its entry.
	ProcessAccess(file workload.FileID, ind int, ensure bool, info *AccessInfo)
}

// AccessReader is random-access-free sequential access to a recorded access
// sequence, both directions.
type AccessReader interface {
	Len() int
	Forward() iter.Seq[workload.Access]
	Backward() iter.Seq[workload.Access]
}

// Processor drives one cache instance: it owns a Storage and a Policy and
// executes the fixed per-access protocol.
type Processor struct {
	storage *Storage
	policy  Policy
	ind     int
}

// NewProcessor creates a processor over storage and policy.
func NewProcessor(storage *Storage, policy Policy) *Processor {
	return &Processor{storage: storage, policy: policy}
}

// Storage returns the processor's storage volume.
func (p *Processor) Storage() *Storage { return p.storage }

// ProcessAccess runs the per-access protocol: account the hit portion, make
// room by popping eviction candidates, place the missing bytes, and let the
// policy record the access.
func (p *Processor) ProcessAccess(access workload.Access) (*AccessInfo, error) {
	ind := p.ind
	p.ind++

	fileHit := p.storage.ContainsFile(access.File)
	requestedBytes := access.RequestedBytes()
	containedBytes := p.storage.ContainedBytes(access.File, access.Parts)
	missingBytes := requestedBytes - containedBytes
	inCacheBytes := p.storage.FileBytes(access.File)

	if missingBytes == 0 {
		info := &AccessInfo{
			Access:     access,
			FileHit:    true,
			BytesHit:   containedBytes,
			TotalBytes: inCacheBytes,
		}
		p.policy.ProcessAccess(access.File, ind, false, info)

		return info, nil
	}

	var (
		evictedFiles []workload.FileID
		evictedBytes workload.BytesSize
	)

	for p.storage.FreeBytes() < missingBytes {
		candidates, err := p.policy.PopEvictionCandidates(EvictionContext{
			File:              access.File,
			TS:                access.AccessTS,
			Ind:               ind,
			RequestedBytes:    requestedBytes,
			ContainedBytes:    containedBytes,
			MissingBytes:      missingBytes,
			InCacheBytes:      inCacheBytes,
			FreeBytes:         p.storage.FreeBytes(),
			RequiredFreeBytes: missingBytes - p.storage.FreeBytes(),
		})
		if err != nil {
			return nil, fmt.Errorf("policy eviction: %w", err)
		}

		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: policy returned no candidates", ErrNoEvictionCandidate)
		}

		for _, candidate := range candidates {
			evictedFileBytes := p.storage.Evict(candidate)

			evictedFiles = append(evictedFiles, candidate)
			evictedBytes += evictedFileBytes

			if candidate == access.File {
				// The file about to be accessed was evicted (possible for
				// size-aware policies on huge files). The eviction
				// conceptually precedes re-placement, so the access becomes
				// a complete miss.
				containedBytes = 0
				missingBytes = requestedBytes
				inCacheBytes = 0
			}
		}
	}

	placedBytes, err := p.storage.Place(access.File, access.Parts)
	if err != nil {
		return nil, err
	}

	totalBytes := inCacheBytes + placedBytes

	info := &AccessInfo{
		Access:       access,
		FileHit:      fileHit,
		BytesHit:     containedBytes,
		BytesMissed:  missingBytes,
		BytesAdded:   placedBytes,
		BytesRemoved: evictedBytes,
		TotalBytes:   totalBytes,
		EvictedFiles: evictedFiles,
	}

	// If any byte was already in cache, the policy tracks the file.
	p.policy.ProcessAccess(access.File, ind, inCacheBytes == 0, info)

	return info, nil
}

// OfflinePolicyBuilder constructs a policy whose state requires the full
// access sequence (e.g. a reuse index) before processing starts.
type OfflinePolicyBuilder func(accesses AccessReader) (Policy, error)

// OfflineProcessor binds a storage and an offline policy builder. Run
// instantiates the policy from the complete scoped trace, then replays it.
type OfflineProcessor struct {
	storage *Storage
	build   OfflinePolicyBuilder
}

// NewOfflineProcessor creates an offline processor.
func NewOfflineProcessor(storage *Storage, build OfflinePolicyBuilder) *OfflineProcessor {
	return &OfflineProcessor{storage: storage, build: build}
}

// Run instantiates the policy over accesses and returns a pull stream of the
// resulting AccessInfos.
func (p *OfflineProcessor) Run(accesses AccessReader) (*InfoStream, error) {
	policy, err := p.build(accesses)
	if err != nil {
		return nil, fmt.Errorf("build offline policy state: %w", err)
	}

	proc := NewProcessor(p.storage, policy)
	next, stop := iter.Pull(accesses.Forward())

	return &InfoStream{
		next: func() (*AccessInfo, error) {
			access, ok := next()
			if !ok {
				stop()

				return nil, nil
			}

			return proc.ProcessAccess(access)
		},
	}, nil
}

// InfoStream is a pull stream of AccessInfos. Next returns (nil, nil) at
// stream end.
type InfoStream struct {
	next func() (*AccessInfo, error)
}

// Next returns the next AccessInfo, or (nil, nil) when exhausted.
func (s *InfoStream) Next() (*AccessInfo, error) {
	return s.next()
}
