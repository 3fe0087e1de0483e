// Package cache implements the replay core: byte-accurate storage of file
// parts, the policy-driven processor protocol, multi-processor cache
// systems, and hit/miss statistics collection.
package cache

import (
	"errors"
	"fmt"
	"slices"

	"github.com/datatier/cachesim/internal/workload"
)

var (
	// ErrInsufficientFreeSpace is returned by Storage.Place when the caller
	// violated the make-room-first precondition. It is fatal to a run.
	ErrInsufficientFreeSpace = errors.New("insufficient free space")

	// ErrNoEvictionCandidate is returned when a policy cannot name a file to
	// evict although more room is needed. It is fatal to a run.
	ErrNoEvictionCandidate = errors.New("no eviction candidate")

	// ErrNotTracked is returned when a policy is asked to remove a file it
	// does not track. It signals state divergence and is fatal.
	ErrNotTracked = errors.New("file not tracked by policy state")
)

// Storage tracks which parts of which files occupy a fixed-capacity volume.
// Accounting is exact: usedBytes equals the sum of all stored part sizes at
// all times.
type Storage struct {
	totalBytes workload.BytesSize
	usedBytes  workload.BytesSize
	files      map[workload.FileID]map[workload.PartInd]workload.BytesSize
}

// NewStorage creates an empty volume of the given capacity.
func NewStorage(totalBytes workload.BytesSize) *Storage {
	return &Storage{
		totalBytes: totalBytes,
		files:      make(map[workload.FileID]map[workload.PartInd]workload.BytesSize),
	}
}

// TotalBytes returns the immutable capacity.
func (s *Storage) TotalBytes() workload.BytesSize { return s.totalBytes }

// UsedBytes returns the occupied byte count.
func (s *Storage) UsedBytes() workload.BytesSize { return s.usedBytes }

// FreeBytes returns the unoccupied byte count.
func (s *Storage) FreeBytes() workload.BytesSize { return s.totalBytes - s.usedBytes }

// FileCount returns the number of files with at least one stored part.
func (s *Storage) FileCount() int { return len(s.files) }

// ContainsFile reports whether any part of file is stored.
func (s *Storage) ContainsFile(file workload.FileID) bool {
	_, ok := s.files[file]

	return ok
}

// Parts returns the stored parts of file, sorted by part index.
func (s *Storage) Parts(file workload.FileID) []workload.PartSpec {
	fileParts, ok := s.files[file]
	if !ok {
		return nil
	}

	out := make([]workload.PartSpec, 0, len(fileParts))
	for ind, size := range fileParts {
		out = append(out, workload.PartSpec{Ind: ind, Bytes: size})
	}

	slices.SortFunc(out, func(a, b workload.PartSpec) int { return a.Ind - b.Ind })

	return out
}

// FileBytes returns the total stored byte count of file.
func (s *Storage) FileBytes(file workload.FileID) workload.BytesSize {
	var total workload.BytesSize
	for _, size := range s.files[file] {
		total += size
	}

	return total
}

// ContainedBytes returns how many of the requested bytes are stored: the sum
// of min(stored, requested) over the requested parts.
func (s *Storage) ContainedBytes(file workload.FileID, parts []workload.PartSpec) workload.BytesSize {
	fileParts, ok := s.files[file]
	if !ok {
		return 0
	}

	var contained workload.BytesSize

	for _, p := range parts {
		contained += min(fileParts[p.Ind], p.Bytes)
	}

	return contained
}

// MissingBytes returns how many of the requested bytes are not stored.
func (s *Storage) MissingBytes(file workload.FileID, parts []workload.PartSpec) workload.BytesSize {
	var requested workload.BytesSize
	for _, p := range parts {
		requested += p.Bytes
	}

	return requested - s.ContainedBytes(file, parts)
}

// Evict removes file entirely and returns the byte count freed (zero if
// absent).
func (s *Storage) Evict(file workload.FileID) workload.BytesSize {
	fileParts, ok := s.files[file]
	if !ok {
		return 0
	}

	delete(s.files, file)

	var evicted workload.BytesSize
	for _, size := range fileParts {
		evicted += size
	}

	s.usedBytes -= evicted

	return evicted
}

// Place stores the requested parts, taking the element-wise maximum with any
// already-stored sizes. It returns the byte count actually added and fails
// with ErrInsufficientFreeSpace when that exceeds the free room.
func (s *Storage) Place(file workload.FileID, parts []workload.PartSpec) (workload.BytesSize, error) {
	missing := s.MissingBytes(file, parts)
	if missing > s.FreeBytes() {
		return 0, fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientFreeSpace, missing, s.FreeBytes())
	}

	fileParts, ok := s.files[file]
	if !ok {
		fileParts = make(map[workload.PartInd]workload.BytesSize, len(parts))
		s.files[file] = fileParts
	}

	for _, p := range parts {
		if p.Bytes > fileParts[p.Ind] {
			fileParts[p.Ind] = p.Bytes
		}
	}

	s.usedBytes += missing

	return missing, nil
}
