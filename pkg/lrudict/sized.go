package lrudict

import "fmt"

// Entry is the value type of a Sized dict: the byte size of the keyed item.
type Entry struct {
	Size int64
}

// Sized augments Dict with a running total of the entries' sizes.
type Sized[K comparable] struct {
	d     *Dict[K, *Entry]
	total int64
}

// NewSized creates an empty size-tracking ordered map.
func NewSized[K comparable]() *Sized[K] {
	return &Sized[K]{d: New[K, *Entry]()}
}

// Len returns the number of entries.
func (s *Sized[K]) Len() int { return s.d.Len() }

// TotalSize returns the sum of all entry sizes.
func (s *Sized[K]) TotalSize() int64 { return s.total }

// Contains reports whether key is present.
func (s *Sized[K]) Contains(key K) bool { return s.d.Contains(key) }

// Get returns the entry stored under key.
func (s *Sized[K]) Get(key K) (*Entry, bool) { return s.d.Get(key) }

// Set stores entry under key, adding its size to the total. An existing
// entry under the same key is replaced and its size removed from the total.
func (s *Sized[K]) Set(key K, entry *Entry) {
	if old, ok := s.d.Get(key); ok {
		s.total -= old.Size
	}

	s.d.Set(key, entry)
	s.total += entry.Size
}

// Delete removes key, subtracting its size from the total.
func (s *Sized[K]) Delete(key K) error {
	entry, ok := s.d.Get(key)
	if !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}

	if err := s.d.Delete(key); err != nil {
		return err
	}

	s.total -= entry.Size

	return nil
}

// Access moves key to the front.
func (s *Sized[K]) Access(key K) error { return s.d.Access(key) }

// Pop removes and returns the back entry, subtracting its size.
func (s *Sized[K]) Pop() (K, *Entry, bool) {
	key, entry, ok := s.d.Pop()
	if ok {
		s.total -= entry.Size
	}

	return key, entry, ok
}

// AddBytesToKey grows the entry under key by delta bytes.
func (s *Sized[K]) AddBytesToKey(key K, delta int64) error {
	entry, ok := s.d.Get(key)
	if !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}

	entry.Size += delta
	s.total += delta

	return nil
}
