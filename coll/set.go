package coll

import "iter"

// Set is a hash set of integer keys.
type Set[K Integer] struct {
	m Map[K, struct{}]
}

// NewSet creates a set sized to hold expected keys without resizing.
func NewSet[K Integer](expected int) *Set[K] {
	s := &Set[K]{}
	s.m.alloc(tableSize(expected))
	return s
}

// Add inserts k and reports whether it was newly added.
func (s *Set[K]) Add(k K) bool {
	_, existed := s.m.Put(k, struct{}{})
	return !existed
}

// Contains reports whether k is present.
func (s *Set[K]) Contains(k K) bool { return s.m.Contains(k) }

// Remove deletes k and reports whether it was present.
func (s *Set[K]) Remove(k K) bool {
	_, ok := s.m.Remove(k)
	return ok
}

// Len returns the number of keys.
func (s *Set[K]) Len() int { return s.m.size }

// Clear removes all keys.
func (s *Set[K]) Clear() { s.m.Clear() }

// All iterates over the keys in table order.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// AppendTo appends all keys to dst and returns the extended slice.
func (s *Set[K]) AppendTo(dst []K) []K {
	for k := range s.m.All() {
		dst = append(dst, k)
	}
	return dst
}
