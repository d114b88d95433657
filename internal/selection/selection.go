// Package selection implements include/exclude filters for sources, fields
// and entries.
package selection

import (
	"sync"
)

// Set decides membership from an include list and an exclude list.
//
// A non-empty include list wins: only its members are selected. Otherwise
// everything outside the exclude list is selected.
type Set[T comparable] struct {
	only    map[T]struct{}
	exclude map[T]struct{}
	given   []T // Filter values as listed, include list first

	mu   sync.Mutex
	seen map[T]struct{}
}

// New builds a Set. Either list may be empty.
func New[T comparable](only, exclude []T) *Set[T] {
	return &Set[T]{
		only:    toSet(only),
		exclude: toSet(exclude),
		given:   append(append([]T(nil), only...), exclude...),
		seen:    make(map[T]struct{}),
	}
}

// All returns a Set selecting everything.
func All[T comparable]() *Set[T] { return New[T](nil, nil) }

func toSet[T comparable](items []T) map[T]struct{} {
	m := make(map[T]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// Contains reports whether v is selected.
func (s *Set[T]) Contains(v T) bool {
	s.mu.Lock()
	s.seen[v] = struct{}{}
	s.mu.Unlock()

	if len(s.only) > 0 {
		_, ok := s.only[v]
		return ok
	}
	_, excluded := s.exclude[v]
	return !excluded
}

// Filter returns the selected items, keeping their order.
func (s *Set[T]) Filter(items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.Contains(it) {
			out = append(out, it)
		}
	}
	return out
}

// Unused returns the filter values never passed to Contains, in the order
// they were given. They usually point to a typo on the command line.
func (s *Set[T]) Unused() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	reported := make(map[T]struct{})
	for _, v := range s.given {
		if _, ok := s.seen[v]; ok {
			continue
		}
		if _, ok := reported[v]; ok {
			continue
		}
		reported[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
