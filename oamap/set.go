package oamap

import mcuforest "github.com/tinyforest/mcuforest"

// Set is an open-addressing set sharing Map's capacity and fullness
// rules, values collapsed to the empty struct so membership costs no
// extra storage beyond the key and slot state.
type Set struct {
	m *Map[struct{}]
}

// NewSet returns a Set with the given physical capacity.
func NewSet(capacity int) *Set {
	return &Set{m: New[struct{}](capacity)}
}

// Add inserts key. Returns false if key was already present or the
// set is saturated.
func (s *Set) Add(key mcuforest.Key) bool { return s.m.Insert(key, struct{}{}) }

// Contains reports whether key is present.
func (s *Set) Contains(key mcuforest.Key) bool { return s.m.Contains(key) }

// Remove deletes key if present.
func (s *Set) Remove(key mcuforest.Key) bool { return s.m.Erase(key) }

// Size returns the number of members.
func (s *Set) Size() int { return s.m.Size() }

// Each calls fn for every member, in slot order.
func (s *Set) Each(fn func(key mcuforest.Key)) {
	s.m.Each(func(key mcuforest.Key, _ struct{}) { fn(key) })
}

// Clear removes every member.
func (s *Set) Clear() { s.m.Clear() }
