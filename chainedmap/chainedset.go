package chainedmap

import mcuforest "github.com/tinyforest/mcuforest"

// ChainedSet is a ChainedMap with its values collapsed to the empty
// struct, for membership-only use beyond a single 255-slot oamap.Set.
type ChainedSet struct {
	m *ChainedMap[struct{}]
}

// NewSet returns an empty ChainedSet.
func NewSet() *ChainedSet { return &ChainedSet{m: New[struct{}]()} }

// Add inserts key. Returns false if key is already present or the
// chain cannot take it (see ChainedMap.Insert).
func (s *ChainedSet) Add(key mcuforest.Key) bool { return s.m.Insert(key, struct{}{}) }

// Contains reports whether key is present.
func (s *ChainedSet) Contains(key mcuforest.Key) bool { return s.m.Contains(key) }

// Remove deletes key if present.
func (s *ChainedSet) Remove(key mcuforest.Key) bool { return s.m.Erase(key) }

// Size returns the number of members.
func (s *ChainedSet) Size() int { return s.m.Size() }

// Each calls fn for every member.
func (s *ChainedSet) Each(fn func(key mcuforest.Key)) {
	s.m.Each(func(key mcuforest.Key, _ struct{}) { fn(key) })
}
