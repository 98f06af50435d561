// Package mcuforest implements a space-constrained container library for
// microcontrollers (open-addressing hash tables capped at 255 slots,
// bit-packed vectors, chained-hash overflow) and, on top of it, a Random
// Forest classifier with streaming drift adaptation.
package mcuforest

import (
	"sort"
	"sync"

	set3 "github.com/TomTonic/Set3"
)

// MultiMap is a thread-safe map from Key to a set of values of one
// comparable type. Unlike a straight port of a linear-scan key/value
// slice, lookups go through a native Go map keyed by the Key's raw
// bytes (O(1) average AddValue/ContainsKey/ValuesFor), while a
// separately maintained ascending-by-Key index supports the ordered
// range queries below via sort.Search binary search rather than a
// full scan-and-filter. Keys are compared byte-wise (lexicographically), so the ordered range
// queries are meaningful for any Key produced by the constructors in
// key.go. AddValue and the range queries clone keys/sets across the
// boundary so callers cannot mutate internal state through a returned
// value.
//
// forest.buildOOBIndex builds one of these per scoring pass, inverting
// each tree's bootstrap-bag membership into a sample-index -> {trees
// that did not draw it} index, so out-of-bag lookups are precomputed
// once instead of re-derived per sample.
type MultiMap[T comparable] struct {
	mu      sync.RWMutex
	entries map[string]*set3.Set3[T]
	order   []Key // kept sorted ascending by Key.LessThan; mirrors entries' keys
}

// NewMultiMap returns an empty MultiMap.
func NewMultiMap[T comparable]() *MultiMap[T] {
	return &MultiMap[T]{
		entries: make(map[string]*set3.Set3[T], 20),
	}
}

func rawKey(k Key) string { return string(k) }

// lowerBound returns the index of the first entry in m.order that is
// not less than key (i.e. the first entry >= key).
func (m *MultiMap[T]) lowerBound(key Key) int {
	return sort.Search(len(m.order), func(i int) bool { return !m.order[i].LessThan(key) })
}

// upperBound returns the index of the first entry in m.order that is
// strictly greater than key.
func (m *MultiMap[T]) upperBound(key Key) int {
	return sort.Search(len(m.order), func(i int) bool { return key.LessThan(m.order[i]) })
}

// insertOrdered inserts key into m.order at its sorted position.
// Callers must already know key is not present in m.order.
func (m *MultiMap[T]) insertOrdered(key Key) {
	idx := m.lowerBound(key)
	m.order = append(m.order, nil)
	copy(m.order[idx+1:], m.order[idx:])
	m.order[idx] = key
}

func (m *MultiMap[T]) removeOrdered(key Key) {
	idx := m.lowerBound(key)
	if idx >= len(m.order) || !m.order[idx].Equal(key) {
		return
	}
	m.order = append(m.order[:idx], m.order[idx+1:]...)
}

// AddValue adds v to the set stored at key, creating the key if needed.
func (m *MultiMap[T]) AddValue(key Key, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rk := rawKey(key)
	set, ok := m.entries[rk]
	if !ok {
		set = set3.Empty[T]()
		m.entries[rk] = set
		m.insertOrdered(key.Clone())
	}
	set.Add(v)
}

// RemoveValue removes v from the set at key. A no-op if key or v is absent.
func (m *MultiMap[T]) RemoveValue(key Key, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.entries[rawKey(key)]; ok {
		set.Remove(v)
	}
}

// ContainsKey reports whether key has an entry, regardless of whether
// its value set is empty.
func (m *MultiMap[T]) ContainsKey(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[rawKey(key)]
	return ok
}

// RemoveKey deletes key and its entire value set.
func (m *MultiMap[T]) RemoveKey(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rk := rawKey(key)
	if _, ok := m.entries[rk]; !ok {
		return
	}
	delete(m.entries, rk)
	m.removeOrdered(key)
}

// ValuesFor returns a clone of the value set stored at key, or an empty
// set if key is absent.
func (m *MultiMap[T]) ValuesFor(key Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if set, ok := m.entries[rawKey(key)]; ok {
		return set.Clone()
	}
	return set3.EmptyWithCapacity[T](0)
}

// AllValues returns the union of every value set in the map.
func (m *MultiMap[T]) AllValues() *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := set3.Empty[T]()
	for _, set := range m.entries {
		result.AddAll(set)
	}
	return result
}

// rangeValues unions the value sets of every key in m.order[lo:hi].
func (m *MultiMap[T]) rangeValues(lo, hi int) *set3.Set3[T] {
	result := set3.Empty[T]()
	for _, k := range m.order[lo:hi] {
		if set, ok := m.entries[rawKey(k)]; ok {
			result.AddAll(set)
		}
	}
	return result
}

// ValuesBetweenInclusive unions the value sets of every key k with
// from <= k <= to.
func (m *MultiMap[T]) ValuesBetweenInclusive(from, to Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(m.lowerBound(from), m.upperBound(to))
}

// ValuesBetweenExclusive unions the value sets of every key k with
// from < k < to.
func (m *MultiMap[T]) ValuesBetweenExclusive(from, to Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(m.upperBound(from), m.lowerBound(to))
}

// ValuesFromInclusive unions the value sets of every key k with from <= k.
func (m *MultiMap[T]) ValuesFromInclusive(from Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(m.lowerBound(from), len(m.order))
}

// ValuesToInclusive unions the value sets of every key k with k <= to.
func (m *MultiMap[T]) ValuesToInclusive(to Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(0, m.upperBound(to))
}

// ValuesFromExclusive unions the value sets of every key k with from < k.
func (m *MultiMap[T]) ValuesFromExclusive(from Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(m.upperBound(from), len(m.order))
}

// ValuesToExclusive unions the value sets of every key k with k < to.
func (m *MultiMap[T]) ValuesToExclusive(to Key) *set3.Set3[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rangeValues(0, m.lowerBound(to))
}

// NumberOfKeys returns the number of distinct keys stored.
func (m *MultiMap[T]) NumberOfKeys() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.order))
}

// AllKeys returns a clone of every key currently stored, in ascending
// Key order.
func (m *MultiMap[T]) AllKeys() []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Key, 0, len(m.order))
	for _, k := range m.order {
		result = append(result, k.Clone())
	}
	return result
}

// Clear removes every key and value.
func (m *MultiMap[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*set3.Set3[T], 20)
	m.order = nil
}
