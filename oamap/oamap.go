// Package oamap implements a single-table open-addressing map and set
// capped at 255 physical slots, built on bitpack's slot-state table and
// hashkernel's capacity-tuned mixing and linear probing.
package oamap

import (
	mcuforest "github.com/tinyforest/mcuforest"
	"github.com/tinyforest/mcuforest/alloc"
	"github.com/tinyforest/mcuforest/bitpack"
	"github.com/tinyforest/mcuforest/hashkernel"
)

// MaxPhysicalCap is the hard slot-count ceiling: one map never exceeds
// 8-bit addressing.
const MaxPhysicalCap = 255

// DefaultFullnessPercent is the default ratio of physical capacity that
// may be written (live entries plus tombstones) before Insert rehashes
// the map; at MaxPhysicalCap with no tombstones to reclaim, Insert
// reports failure instead.
const DefaultFullnessPercent = 92

// Map is a fixed-capacity open-addressing hash map from mcuforest.Key
// to a value of type V.
type Map[V any] struct {
	keys     []mcuforest.Key
	vals     []V
	states   *bitpack.SlotStateTable
	kernel   *hashkernel.Kernel
	cap      int
	fullness int
	size     int // count of Used slots
	deadSize int // Used-slots-ever-written count, used to trigger rehash
	valAlloc alloc.Allocator[V]
}

// Option configures a Map at construction time.
type Option[V any] func(*Map[V])

// WithAllocator overrides the backend used for the map's value slice,
// defaulting to alloc.HeapAllocator. A rehash-driven grow allocates its
// replacement vals slice through this same allocator.
func WithAllocator[V any](a alloc.Allocator[V]) Option[V] {
	return func(m *Map[V]) { m.valAlloc = a }
}

// New returns a Map with the given physical capacity (clamped to
// [1, 255]) and default fullness (92%).
func New[V any](capacity int, opts ...Option[V]) *Map[V] {
	return NewWithFullness[V](capacity, DefaultFullnessPercent, opts...)
}

// NewWithFullness is New with an explicit fullness percentage.
func NewWithFullness[V any](capacity int, fullnessPercent int, opts ...Option[V]) *Map[V] {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxPhysicalCap {
		capacity = MaxPhysicalCap
	}
	m := &Map[V]{
		keys:     make([]mcuforest.Key, capacity),
		states:   bitpack.NewSlotStateTable(capacity),
		kernel:   hashkernel.New(capacity, hashkernel.Accurate),
		cap:      capacity,
		fullness: fullnessPercent,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.valAlloc == nil {
		m.valAlloc = alloc.NewHeapAllocator[V]()
	}
	vals, _, ok := m.valAlloc.Allocate(capacity)
	if !ok {
		vals = make([]V, capacity)
	}
	m.vals = vals
	return m
}

// VirtualCap returns floor(physical_cap * fullness%), the live-entry
// ceiling this map enforces.
func (m *Map[V]) VirtualCap() int {
	return (m.cap * m.fullness) / 100
}

// Cap returns the physical slot count.
func (m *Map[V]) Cap() int { return m.cap }

// Size returns the number of live (Used) entries.
func (m *Map[V]) Size() int { return m.size }

func (m *Map[V]) indexOf(key mcuforest.Key) int {
	h := hashkernel.FNV1a64(key)
	return m.kernel.Hash(h)
}

// Insert stores value at key. Returns false if key was already present
// (value left unchanged; callers wanting update-or-insert should Erase
// first) or if the map is saturated at its virtual capacity and cannot
// accept a new key. A tombstone is reclaimed only when its retained key
// matches the key being inserted (a re-insert after Erase takes back
// its old slot); a new key probes past tombstones and lands only in a
// genuinely Empty slot, incrementing dead_size, so tombstone space is
// recovered by the next rehash rather than piecemeal.
func (m *Map[V]) Insert(key mcuforest.Key, value V) bool {
	if m.deadSize >= m.VirtualCap() {
		if !m.rehash() {
			return false
		}
	}

	idx := m.indexOf(key)
	for probes := 0; probes <= m.cap; probes++ {
		switch m.states.Get(idx) {
		case bitpack.Empty:
			m.keys[idx] = key.Clone()
			m.vals[idx] = value
			m.states.Set(idx, bitpack.Used)
			m.size++
			m.deadSize++
			return true
		case bitpack.Used:
			if m.keys[idx].Equal(key) {
				return false
			}
		case bitpack.Deleted:
			if m.keys[idx].Equal(key) {
				m.vals[idx] = value
				m.states.Set(idx, bitpack.Used)
				m.size++
				return true
			}
		}
		idx = m.kernel.LinearProbe(idx)
	}
	return false
}

// Find returns the value stored at key and true if present.
func (m *Map[V]) Find(key mcuforest.Key) (V, bool) {
	idx := m.indexOf(key)
	for probes := 0; probes <= m.cap; probes++ {
		switch m.states.Get(idx) {
		case bitpack.Empty:
			var zero V
			return zero, false
		case bitpack.Used:
			if m.keys[idx].Equal(key) {
				return m.vals[idx], true
			}
		}
		idx = m.kernel.LinearProbe(idx)
	}
	var zero V
	return zero, false
}

// At returns the value stored at key, or the zero value of V if key is
// absent. Returning by value means a miss never hands out shared
// mutable state (a process-wide default sentinel would alias across
// callers).
func (m *Map[V]) At(key mcuforest.Key) V {
	v, _ := m.Find(key)
	return v
}

// Contains reports whether key is present.
func (m *Map[V]) Contains(key mcuforest.Key) bool {
	_, ok := m.Find(key)
	return ok
}

// Erase removes key if present. It marks the slot Deleted and
// decrements size but defers any tombstone-driven rehash to the next
// Insert call, which keeps erase O(1) and its cost predictable for
// real-time callers.
func (m *Map[V]) Erase(key mcuforest.Key) bool {
	idx := m.indexOf(key)
	for probes := 0; probes <= m.cap; probes++ {
		switch m.states.Get(idx) {
		case bitpack.Empty:
			return false
		case bitpack.Used:
			if m.keys[idx].Equal(key) {
				m.states.Set(idx, bitpack.Deleted)
				// The key stays in the tombstone so a re-insert of the
				// same key can reclaim this exact slot; only the value
				// is released.
				var zeroVal V
				m.vals[idx] = zeroVal
				m.size--
				return true
			}
		}
		idx = m.kernel.LinearProbe(idx)
	}
	return false
}

// rehash grows the table to the next power of two (capped at
// MaxPhysicalCap) when room remains to grow, or otherwise just
// compacts out tombstones at the current physical capacity. Returns
// false (leaving the map untouched) if the map is already at maximum
// physical capacity with no tombstones to reclaim.
func (m *Map[V]) rehash() bool {
	newCap := m.cap
	if m.cap < MaxPhysicalCap {
		newCap = nextPow2Capped(m.cap+1, MaxPhysicalCap)
	} else if m.deadSize == m.size {
		// Already at maximum physical capacity and every dead slot is
		// genuinely live: there are no tombstones to reclaim, so
		// rehashing cannot lower dead_size below virtual_cap.
		return false
	}

	old := m
	fresh := NewWithFullness[V](newCap, old.fullness, WithAllocator[V](old.valAlloc))
	for i := 0; i < old.cap; i++ {
		if old.states.Get(i) == bitpack.Used {
			fresh.Insert(old.keys[i], old.vals[i])
		}
	}
	*m = *fresh
	return true
}

func nextPow2Capped(n, capMax int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p > capMax {
		return capMax
	}
	return p
}

// Each calls fn for every live entry, in slot order (not insertion
// order).
func (m *Map[V]) Each(fn func(key mcuforest.Key, value V)) {
	for i := 0; i < m.cap; i++ {
		if m.states.Get(i) == bitpack.Used {
			fn(m.keys[i], m.vals[i])
		}
	}
}

// Clear removes every entry, resetting the map to empty without
// reallocating its backing arrays.
func (m *Map[V]) Clear() {
	m.states.ClearAll()
	m.size = 0
	m.deadSize = 0
}
