package chainedmap

import (
	mcuforest "github.com/tinyforest/mcuforest"
	"github.com/tinyforest/mcuforest/alloc"
	"github.com/tinyforest/mcuforest/hashkernel"
	"github.com/tinyforest/mcuforest/oamap"
)

// innerMapCapacity is the physical slot count given to each inner
// oamap.Map; its virtual capacity (at oamap's default 92% fullness)
// is what perMapVirtualCap below is sized from.
const innerMapCapacity = 255

// ChainedMap extends oamap.Map's 255-key ceiling to roughly
// maxChainSlots * perMapVirtualCap keys by sharding on key range,
// while every inner map keeps 8-bit addressing.
type ChainedMap[V any] struct {
	directory        *oamap.Map[int]
	chain            *chain[V]
	perMapVirtualCap uint64
	valAlloc         alloc.Allocator[V]
}

// Option configures a ChainedMap at construction time.
type Option[V any] func(*ChainedMap[V])

// WithAllocator overrides the backend used for every inner shard's
// value slice, defaulting to alloc.HeapAllocator. It is applied each
// time a shard is activated, including shards reused after a Deleted
// reset.
func WithAllocator[V any](a alloc.Allocator[V]) Option[V] {
	return func(m *ChainedMap[V]) { m.valAlloc = a }
}

// New returns an empty ChainedMap.
func New[V any](opts ...Option[V]) *ChainedMap[V] {
	innerVirtualCap := uint64((innerMapCapacity * oamap.DefaultFullnessPercent) / 100)
	m := &ChainedMap[V]{
		// The directory holds at most one entry per possible range
		// (rangeOf yields maxChainSlots distinct values), so it runs
		// at full fullness rather than oamap's default 92%.
		directory:        oamap.NewWithFullness[int](maxChainSlots, 100),
		chain:            newChain[V](),
		perMapVirtualCap: innerVirtualCap,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.valAlloc == nil {
		m.valAlloc = alloc.NewHeapAllocator[V]()
	}
	return m
}

// rangeOf buckets key into one of maxChainSlots ranges: the key hashes
// into the chain's total addressable key budget (255 shards x one inner
// map's virtual capacity, ~60000 keys) and consecutive runs of
// perMapVirtualCap hash values share a shard.
func (m *ChainedMap[V]) rangeOf(key mcuforest.Key) uint64 {
	h := hashkernel.FNV1a64(key) % (maxChainSlots * m.perMapVirtualCap)
	return h / m.perMapVirtualCap
}

func rangeKey(rng uint64) mcuforest.Key { return mcuforest.FromUint64(rng) }

// Insert stores value at key, activating or growing an inner map as
// needed. Returns false if key is already present (its value is left
// unchanged), if no shard can be activated for a new range, or when
// key's shard is full: every range maps to exactly one inner map, so a
// saturated shard cannot overflow into a neighbor without breaking the
// directory invariant.
func (m *ChainedMap[V]) Insert(key mcuforest.Key, value V) bool {
	rng := m.rangeOf(key)

	if idxVal, ok := m.directory.Find(rangeKey(rng)); ok {
		return m.chain.slotAt(idxVal).inner.Insert(key, value)
	}

	idx, ok := m.chain.pickForActivation()
	for !ok {
		if !m.chain.grow() {
			return false
		}
		idx, ok = m.chain.pickForActivation()
	}

	slot := m.chain.slotAt(idx)
	slot.activate(innerMapCapacity, rng, m.valAlloc)
	m.chain.markUsed(idx)
	if !m.directory.Insert(rangeKey(rng), idx) {
		slot.state = Deleted
		m.chain.markDeleted(idx)
		return false
	}
	return slot.inner.Insert(key, value)
}

// Find returns the value stored at key and true if present.
func (m *ChainedMap[V]) Find(key mcuforest.Key) (V, bool) {
	rng := m.rangeOf(key)
	idxVal, ok := m.directory.Find(rangeKey(rng))
	if !ok {
		var zero V
		return zero, false
	}
	return m.chain.slotAt(idxVal).inner.Find(key)
}

// At returns the value stored at key, or the zero value if absent.
func (m *ChainedMap[V]) At(key mcuforest.Key) V {
	v, _ := m.Find(key)
	return v
}

// Contains reports whether key is present.
func (m *ChainedMap[V]) Contains(key mcuforest.Key) bool {
	_, ok := m.Find(key)
	return ok
}

// Erase removes key if present. If its inner map becomes empty, the
// inner map's shard is marked Deleted (kept allocated for reuse) and
// the directory entry for that range is removed, per invariant C1.
func (m *ChainedMap[V]) Erase(key mcuforest.Key) bool {
	rng := m.rangeOf(key)
	idxVal, ok := m.directory.Find(rangeKey(rng))
	if !ok {
		return false
	}
	slot := m.chain.slotAt(idxVal)
	if !slot.inner.Erase(key) {
		return false
	}
	if slot.inner.Size() == 0 {
		slot.state = Deleted
		m.chain.markDeleted(idxVal)
		m.directory.Erase(rangeKey(rng))
	}
	return true
}

// Size returns the total number of live keys across every shard.
func (m *ChainedMap[V]) Size() int {
	total := 0
	n := m.chain.slotCount()
	for i := 0; i < n; i++ {
		s := m.chain.slotAt(i)
		if s.state == Used {
			total += s.inner.Size()
		}
	}
	return total
}

// ActiveShardCount returns the number of Used (non-empty) inner maps.
func (m *ChainedMap[V]) ActiveShardCount() int {
	return m.chain.usedCount()
}

// Compact physically renumbers active shards to occupy indices
// [0, active_count), rewriting the directory to match and dropping any
// Deleted shard's allocation. This is the only operation that
// establishes invariant C2; between calls, gaps may exist.
func (m *ChainedMap[V]) Compact() {
	n := m.chain.slotCount()
	fresh := newChain[V]()
	newIdx := 0
	for i := 0; i < n; i++ {
		s := m.chain.slotAt(i)
		if s.state != Used {
			continue
		}
		for fresh.slotCount() <= newIdx {
			if !fresh.grow() {
				break
			}
		}
		dst := fresh.slotAt(newIdx)
		*dst = *s
		fresh.markUsed(newIdx)
		m.directory.Erase(rangeKey(s.rng))
		m.directory.Insert(rangeKey(s.rng), newIdx)
		newIdx++
	}
	m.chain = fresh
}

// Each calls fn for every live entry across every shard.
func (m *ChainedMap[V]) Each(fn func(key mcuforest.Key, value V)) {
	n := m.chain.slotCount()
	for i := 0; i < n; i++ {
		s := m.chain.slotAt(i)
		if s.state == Used {
			s.inner.Each(fn)
		}
	}
}
