package chainedmap

import (
	"github.com/tinyforest/mcuforest/alloc"
	"github.com/tinyforest/mcuforest/bitpack"
	"github.com/tinyforest/mcuforest/oamap"
)

// shardSlot is one chain array entry: the range it currently serves
// (meaningful only when state is Used) and the inner map itself. A
// Deleted slot keeps its inner map allocated (emptied, not freed) so
// a later insert into the same or a different range can reuse it
// without a fresh allocation.
type shardSlot[V any] struct {
	state SlotState
	rng   uint64
	inner *oamap.Map[V]
}

// SlotState mirrors bitpack.SlotState's three states at chain-array
// granularity: Empty (slot reserved but never activated), Used (holds
// a live, non-empty inner map), Deleted (holds an allocated but
// emptied inner map, reuse-eligible).
type SlotState = bitpack.SlotState

const (
	Empty   = bitpack.Empty
	Used    = bitpack.Used
	Deleted = bitpack.Deleted
)

func (s *shardSlot[V]) activate(innerCap int, rng uint64, a alloc.Allocator[V]) {
	if s.inner == nil {
		s.inner = oamap.New[V](innerCap, oamap.WithAllocator[V](a))
	} else {
		s.inner.Clear()
	}
	s.state = Used
	s.rng = rng
}
