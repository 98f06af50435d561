package chainedmap

// chain is the chain array of inner-map slots, wrapping whichever
// growth tier is currently active behind the base *chainNode[V]
// pointer and the unsafe-cast accessors on it.
type chain[V any] struct {
	base *chainNode[V]
}

func newChain[V any]() *chain[V] {
	return &chain[V]{base: &newChainNode5[V]().chainNode}
}

func (c *chain[V]) slotCount() int {
	switch c.base.tier {
	case tier5:
		return c.base.asTier5().slotCount()
	case tier51:
		return c.base.asTier51().slotCount()
	default:
		return c.base.asTier256().slotCount()
	}
}

func (c *chain[V]) hasFreeSlot() bool {
	switch c.base.tier {
	case tier5:
		return c.base.asTier5().hasFreeSlot()
	case tier51:
		return c.base.asTier51().hasFreeSlot()
	default:
		return c.base.asTier256().hasFreeSlot()
	}
}

// usedCount returns the number of slots currently in the Used state,
// maintained incrementally by markUsed/markDeleted.
func (c *chain[V]) usedCount() int {
	switch c.base.tier {
	case tier5:
		return c.base.asTier5().usedCount()
	case tier51:
		return c.base.asTier51().usedCount()
	default:
		return c.base.asTier256().usedCount()
	}
}

// slotAt returns a pointer to slot i's shardSlot, valid for the
// current tier.
func (c *chain[V]) slotAt(i int) *shardSlot[V] {
	switch c.base.tier {
	case tier5:
		return &c.base.asTier5().slots[i]
	case tier51:
		return &c.base.asTier51().slots[i]
	default:
		return &c.base.asTier256().slots[i]
	}
}

// markUsed records slot i transitioning to Used, keeping the per-tier
// used-count and presence bitmap consistent. Callers only invoke it on
// a genuine Empty/Deleted -> Used transition (activation, or a compact
// copying a live slot into a fresh chain), so the count increments
// unconditionally.
func (c *chain[V]) markUsed(i int) {
	switch c.base.tier {
	case tier5:
		c.base.asTier5().count++
	case tier51:
		n := c.base.asTier51()
		n.count++
		n.presence.set(byte(i))
	default:
		c.base.asTier256().count++
	}
}

// markDeleted records slot i transitioning from Used to Deleted
// (emptied but still allocated).
func (c *chain[V]) markDeleted(i int) {
	switch c.base.tier {
	case tier5:
		c.base.asTier5().count--
	case tier51:
		c.base.asTier51().count--
		// presence stays set: the slot is still allocated.
	default:
		c.base.asTier256().count--
	}
}

// grow upgrades the chain to the next tier, preserving every slot.
// Returns false if already at the maximum tier.
func (c *chain[V]) grow() bool {
	switch c.base.tier {
	case tier5:
		next := c.base.asTier5().grow()
		c.base = &next.chainNode
		return true
	case tier51:
		next := c.base.asTier51().grow()
		c.base = &next.chainNode
		return true
	default:
		return false
	}
}

// pickForActivation returns the index of a slot to activate for a new
// range, in priority order: an already-allocated Deleted slot first
// (reuse, no allocation), then an unallocated Empty slot. Returns
// ok=false if neither exists at the current tier.
func (c *chain[V]) pickForActivation() (int, bool) {
	if !c.hasFreeSlot() {
		return -1, false
	}
	if c.base.tier == tier51 {
		return c.base.asTier51().pickForActivation()
	}
	n := c.slotCount()
	emptyIdx := -1
	for i := 0; i < n; i++ {
		s := c.slotAt(i)
		switch s.state {
		case Deleted:
			return i, true
		case Empty:
			if emptyIdx < 0 {
				emptyIdx = i
			}
		}
	}
	if emptyIdx >= 0 {
		return emptyIdx, true
	}
	return -1, false
}
