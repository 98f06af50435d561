package bitpack

import "github.com/tinyforest/mcuforest/alloc"

// PackedVector layers size, capacity and a growth policy on top of a
// PackedBitArray. The original design specialized growth into TINY/
// SMALL/MEDIUM size-flag templates, with TINY additionally packing
// size and capacity into a single byte; this collapses that into one
// runtime-configurable type since the packing was a memory
// optimization with no behavioral difference from a full-width size
// field.
type PackedVector struct {
	storage  *PackedBitArray
	size     int
	bitWidth byte
}

// NewPackedVector returns an empty vector with initial capacity cap
// (lanes of bitWidth bits each, 1..8), backed by the heap.
func NewPackedVector(bitWidth byte, initialCap int) *PackedVector {
	return NewPackedVectorWithAllocator(bitWidth, initialCap, alloc.NewHeapAllocator[byte]())
}

// NewPackedVectorWithAllocator is NewPackedVector with an explicit
// backend for the vector's growing byte storage; every subsequent grow
// reuses this same allocator.
func NewPackedVectorWithAllocator(bitWidth byte, initialCap int, a alloc.Allocator[byte]) *PackedVector {
	if initialCap < 1 {
		initialCap = 1
	}
	return &PackedVector{
		storage:  NewPackedBitArrayWithAllocator(initialCap, bitWidth, a),
		bitWidth: bitWidth,
	}
}

// Len returns the number of elements currently stored.
func (v *PackedVector) Len() int { return v.size }

// Cap returns the current lane capacity.
func (v *PackedVector) Cap() int { return v.storage.Len() }

// Get returns the value at index i (0 <= i < Len).
func (v *PackedVector) Get(i int) byte {
	if i < 0 || i >= v.size {
		return 0
	}
	return v.storage.GetUnsafe(i)
}

// Set overwrites the value at index i (0 <= i < Len). A no-op
// otherwise.
func (v *PackedVector) Set(i int, value byte) {
	if i < 0 || i >= v.size {
		return
	}
	v.storage.SetUnsafe(i, value)
}

// PushBack appends value, growing storage per growthIncrement if full.
func (v *PackedVector) PushBack(value byte) {
	if v.size >= v.storage.Len() {
		v.grow()
	}
	v.storage.SetUnsafe(v.size, value)
	v.size++
}

// grow enlarges storage according to a bit-width-dependent policy: a
// 1-bit vector grows by +1 lane at a time to avoid disproportionate
// memory blowup relative to its tiny element size, 2-4-bit vectors
// grow by +10 lanes, and 5-8-bit vectors double, amortizing
// reallocation cost once elements are large enough that copying
// dominates.
func (v *PackedVector) grow() {
	oldCap := v.storage.Len()
	var newCap int
	switch {
	case v.bitWidth == 1:
		newCap = oldCap + 1
	case v.bitWidth <= 4:
		newCap = oldCap + 10
	default:
		newCap = oldCap * 2
	}
	next := NewPackedBitArrayWithAllocator(newCap, v.bitWidth, v.storage.alloc)
	next.CopyElements(v.storage, v.size)
	v.storage = next
}

// Clear resets the vector to empty without releasing capacity.
func (v *PackedVector) Clear() { v.size = 0 }
