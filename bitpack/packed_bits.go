package bitpack

import "github.com/tinyforest/mcuforest/alloc"

// PackedBitArray stores n lanes of bitWidth bits each (1 <= bitWidth <=
// 8) in a dense byte slice, byte-straddling lanes handled by combining
// the two bytes a lane spans. The checked Get/Set never touch memory
// outside the addressed lane's bits and return the zero value on an
// out-of-range index; GetUnsafe/SetUnsafe skip bounds checks entirely
// and are used only by callers that have already validated the index
// (the hot paths inside the map/set containers).
type PackedBitArray struct {
	bits     []byte
	bitWidth byte
	length   int
	alloc    alloc.Allocator[byte]
}

// NewPackedBitArray returns an array of length lanes, each bitWidth
// bits wide (1..8), all initialized to zero, backed by the heap.
func NewPackedBitArray(length int, bitWidth byte) *PackedBitArray {
	return NewPackedBitArrayWithAllocator(length, bitWidth, alloc.NewHeapAllocator[byte]())
}

// NewPackedBitArrayWithAllocator is NewPackedBitArray with an explicit
// backend for the underlying byte slice, so callers that want the
// device's large-capacity pool (alloc.PoolAllocator) rather than the
// general heap can supply one.
func NewPackedBitArrayWithAllocator(length int, bitWidth byte, a alloc.Allocator[byte]) *PackedBitArray {
	if bitWidth < 1 {
		bitWidth = 1
	}
	if bitWidth > 8 {
		bitWidth = 8
	}
	if a == nil {
		a = alloc.NewHeapAllocator[byte]()
	}
	totalBits := length * int(bitWidth)
	bytes, _, ok := a.Allocate((totalBits + 7) / 8)
	if !ok {
		bytes = make([]byte, (totalBits+7)/8)
	}
	return &PackedBitArray{
		bits:     bytes,
		bitWidth: bitWidth,
		length:   length,
		alloc:    a,
	}
}

// Len returns the number of lanes.
func (p *PackedBitArray) Len() int { return p.length }

// BitWidth returns the configured lane width.
func (p *PackedBitArray) BitWidth() byte { return p.bitWidth }

func (p *PackedBitArray) bitOffset(i int) int { return i * int(p.bitWidth) }

// Get returns the value stored at lane i, or 0 if i is out of range.
func (p *PackedBitArray) Get(i int) byte {
	if i < 0 || i >= p.length {
		return 0
	}
	return p.GetUnsafe(i)
}

// Set stores value (masked to BitWidth bits) at lane i. A no-op if i is
// out of range.
func (p *PackedBitArray) Set(i int, value byte) {
	if i < 0 || i >= p.length {
		return
	}
	p.SetUnsafe(i, value)
}

// GetUnsafe returns the value at lane i without bounds checking.
func (p *PackedBitArray) GetUnsafe(i int) byte {
	bitOff := p.bitOffset(i)
	byteIdx := bitOff / 8
	bitInByte := uint(bitOff % 8)
	mask := uint16(1)<<p.bitWidth - 1

	lo := uint16(p.bits[byteIdx])
	var raw uint16
	if bitInByte+uint(p.bitWidth) <= 8 {
		raw = lo >> bitInByte
	} else {
		hi := uint16(p.bits[byteIdx+1])
		raw = (lo >> bitInByte) | (hi << (8 - bitInByte))
	}
	return byte(raw & mask)
}

// SetUnsafe stores value (masked to BitWidth bits) at lane i without
// bounds checking.
func (p *PackedBitArray) SetUnsafe(i int, value byte) {
	bitOff := p.bitOffset(i)
	byteIdx := bitOff / 8
	bitInByte := uint(bitOff % 8)
	mask := uint16(1)<<p.bitWidth - 1
	v := uint16(value) & mask

	if bitInByte+uint(p.bitWidth) <= 8 {
		clearMask := byte(mask << bitInByte)
		p.bits[byteIdx] = (p.bits[byteIdx] &^ clearMask) | byte(v<<bitInByte)
		return
	}
	loBits := 8 - bitInByte
	loMask := byte(mask<<bitInByte) & 0xFF
	p.bits[byteIdx] = (p.bits[byteIdx] &^ loMask) | byte(v<<bitInByte)

	hiMask := byte(mask >> loBits)
	p.bits[byteIdx+1] = (p.bits[byteIdx+1] &^ hiMask) | byte(v>>loBits)
}

// CopyElements copies count lanes from src starting at lane 0 into p
// starting at lane 0, preserving src's bit-exact values. src and p may
// have different physical byte layouts but must share a bit width.
func (p *PackedBitArray) CopyElements(src *PackedBitArray, count int) {
	for i := 0; i < count && i < p.length && i < src.length; i++ {
		p.SetUnsafe(i, src.GetUnsafe(i))
	}
}
