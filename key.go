// Package mcuforest implements a space-constrained container library for
// microcontrollers (open-addressing hash tables capped at 255 slots,
// bit-packed vectors, chained-hash overflow) and, on top of it, a Random
// Forest classifier with streaming drift adaptation. Every container in
// this module is keyed by Key, an order-preserving byte-slice key
// representation shared across the hash map, chained map and the
// forest's own hyperparameter-grid memoization.
package mcuforest

import (
	"encoding/binary"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is an opaque byte slice used as the canonical key representation
// for every container in this module. Build one from a primitive value
// or a normalized string with the constructors below rather than
// wrapping []byte directly.
//
// Every integer constructor writes an 8-byte big-endian representation
// after adding an offset of 1<<63 to the value's int64/uint64 bit
// pattern. That offset makes lexicographic (byte-wise) Key comparison
// agree with numeric comparison, for both signed and unsigned inputs and
// across source widths: FromInt32(x) and FromInt64(x) produce the same
// Key for the same numeric x, and math.MinInt64 maps to the all-zero
// Key so negative values sort before zero and positive values. For
// unsigned inputs the order holds only below 1<<63: FromUint64 and
// FromUint wrap values of 1<<63 and above to Keys that sort before
// FromUint64(0).
type Key []byte

const int64KeyOffset = uint64(1) << 63

func encodeOffsetUint64(u uint64) Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u+int64KeyOffset)
	return FromBytes(b[:])
}

func encodeOffsetInt64(i int64) Key {
	return encodeOffsetUint64(uint64(i))
}

// FromBytes returns a copy of b as a Key. A nil b yields an empty
// (zero-length, non-nil) Key.
func FromBytes(b []byte) Key {
	if b == nil {
		return []byte{}
	}
	kb := make([]byte, len(b))
	copy(kb, b)
	return Key(kb)
}

// FromString returns a Key built from s after normalizing it to Unicode
// NFC, so that visually identical strings with different combining-mark
// decompositions compare equal as Keys. Case and surrounding whitespace
// are preserved.
func FromString(s string) Key {
	return FromBytes([]byte(norm.NFC.String(s)))
}

// FromInt converts i to an order-preserving 8-byte Key.
func FromInt(i int) Key { return encodeOffsetInt64(int64(i)) }

// FromInt64 converts i to an order-preserving 8-byte Key.
func FromInt64(i int64) Key { return encodeOffsetInt64(i) }

// FromInt32 converts i to an order-preserving 8-byte Key.
func FromInt32(i int32) Key { return encodeOffsetInt64(int64(i)) }

// FromInt16 converts i to an order-preserving 8-byte Key.
func FromInt16(i int16) Key { return encodeOffsetInt64(int64(i)) }

// FromInt8 converts i to an order-preserving 8-byte Key.
func FromInt8(i int8) Key { return encodeOffsetInt64(int64(i)) }

// FromUint converts u to an order-preserving 8-byte Key.
func FromUint(u uint) Key { return encodeOffsetUint64(uint64(u)) }

// FromUint64 converts u to an order-preserving 8-byte Key.
func FromUint64(u uint64) Key { return encodeOffsetUint64(u) }

// FromUint32 converts u to an order-preserving 8-byte Key.
func FromUint32(u uint32) Key { return encodeOffsetUint64(uint64(u)) }

// FromUint16 converts u to an order-preserving 8-byte Key.
func FromUint16(u uint16) Key { return encodeOffsetUint64(uint64(u)) }

// FromUint8 converts u to an order-preserving 8-byte Key.
func FromUint8(u uint8) Key { return encodeOffsetUint64(uint64(u)) }

// FromByte is an alias for FromUint8.
func FromByte(b byte) Key { return FromUint8(b) }

// Bytes returns a copy of the Key's contents.
func (k Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	b := make([]byte, len(k))
	copy(b, k)
	return b
}

// Clone returns an independent copy of k. Clone of a nil Key is nil.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	return FromBytes(k)
}

// String renders the Key as uppercase hex byte tuples, e.g. "[01,AB,00]".
func (k Key) String() string {
	if len(k) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	const hex = "0123456789ABCDEF"
	for i, b := range k {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0F])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Equal reports whether k and other hold identical bytes.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// LessThan reports whether k sorts lexicographically before other.
func (k Key) LessThan(other Key) bool {
	for i := 0; i < len(k) && i < len(other); i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}

// IsEmpty reports whether k is nil or zero-length.
func (k Key) IsEmpty() bool { return len(k) == 0 }
