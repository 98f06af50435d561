// Package hashkernel provides the integer/float to small-range index
// function family used by every open-addressing table in this module,
// plus the coprime-stride linear-probe sequence built on top of it.
//
// Mixing constants are derived per table capacity, in two variants:
// Accurate is tuned for fewer probe collisions at the cost of more
// mixing work, Compact for code size. Both fold the capacity into a
// Fibonacci-hashing odd multiplier feeding an avalanche mix, so each
// capacity gets its own distribution rather than sharing one global
// constant.
package hashkernel

import (
	"math"

	"github.com/dolthub/maphash"
)

// Quality selects which mixing table a Kernel uses.
type Quality byte

const (
	// Accurate favors fewer probe collisions; three avalanche rounds.
	Accurate Quality = iota
	// Compact favors smaller generated code; one avalanche round.
	Compact
)

const fibonacci64 = 0x9E3779B97F4A7C15

// Kernel maps keys to indices in [0, cap) for a fixed table capacity,
// and produces the coprime probe stride for that capacity.
type Kernel struct {
	cap     int
	quality Quality
	mult    uint64
	step    int
	floats  maphash.Hasher[uint64]
}

// New returns a Kernel for tables of the given physical capacity
// (1..255). quality selects the mixing table; Accurate is the default
// choice for correctness-sensitive maps, Compact for code-size-
// constrained builds.
func New(capacity int, quality Quality) *Kernel {
	if capacity < 1 {
		capacity = 1
	}
	k := &Kernel{
		cap:     capacity,
		quality: quality,
		mult:    multiplierFor(capacity),
		floats:  maphash.NewHasher[uint64](),
	}
	k.step = strideFor(capacity)
	return k
}

// multiplierFor derives a capacity-specific odd Fibonacci-hashing
// multiplier. Folding the capacity into the multiplier (rather than
// using one constant for every table) is what lets a compile-time
// table be capacity-indexed: each capacity gets its own avalanche
// behavior instead of sharing one global constant.
func multiplierFor(capacity int) uint64 {
	m := fibonacci64 ^ (uint64(capacity) * 0x2545F4914F6CDD1D)
	return m | 1
}

// Hash maps an integer key into [0, cap).
func (k *Kernel) Hash(key uint64) int {
	x := key * k.mult
	switch k.quality {
	case Accurate:
		x ^= x >> 33
		x *= 0xFF51AFD7ED558CCD
		x ^= x >> 33
		x *= 0xC4CEB9FE1A85EC53
		x ^= x >> 33
	default: // Compact
		x ^= x >> 32
	}
	return int(x % uint64(k.cap))
}

// HashFloat64 converts f to an integer key via its canonical IEEE-754
// bit pattern (so +0.0 and -0.0 hash identically to +0.0, and NaN
// payloads are not required to compare bit-exact) and hashes it. The
// bit reinterpretation itself is delegated to a generic runtime hasher
// (github.com/dolthub/maphash) rather than a hand-rolled bit mixer, and
// then folded through the same capacity-indexed multiplier as integer
// keys so float and integer kernels agree on distribution quality.
func (k *Kernel) HashFloat64(f float64) int {
	if f == 0 {
		f = 0 // normalize -0.0
	}
	bitsVal := math.Float64bits(f)
	mixed := k.floats.Hash(bitsVal)
	return k.Hash(mixed)
}

// strideFor returns a probe stride in [1, capacity) coprime to
// capacity, computed once per resize. Linear probing with a coprime
// stride visits every slot before repeating, avoiding the degenerate
// cycles a non-coprime stride would produce.
func strideFor(capacity int) int {
	if capacity <= 1 {
		return 1
	}
	for stride := capacity - 1; stride >= 1; stride-- {
		if gcd(stride, capacity) == 1 {
			return stride
		}
	}
	return 1
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LinearProbe returns the next probe index after index, for a table of
// this kernel's capacity.
func (k *Kernel) LinearProbe(index int) int {
	return (index + k.step) % k.cap
}

// Capacity returns the physical capacity this kernel was built for.
func (k *Kernel) Capacity() int { return k.cap }

// Step returns the coprime probe stride for this kernel's capacity.
func (k *Kernel) Step() int { return k.step }

const (
	fnvOffsetBasis64 = 1469598103934665603
	fnvPrime64       = 1099511628211
)

// FNV1a64 hashes an arbitrary byte key to a uint64 using the FNV-1a
// algorithm. It is the shared byte-to-uint64 reduction for Keys:
// oamap.Map feeds its result to Hash, and chainedmap reduces it to a
// shard range. The forest's bootstrap-bag fingerprint (rng.HashIDs)
// runs its own FNV-1a pass over uint16 sample ids instead.
func FNV1a64(data []byte) uint64 {
	h := uint64(fnvOffsetBasis64)
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}
