// Package alloc provides the pluggable typed-allocation seam the rest of
// this module builds on. On a microcontroller the preferred backend is a
// large auxiliary memory pool (PSRAM) when present, with fallback to the
// general heap; this package models that as an interface with two
// implementations so the container layer never depends on a concrete
// memory source.
package alloc

import "sync"

// Header carries per-allocation bookkeeping: how many elements were
// requested and which pool actually served the request. It travels
// alongside the allocated slice rather than being reinterpreted from
// raw bytes prepended to the block.
type Header struct {
	Count    int
	FromPool bool
}

// Allocator hands out typed slices and reports which pool served a
// given allocation. Allocate never panics; it returns ok=false on
// exhaustion so callers can degrade gracefully, matching the resource-
// exhaustion handling the rest of this module expects.
type Allocator[T any] interface {
	Allocate(count int) ([]T, Header, bool)
	Deallocate(block []T)
	IsFromAlternatePool(block []T) bool
}

// HeapAllocator is the general-purpose backend: ordinary Go slice
// allocation. It never fails for sizes a process could plausibly
// request.
type HeapAllocator[T any] struct{}

// NewHeapAllocator returns an Allocator backed by the Go heap.
func NewHeapAllocator[T any]() *HeapAllocator[T] { return &HeapAllocator[T]{} }

func (HeapAllocator[T]) Allocate(count int) ([]T, Header, bool) {
	if count < 0 {
		return nil, Header{}, false
	}
	return make([]T, count), Header{Count: count}, true
}

func (HeapAllocator[T]) Deallocate(_ []T) {}

func (HeapAllocator[T]) IsFromAlternatePool(_ []T) bool { return false }

// PoolAllocator models the device-specific large-capacity memory pool.
// It recycles fixed-capacity blocks through a sync.Pool and falls back
// to delegating to a secondary Allocator (typically a HeapAllocator)
// when the pool cannot satisfy a request, matching the "prefer
// alternate pool on success, fall back on null" contract.
type PoolAllocator[T any] struct {
	blockCap int
	fallback Allocator[T]
	pool     sync.Pool
}

// NewPoolAllocator returns a PoolAllocator that recycles blocks of
// exactly blockCap elements and delegates to fallback for any request
// larger than that fixed block. The pool has no block limit: when no
// recycled block is available it makes a fresh one.
func NewPoolAllocator[T any](blockCap int, fallback Allocator[T]) *PoolAllocator[T] {
	p := &PoolAllocator[T]{blockCap: blockCap, fallback: fallback}
	p.pool.New = func() any {
		block := make([]T, blockCap)
		return &block
	}
	return p
}

func (p *PoolAllocator[T]) Allocate(count int) ([]T, Header, bool) {
	if count < 0 {
		return nil, Header{}, false
	}
	if count > p.blockCap {
		return p.fallback.Allocate(count)
	}
	blockPtr := p.pool.Get().(*[]T)
	block := (*blockPtr)[:count]
	return block, Header{Count: count, FromPool: true}, true
}

func (p *PoolAllocator[T]) Deallocate(block []T) {
	if cap(block) != p.blockCap {
		p.fallback.Deallocate(block)
		return
	}
	full := block[:cap(block)]
	var zero T
	for i := range full {
		full[i] = zero
	}
	p.pool.Put(&full)
}

func (p *PoolAllocator[T]) IsFromAlternatePool(block []T) bool {
	return cap(block) == p.blockCap
}
