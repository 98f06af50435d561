package bitpack

import (
	"testing"

	"github.com/tinyforest/mcuforest/alloc"
)

func TestPackedVectorWithAllocatorSurvivesGrowth(t *testing.T) {
	pool := alloc.NewPoolAllocator[byte](1, alloc.NewHeapAllocator[byte]())
	v := NewPackedVectorWithAllocator(4, 1, pool)
	for i := 0; i < 30; i++ {
		v.PushBack(byte(i % 16))
	}
	if v.Len() != 30 {
		t.Fatalf("expected length 30, got %d", v.Len())
	}
	if v.storage.alloc != pool {
		t.Fatal("expected grow to keep reusing the supplied allocator")
	}
}

func TestPackedVectorPushBackGrows(t *testing.T) {
	v := NewPackedVector(4, 2)
	for i := 0; i < 50; i++ {
		v.PushBack(byte(i % 16))
	}
	if v.Len() != 50 {
		t.Fatalf("expected length 50, got %d", v.Len())
	}
	for i := 0; i < 50; i++ {
		if got := v.Get(i); got != byte(i%16) {
			t.Fatalf("index %d: got %d, want %d", i, got, i%16)
		}
	}
}

func TestPackedVectorWideWidthDoublesEvenWhenSmall(t *testing.T) {
	v := NewPackedVector(8, 10)
	for i := 0; i < 10; i++ {
		v.PushBack(byte(i))
	}
	if v.Cap() != 10 {
		t.Fatalf("capacity before growth = %d, want 10", v.Cap())
	}
	v.PushBack(10)
	if v.Cap() != 20 {
		t.Fatalf("8-bit vector at capacity 10 grew to %d, want doubled to 20", v.Cap())
	}
}

func TestPackedVectorNarrowWidthGrowsByTenEvenWhenLarge(t *testing.T) {
	v := NewPackedVector(2, 100)
	for i := 0; i < 100; i++ {
		v.PushBack(byte(i % 4))
	}
	if v.Cap() != 100 {
		t.Fatalf("capacity before growth = %d, want 100", v.Cap())
	}
	v.PushBack(1)
	if v.Cap() != 110 {
		t.Fatalf("2-bit vector at capacity 100 grew to %d, want +10 to 110", v.Cap())
	}
}

func TestPackedVectorOneBitGrowsBySingleLane(t *testing.T) {
	v := NewPackedVector(1, 1)
	before := v.Cap()
	v.PushBack(1)
	v.PushBack(1)
	v.PushBack(0)
	if v.Cap() != before+2 {
		t.Fatalf("1-bit vector at capacity %d grew to %d after 3 pushes, want +1 per growth to %d", before, v.Cap(), before+2)
	}
	if v.Len() != 3 {
		t.Fatalf("expected length 3, got %d", v.Len())
	}
}

func TestPackedVectorSetWithinBounds(t *testing.T) {
	v := NewPackedVector(3, 4)
	v.PushBack(1)
	v.PushBack(2)
	v.Set(0, 7)
	if v.Get(0) != 7 {
		t.Fatalf("expected overwritten value 7, got %d", v.Get(0))
	}
	v.Set(99, 7) // no-op, must not panic
}

func TestPackedVectorClearResetsLengthNotCapacity(t *testing.T) {
	v := NewPackedVector(2, 4)
	for i := 0; i < 10; i++ {
		v.PushBack(byte(i % 4))
	}
	capBefore := v.Cap()
	v.Clear()
	if v.Len() != 0 {
		t.Fatalf("expected length 0 after Clear, got %d", v.Len())
	}
	if v.Cap() != capBefore {
		t.Fatalf("Clear should not release capacity: before=%d after=%d", capBefore, v.Cap())
	}
}
