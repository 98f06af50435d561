package bitpack

import "testing"

func TestPackedBitArrayScenarioBWidth2(t *testing.T) {
	p := NewPackedBitArray(8, 2)
	p.Set(0, 3)
	p.Set(1, 2)
	p.Set(7, 1)
	p.Set(3, 0)

	want := []byte{3, 2, 0, 0, 0, 0, 0, 1}
	for i, w := range want {
		if got := p.Get(i); got != w {
			t.Fatalf("lane %d: got %d, want %d", i, got, w)
		}
	}
	if len(p.bits) != 2 {
		t.Fatalf("expected 2 bytes of storage for 8 lanes of 2 bits, got %d", len(p.bits))
	}
}

func TestPackedBitArrayMasksValue(t *testing.T) {
	p := NewPackedBitArray(4, 3)
	p.Set(0, 0xFF)
	if got := p.Get(0); got != 0x07 {
		t.Fatalf("expected value masked to 3 bits (0x07), got %#x", got)
	}
}

func TestPackedBitArrayByteStraddlingLanes(t *testing.T) {
	p := NewPackedBitArray(10, 5)
	for i := 0; i < 10; i++ {
		p.Set(i, byte(i+1))
	}
	for i := 0; i < 10; i++ {
		if got := p.Get(i); got != byte(i+1) {
			t.Fatalf("lane %d: got %d, want %d", i, got, i+1)
		}
	}
}

func TestPackedBitArrayWritesDoNotLeakBetweenLanes(t *testing.T) {
	p := NewPackedBitArray(6, 6)
	for i := 0; i < 6; i++ {
		p.Set(i, 63)
	}
	p.Set(2, 0)
	for i := 0; i < 6; i++ {
		want := byte(63)
		if i == 2 {
			want = 0
		}
		if got := p.Get(i); got != want {
			t.Fatalf("lane %d: got %d, want %d (write to lane 2 leaked)", i, got, want)
		}
	}
}

func TestPackedBitArrayOutOfRangeChecked(t *testing.T) {
	p := NewPackedBitArray(4, 2)
	if got := p.Get(-1); got != 0 {
		t.Fatalf("expected 0 for negative index, got %d", got)
	}
	if got := p.Get(10); got != 0 {
		t.Fatalf("expected 0 for out-of-range index, got %d", got)
	}
	p.Set(10, 3) // must not panic
}

func TestPackedBitArrayCopyElements(t *testing.T) {
	src := NewPackedBitArray(5, 4)
	for i := 0; i < 5; i++ {
		src.Set(i, byte(i))
	}
	dst := NewPackedBitArray(5, 4)
	dst.CopyElements(src, 5)
	for i := 0; i < 5; i++ {
		if dst.Get(i) != src.Get(i) {
			t.Fatalf("lane %d: copy mismatch got %d want %d", i, dst.Get(i), src.Get(i))
		}
	}
}

func TestPackedBitArrayBitWidth8BoundaryAligned(t *testing.T) {
	p := NewPackedBitArray(3, 8)
	p.Set(0, 0xAB)
	p.Set(1, 0xCD)
	p.Set(2, 0xEF)
	if p.Get(0) != 0xAB || p.Get(1) != 0xCD || p.Get(2) != 0xEF {
		t.Fatalf("byte-aligned 8-bit lanes round-tripped incorrectly")
	}
}
