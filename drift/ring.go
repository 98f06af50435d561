package drift

import "github.com/tinyforest/mcuforest/dataset"

// sampleRing is a fixed-capacity FIFO over dataset.Sample: the retrain
// buffer and the tree-replacement streaming buffer are both instances
// of this, sized differently.
type sampleRing struct {
	buf  []dataset.Sample
	next int
	size int
}

func newSampleRing(capacity int) *sampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &sampleRing{buf: make([]dataset.Sample, capacity)}
}

func (r *sampleRing) push(s dataset.Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// items returns the ring's contents oldest-first.
func (r *sampleRing) items() []dataset.Sample {
	out := make([]dataset.Sample, r.size)
	start := r.next - r.size
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *sampleRing) len() int { return r.size }

// boolRing is a fixed-capacity rolling window over recent correctness
// outcomes, maintaining a running sum so accuracy() is O(1).
type boolRing struct {
	buf  []bool
	next int
	size int
	sum  int
}

func newBoolRing(capacity int) *boolRing {
	if capacity < 1 {
		capacity = 1
	}
	return &boolRing{buf: make([]bool, capacity)}
}

func (r *boolRing) push(v bool) {
	if r.size == len(r.buf) {
		if r.buf[r.next] {
			r.sum--
		}
	} else {
		r.size++
	}
	r.buf[r.next] = v
	if v {
		r.sum++
	}
	r.next = (r.next + 1) % len(r.buf)
}

func (r *boolRing) accuracy() float64 {
	if r.size == 0 {
		return 1
	}
	return float64(r.sum) / float64(r.size)
}
