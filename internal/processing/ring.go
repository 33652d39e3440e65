package processing

// RingBuffer is the sliding window of the most recent samples. Its length is
// always its capacity; slots that have not seen a sample yet hold the filler.
// It is owned by the monitor's update loop and is not safe for concurrent use.
type RingBuffer struct {
	values []float64
	head   int
}

func NewRingBuffer(capacity int, filler float64) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	r := &RingBuffer{values: make([]float64, capacity)}
	r.Fill(filler)
	return r
}

// Push appends a sample and evicts the oldest one.
func (r *RingBuffer) Push(v float64) {
	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
}

// Snapshot returns a copy of the window, oldest first.
func (r *RingBuffer) Snapshot() []float64 {
	out := make([]float64, len(r.values))
	n := copy(out, r.values[r.head:])
	copy(out[n:], r.values[:r.head])
	return out
}

// Fill overwrites every slot with v.
func (r *RingBuffer) Fill(v float64) {
	for i := range r.values {
		r.values[i] = v
	}
	r.head = 0
}

func (r *RingBuffer) Len() int {
	return len(r.values)
}

// Newest returns the most recently pushed value.
func (r *RingBuffer) Newest() float64 {
	idx := r.head - 1
	if idx < 0 {
		idx = len(r.values) - 1
	}
	return r.values[idx]
}
