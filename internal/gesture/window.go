package gesture

// Ring is a fixed-capacity FIFO buffer. Pushing into a full ring evicts
// the oldest element. Index 0 is always the oldest element.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates an empty ring holding at most capacity elements.
// It panics if capacity is not positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("gesture: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v as the newest element. When the ring is full the oldest
// element is overwritten and returned with evicted set to true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return old, false
	}

	old = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return old, true
}

// At returns the i-th element counted from the oldest.
// It panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("gesture: ring index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the ring holds Cap elements.
func (r *Ring[T]) Full() bool { return r.size == len(r.buf) }

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
