// ringbuffer.go provides a wait-free, single-producer single-consumer
// (SPSC) ring buffer of float64 samples with O(1) operations and zero
// allocations per write/read.
//
// # Thread-Safety Guarantees
//
// This ring buffer is lock-free for its documented use case:
//   - Single goroutine may call Write/WriteBatch (the producer)
//   - Single goroutine may call Read/ReadInto/PeekInto/Skip (the consumer)
//   - All other goroutines must not access the buffer directly
//
// Violating these constraints (multiple producers or consumers) causes
// data races and undefined behavior; ResizableRing is the only component
// permitted to swap the underlying storage, and it does so behind a brief
// mutual-exclusion section (see resizablering.go).
package denoiser

import "sync/atomic"

// RingBuffer is a fixed-capacity, power-of-two SPSC lock-free queue of
// float64 samples. Usable capacity is capacity-1 slots: the head/tail
// counters are unbounded and reduced modulo capacity via a mask, and the
// one unused slot disambiguates full from empty without a separate flag.
type RingBuffer struct {
	_        [cacheLinePad]byte
	storage  []float64
	mask     uint64
	capacity uint64

	head atomic.Uint64 // consumer-owned read cursor
	_    [cacheLinePad - 8]byte
	tail atomic.Uint64 // producer-owned write cursor
	_    [cacheLinePad - 8]byte
}

// NewRingBuffer constructs a RingBuffer with the given capacity, which must
// be a power of two >= 2.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, &InvalidArgumentError{Field: "capacity", Value: capacity,
			Cause: errInvalidCapacity{}}
	}
	return &RingBuffer{
		storage:  make([]float64, capacity),
		mask:     uint64(capacity) - 1,
		capacity: uint64(capacity),
	}, nil
}

type errInvalidCapacity struct{}

func (errInvalidCapacity) Error() string { return "capacity must be a power of two >= 2" }

// Capacity returns the fixed slot count backing the buffer (including the
// one slot that is never used to disambiguate full/empty).
func (r *RingBuffer) Capacity() int { return int(r.capacity) }

// Available returns the number of readable samples currently buffered.
// Safe to call from either the producer or consumer goroutine.
func (r *RingBuffer) Available() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(tail - head)
}

// Remaining returns the number of additional samples that can be written
// before the buffer is full.
func (r *RingBuffer) Remaining() int {
	return int(r.capacity) - 1 - r.Available()
}

// Write appends a single sample. Returns false if the buffer is full.
// Wait-free, producer-only.
func (r *RingBuffer) Write(v float64) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= r.capacity-1 {
		return false
	}
	r.storage[tail&r.mask] = v
	r.tail.Store(tail + 1)
	return true
}

// WriteBatch writes up to min(Remaining(), len(values)) samples, splitting
// into (at most) two contiguous copies when the write range wraps. Returns
// the number of samples written.
func (r *RingBuffer) WriteBatch(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	tail := r.tail.Load()
	head := r.head.Load()
	free := int(r.capacity-1) - int(tail-head)
	if free <= 0 {
		return 0
	}
	n := len(values)
	if n > free {
		n = free
	}

	start := tail & r.mask
	firstRun := int(r.capacity) - int(start)
	if firstRun > n {
		firstRun = n
	}
	copy(r.storage[start:start+uint64(firstRun)], values[:firstRun])
	if firstRun < n {
		copy(r.storage[0:n-firstRun], values[firstRun:n])
	}
	r.tail.Store(tail + uint64(n))
	return n
}

// Read pops a single sample. Returns (0, false) if the buffer is empty.
// Wait-free, consumer-only.
func (r *RingBuffer) Read() (float64, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return 0, false
	}
	v := r.storage[head&r.mask]
	r.head.Store(head + 1)
	return v, true
}

// ReadInto copies up to len(dst) samples into dst, removing them from the
// buffer. Returns the number of samples copied.
func (r *RingBuffer) ReadInto(dst []float64) int {
	n := r.PeekInto(dst, len(dst))
	if n > 0 {
		r.head.Store(r.head.Load() + uint64(n))
	}
	return n
}

// PeekInto copies up to min(n, len(dst), Available()) samples into dst
// without removing them from the buffer.
func (r *RingBuffer) PeekInto(dst []float64, n int) int {
	head := r.head.Load()
	tail := r.tail.Load()
	avail := int(tail - head)
	if n > avail {
		n = avail
	}
	if n > len(dst) {
		n = len(dst)
	}
	if n <= 0 {
		return 0
	}
	start := head & r.mask
	firstRun := int(r.capacity) - int(start)
	if firstRun > n {
		firstRun = n
	}
	copy(dst[:firstRun], r.storage[start:start+uint64(firstRun)])
	if firstRun < n {
		copy(dst[firstRun:n], r.storage[0:n-firstRun])
	}
	return n
}

// Skip discards up to n buffered samples, returning the number discarded.
// Consumer-only.
func (r *RingBuffer) Skip(n int) int {
	head := r.head.Load()
	tail := r.tail.Load()
	avail := int(tail - head)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	r.head.Store(head + uint64(n))
	return n
}

// Clear discards all buffered samples. Not safe to call concurrently with
// Write/Read from the owning producer/consumer; intended for use only
// while the pipeline holds exclusive access (construction, reset).
func (r *RingBuffer) Clear() {
	r.head.Store(r.tail.Load())
}
