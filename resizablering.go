package denoiser

import (
	"math/bits"
	"sync"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// ResizableRing wraps a RingBuffer behind an atomically-swapped pointer so
// its capacity can grow or shrink to a new power of two at runtime while
// preserving pending data and allowing the single producer/consumer to keep
// operating without external locking on the fast path.
type ResizableRing struct {
	mu       sync.Mutex
	ring     *RingBuffer
	minCap   int
	maxCap   int
	cooldown time.Duration
	limiter  *catrate.Limiter
}

// NewResizableRing constructs a ResizableRing with an initial capacity
// (already a power of two), clamped to [minCap, maxCap].
func NewResizableRing(initialCap, minCap, maxCap int, cooldown time.Duration) (*ResizableRing, error) {
	if minCap < 2 || minCap&(minCap-1) != 0 {
		return nil, &InvalidArgumentError{Field: "minCap", Value: minCap, Cause: errInvalidCapacity{}}
	}
	if maxCap < minCap || maxCap&(maxCap-1) != 0 {
		return nil, &InvalidArgumentError{Field: "maxCap", Value: maxCap, Cause: errInvalidCapacity{}}
	}
	if cooldown <= 0 {
		return nil, &InvalidArgumentError{Field: "cooldown", Value: cooldown}
	}
	ring, err := NewRingBuffer(clampPow2(initialCap, minCap, maxCap))
	if err != nil {
		return nil, err
	}
	return &ResizableRing{
		ring:     ring,
		minCap:   minCap,
		maxCap:   maxCap,
		cooldown: cooldown,
		// a single category ("resize") tracked over one sliding window is
		// exactly catrate's Limiter with one rate: at most 1 event per
		// cooldown.
		limiter: catrate.NewLimiter(map[time.Duration]int{cooldown: 1}),
	}, nil
}

func clampPow2(v, lo, hi int) int {
	p := nextPow2(v)
	if p < lo {
		p = lo
	}
	if p > hi {
		p = hi
	}
	return p
}

func nextPow2(v int) int {
	if v < 1 {
		return 1
	}
	if v&(v-1) == 0 {
		return v
	}
	return 1 << bits.Len(uint(v))
}

// Ring returns the currently active RingBuffer. The returned pointer is
// stable for the lifetime between resizes; callers (producer/consumer)
// should re-fetch it after observing a resize if they cache it long-term.
func (r *ResizableRing) Ring() *RingBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring
}

// Resize explicitly sets a new capacity. new_cap is rounded up to the next
// power of two, then clamped to [minCap, maxCap]. Returns an error if the
// input is out of range of what rounding/clamping could produce (i.e. <1).
func (r *ResizableRing) Resize(newCap int) error {
	if newCap < 1 {
		return &InvalidArgumentError{Field: "newCap", Value: newCap}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	target := clampPow2(newCap, r.minCap, r.maxCap)
	if target == r.ring.Capacity() {
		return nil
	}
	r.swap(target)
	return nil
}

// ForceResize behaves like Resize but bypasses the cooldown gate used by
// the automatic path (it is an explicit, caller-driven operation).
func (r *ResizableRing) ForceResize(newCap int) error {
	return r.Resize(newCap)
}

// ResizeBasedOnUtilization implements the adaptive policy from §4.11: grow
// when utilisation exceeds 0.85, shrink when it drops below 0.25, gated by
// the cooldown. Returns false (no error) when clamped/unchanged/cooled-down
// -- only an actual capacity change returns true.
func (r *ResizableRing) ResizeBasedOnUtilization(utilization float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cap_ := r.ring.Capacity()
	var target int
	switch {
	case utilization > 0.85 && cap_ < r.maxCap:
		target = clampPow2(cap_*2, r.minCap, r.maxCap)
	case utilization < 0.25 && cap_ > r.minCap:
		target = clampPow2(cap_/2, r.minCap, r.maxCap)
	default:
		return false
	}
	if target == cap_ {
		return false
	}
	if _, ok := r.limiter.Allow("resize"); !ok {
		return false
	}
	r.swap(target)
	return true
}

// swap allocates a new backing ring, copies pending data starting at
// offset 0, and atomically repoints r.ring. Must be called with r.mu held.
func (r *ResizableRing) swap(newCap int) {
	old := r.ring
	fresh, err := NewRingBuffer(newCap)
	if err != nil {
		// newCap is always produced by clampPow2, which only emits valid
		// powers of two within range; this is unreachable in practice.
		panic(&InternalError{Cause: err})
	}
	pending := old.Available()
	buf := make([]float64, pending)
	old.ReadInto(buf)
	fresh.WriteBatch(buf)
	r.ring = fresh
	old.Clear()
}
