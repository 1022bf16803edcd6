package denoiser

import (
	"math/bits"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	atomic "go.uber.org/atomic"
)

var (
	metricPoolSlabsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "denoiser",
		Name:      "pool_slabs_in_use",
		Help:      "Number of slabs currently checked out of the shared pool.",
	})
	metricPoolSlabsFree = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "denoiser",
		Name:      "pool_slabs_free",
		Help:      "Number of slabs currently idle in the shared pool's free lists.",
	})
	metricPoolUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "denoiser",
		Name:      "pool_users",
		Help:      "Number of pipelines currently holding a reference to the shared pool.",
	})
)

// SlabHandle is a borrowed []float64 from a SharedPool. Callers must call
// Release exactly once when done; the underlying slab is not safe to use
// after Release.
type SlabHandle struct {
	Data []float64
	pool *SharedPool
	size int
}

// Release returns the slab to the pool it was acquired from, subject to
// max_arrays_per_size retention (§4.12). Calling Release on a handle whose
// pool has no room simply drops the slab for GC.
func (h *SlabHandle) Release() {
	if h == nil || h.pool == nil {
		return
	}
	h.pool.release(h)
	h.pool = nil
}

// SharedPool is a process-wide, reference-counted pool of float64 slabs
// keyed by size bucket (next power of two), used to avoid per-window
// allocation of approximation/detail/scratch buffers (§4.12).
type SharedPool struct {
	mu          sync.Mutex
	buckets     map[int][][]float64
	maxPerSize  int
	users       atomic.Int64
	slabsInUse  atomic.Int64
	slabsFree   atomic.Int64
}

// NewSharedPool constructs a pool retaining at most maxArraysPerSize idle
// slabs per size bucket.
func NewSharedPool(maxArraysPerSize int) (*SharedPool, error) {
	if maxArraysPerSize < 1 {
		return nil, &InvalidArgumentError{Field: "maxArraysPerSize", Value: maxArraysPerSize}
	}
	return &SharedPool{
		buckets:    make(map[int][][]float64),
		maxPerSize: maxArraysPerSize,
	}, nil
}

func bucketFor(n int) int {
	if n < 1 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

// Acquire checks out a slab with length exactly n (capacity equal to the
// next power of two bucket), reusing an idle slab when one is available.
func (p *SharedPool) Acquire(n int) *SlabHandle {
	bucket := bucketFor(n)

	p.mu.Lock()
	var data []float64
	free := p.buckets[bucket]
	if len(free) > 0 {
		data = free[len(free)-1]
		p.buckets[bucket] = free[:len(free)-1]
		p.slabsFree.Dec()
	} else {
		data = make([]float64, bucket)
	}
	p.mu.Unlock()

	p.slabsInUse.Inc()
	metricPoolSlabsInUse.Set(float64(p.slabsInUse.Load()))
	metricPoolSlabsFree.Set(float64(p.slabsFree.Load()))

	return &SlabHandle{Data: data[:n], pool: p, size: bucket}
}

func (p *SharedPool) release(h *SlabHandle) {
	p.mu.Lock()
	free := p.buckets[h.size]
	if len(free) < p.maxPerSize {
		slab := h.Data[:cap(h.Data)]
		for i := range slab {
			slab[i] = 0
		}
		p.buckets[h.size] = append(free, slab)
		p.slabsFree.Inc()
	}
	p.mu.Unlock()

	p.slabsInUse.Dec()
	metricPoolSlabsInUse.Set(float64(p.slabsInUse.Load()))
	metricPoolSlabsFree.Set(float64(p.slabsFree.Load()))
}

// AddUser increments the reference count of pipelines sharing this pool.
func (p *SharedPool) AddUser() {
	p.users.Inc()
	metricPoolUsers.Set(float64(p.users.Load()))
}

// RemoveUser decrements the reference count. Should be called exactly once
// per prior AddUser, typically from a pipeline's close().
func (p *SharedPool) RemoveUser() {
	p.users.Dec()
	metricPoolUsers.Set(float64(p.users.Load()))
}

// UserCount reports the number of active users.
func (p *SharedPool) UserCount() int64 { return p.users.Load() }

// ClearIfUnused drops all idle slabs if, and only if, no pipeline
// currently references the pool (§4.12). Returns true if it cleared.
func (p *SharedPool) ClearIfUnused() bool {
	if p.users.Load() > 0 {
		return false
	}
	p.mu.Lock()
	p.buckets = make(map[int][][]float64)
	p.mu.Unlock()
	p.slabsFree.Store(0)
	metricPoolSlabsFree.Set(0)
	return true
}
