package denoiser

import "sync"

// StreamingWindow is a view layered on a RingBuffer that yields overlapping
// windows at a configured hop size. When the current window does not wrap
// the ring's backing array, WindowView returns a zero-copy slice directly
// into the ring; otherwise callers fall back to WindowCopy, which
// materialises the window into a caller-supplied buffer.
type StreamingWindow struct {
	ring       *RingBuffer
	windowSize int
	hopSize    int
}

// NewStreamingWindow constructs a StreamingWindow over ring with the given
// window and hop sizes. 1 <= hop <= window, and window must not exceed the
// ring's capacity.
func NewStreamingWindow(ring *RingBuffer, windowSize, hopSize int) (*StreamingWindow, error) {
	if windowSize <= 0 {
		return nil, &InvalidArgumentError{Field: "windowSize", Value: windowSize}
	}
	if hopSize <= 0 || hopSize > windowSize {
		return nil, &InvalidArgumentError{Field: "hopSize", Value: hopSize}
	}
	if windowSize > ring.Capacity() {
		return nil, &InvalidArgumentError{Field: "windowSize", Value: windowSize,
			Cause: wrapErrExceedsRingCapacity}
	}
	return &StreamingWindow{ring: ring, windowSize: windowSize, hopSize: hopSize}, nil
}

var wrapErrExceedsRingCapacity = errExceedsRingCapacity{}

type errExceedsRingCapacity struct{}

func (errExceedsRingCapacity) Error() string { return "window size exceeds ring buffer capacity" }

// HasWindow reports whether the ring currently holds at least WindowSize
// readable samples.
func (w *StreamingWindow) HasWindow() bool {
	return w.ring.Available() >= w.windowSize
}

// WindowSize returns the configured window length.
func (w *StreamingWindow) WindowSize() int { return w.windowSize }

// HopSize returns the configured hop (advance) length.
func (w *StreamingWindow) HopSize() int { return w.hopSize }

// OverlapSize returns window-hop, the number of samples shared between
// consecutive windows.
func (w *StreamingWindow) OverlapSize() int { return w.windowSize - w.hopSize }

// windowScratchPool is a sync.Pool of scratch slices for the copy fallback
// path; a pooled slice that is already large enough is reused instead of
// allocating a new one for each wrapped window.
var windowScratchPool = sync.Pool{
	New: func() any { return new([]float64) },
}

// WindowCopy materialises the current window into dst (which is grown if
// necessary) and returns the slice. It is always safe to call, whether or
// not the window wraps.
func (w *StreamingWindow) WindowCopy(dst []float64) []float64 {
	if cap(dst) < w.windowSize {
		dst = make([]float64, w.windowSize)
	} else {
		dst = dst[:w.windowSize]
	}
	w.ring.PeekInto(dst, w.windowSize)
	return dst
}

// WindowView returns a zero-copy slice into the ring's backing array when
// the current window does not wrap, or (nil, false) when it does -- in
// which case the caller should use WindowCopy.
func (w *StreamingWindow) WindowView() ([]float64, bool) {
	if !w.HasWindow() {
		return nil, false
	}
	head := w.ring.head.Load()
	start := head & w.ring.mask
	if int(start)+w.windowSize > len(w.ring.storage) {
		return nil, false
	}
	return w.ring.storage[start : start+uint64(w.windowSize)], true
}

// Advance shifts the read cursor by HopSize, releasing that many slots of
// the ring. It is an error to call Advance when HasWindow() is false.
func (w *StreamingWindow) Advance() error {
	if !w.HasWindow() {
		return &InvalidStateError{Op: "StreamingWindow.Advance", State: StateReady}
	}
	w.ring.Skip(w.hopSize)
	return nil
}

// FillForStreaming writes data into the backing ring (as a producer would)
// and reports whether a full window is now available. It is a convenience
// wrapper used by tests and simple single-goroutine callers.
func (w *StreamingWindow) FillForStreaming(data []float64) bool {
	w.ring.WriteBatch(data)
	return w.HasWindow()
}

// acquireScratch returns a scratch slice of length n taken from the pool,
// reallocating it when its capacity is below n.
func acquireScratch(n int) *[]float64 {
	s := windowScratchPool.Get().(*[]float64)
	if cap(*s) < n {
		*s = make([]float64, n)
	} else {
		*s = (*s)[:n]
	}
	return s
}

// releaseScratch returns s to the pool for reuse. The pool keeps the
// backing array alive until the runtime evicts pooled items.
func releaseScratch(s *[]float64) {
	windowScratchPool.Put(s)
}
