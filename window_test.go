package denoiser

import "testing"

func TestNewStreamingWindowValidatesArgs(t *testing.T) {
	ring, err := NewRingBuffer(16)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	if _, err := NewStreamingWindow(ring, 0, 1); err == nil {
		t.Error("windowSize 0 should be rejected")
	}
	if _, err := NewStreamingWindow(ring, 4, 0); err == nil {
		t.Error("hopSize 0 should be rejected")
	}
	if _, err := NewStreamingWindow(ring, 4, 5); err == nil {
		t.Error("hopSize > windowSize should be rejected")
	}
	if _, err := NewStreamingWindow(ring, 32, 1); err == nil {
		t.Error("windowSize > ring capacity should be rejected")
	}
}

func TestStreamingWindowHasWindowAndAdvance(t *testing.T) {
	ring, err := NewRingBuffer(16)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	w, err := NewStreamingWindow(ring, 4, 2)
	if err != nil {
		t.Fatalf("NewStreamingWindow: %v", err)
	}
	if w.HasWindow() {
		t.Error("empty ring should not have a full window yet")
	}
	ring.WriteBatch([]float64{1, 2, 3})
	if w.HasWindow() {
		t.Error("3 samples should not satisfy a window of 4")
	}
	ring.WriteBatch([]float64{4})
	if !w.HasWindow() {
		t.Fatal("4 samples should satisfy a window of 4")
	}

	view, zeroCopy := w.WindowView()
	if !zeroCopy {
		t.Fatal("a non-wrapping window should be zero-copy")
	}
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if view[i] != want[i] {
			t.Errorf("view[%d] = %v, want %v", i, view[i], want[i])
		}
	}

	if err := w.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if w.HasWindow() {
		t.Error("after advancing by hop=2 only 2 samples remain, should not have a window")
	}
}

func TestStreamingWindowAdvanceWithoutWindowFails(t *testing.T) {
	ring, err := NewRingBuffer(16)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	w, err := NewStreamingWindow(ring, 4, 2)
	if err != nil {
		t.Fatalf("NewStreamingWindow: %v", err)
	}
	if err := w.Advance(); err == nil {
		t.Error("Advance without a full window should fail")
	}
}

func TestStreamingWindowCopyFallbackOnWrap(t *testing.T) {
	ring, err := NewRingBuffer(8)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	w, err := NewStreamingWindow(ring, 4, 4)
	if err != nil {
		t.Fatalf("NewStreamingWindow: %v", err)
	}
	// push the head forward so the next window wraps the backing array.
	ring.WriteBatch([]float64{0, 0, 0, 0, 0, 0})
	ring.Skip(6)
	ring.WriteBatch([]float64{1, 2, 3, 4})

	if !w.HasWindow() {
		t.Fatal("expected a full window")
	}
	_, zeroCopy := w.WindowView()
	if zeroCopy {
		t.Fatal("expected the window to wrap and require a copy")
	}
	dst := w.WindowCopy(nil)
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestAcquireReleaseScratch(t *testing.T) {
	s := acquireScratch(16)
	if cap(*s) < 16 {
		t.Fatalf("scratch capacity %d < 16", cap(*s))
	}
	releaseScratch(s)
	s2 := acquireScratch(4)
	if len(*s2) != 4 {
		t.Errorf("scratch length %d, want 4", len(*s2))
	}
}
