package denoiser

import (
	"math/rand"
	"sync"
	"testing"
)

func TestNewRingBufferRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewRingBuffer(0); err == nil {
		t.Error("capacity 0 should be rejected")
	}
	if _, err := NewRingBuffer(3); err == nil {
		t.Error("capacity 3 should be rejected")
	}
	if _, err := NewRingBuffer(1); err == nil {
		t.Error("capacity 1 should be rejected")
	}
}

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	r, err := NewRingBuffer(8)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	for i := 0; i < 7; i++ {
		if !r.Write(float64(i)) {
			t.Fatalf("write %d should have succeeded", i)
		}
	}
	if r.Write(99) {
		t.Error("write into a full buffer should fail")
	}
	for i := 0; i < 7; i++ {
		v, ok := r.Read()
		if !ok {
			t.Fatalf("read %d should have succeeded", i)
		}
		if v != float64(i) {
			t.Errorf("read %d: got %v, want %v", i, v, float64(i))
		}
	}
	if _, ok := r.Read(); ok {
		t.Error("read from an empty buffer should fail")
	}
}

func TestRingBufferAvailableNeverExceedsCapacityMinusOne(t *testing.T) {
	r, err := NewRingBuffer(16)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		if rng.Intn(2) == 0 {
			r.Write(rng.Float64())
		} else {
			r.Read()
		}
		if r.Available() > r.Capacity()-1 {
			t.Fatalf("available %d exceeds capacity-1 %d", r.Available(), r.Capacity()-1)
		}
	}
}

func TestRingBufferWriteBatchWraps(t *testing.T) {
	r, err := NewRingBuffer(8)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	// advance head/tail near the wrap boundary first.
	for i := 0; i < 5; i++ {
		r.Write(float64(i))
	}
	buf := make([]float64, 5)
	r.ReadInto(buf)

	n := r.WriteBatch([]float64{10, 11, 12, 13, 14, 15})
	if n != 6 {
		t.Fatalf("WriteBatch: got %d, want 6", n)
	}
	out := make([]float64, 6)
	got := r.ReadInto(out)
	if got != 6 {
		t.Fatalf("ReadInto: got %d, want 6", got)
	}
	want := []float64{10, 11, 12, 13, 14, 15}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestRingBufferWriteBatchPartialWhenFull(t *testing.T) {
	r, err := NewRingBuffer(4)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	n := r.WriteBatch([]float64{1, 2, 3, 4, 5})
	if n != 3 {
		t.Fatalf("WriteBatch into capacity-1=3 slots: got %d, want 3", n)
	}
}

func TestRingBufferSkipAndClear(t *testing.T) {
	r, err := NewRingBuffer(8)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	r.WriteBatch([]float64{1, 2, 3, 4})
	if n := r.Skip(2); n != 2 {
		t.Fatalf("Skip: got %d, want 2", n)
	}
	if r.Available() != 2 {
		t.Fatalf("Available after skip: got %d, want 2", r.Available())
	}
	r.Clear()
	if r.Available() != 0 {
		t.Errorf("Available after Clear: got %d, want 0", r.Available())
	}
}

// TestRingBufferConcurrentSPSCOrdering drives a single producer and single
// consumer goroutine concurrently and checks that every value read comes out
// in the order it was written (§8).
func TestRingBufferConcurrentSPSCOrdering(t *testing.T) {
	r, err := NewRingBuffer(64)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	const total = 10000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			for !r.Write(float64(i)) {
			}
		}
	}()

	received := make([]float64, 0, total)
	go func() {
		defer wg.Done()
		for len(received) < total {
			if v, ok := r.Read(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()

	for i, v := range received {
		if v != float64(i) {
			t.Fatalf("out of order at index %d: got %v, want %v", i, v, float64(i))
		}
	}
}
