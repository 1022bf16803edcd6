package denoiser

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func TestP2QuantileExactForFewerThanFiveSamples(t *testing.T) {
	p, err := NewP2Quantile(0.5)
	if err != nil {
		t.Fatalf("NewP2Quantile: %v", err)
	}
	p.Update(5)
	p.Update(1)
	p.Update(3)
	if got := p.Quantile(); got != 3 {
		t.Errorf("median of [5,1,3] (sorted [1,3,5]): got %v, want 3", got)
	}
}

func TestP2QuantileCountTracksObservations(t *testing.T) {
	p, err := NewP2Quantile(0.5)
	if err != nil {
		t.Fatalf("NewP2Quantile: %v", err)
	}
	for i := 0; i < 37; i++ {
		p.Update(float64(i))
	}
	if p.Count() != 37 {
		t.Errorf("Count: got %d, want 37", p.Count())
	}
}

func TestP2QuantileReset(t *testing.T) {
	p, err := NewP2Quantile(0.9)
	if err != nil {
		t.Fatalf("NewP2Quantile: %v", err)
	}
	for i := 0; i < 100; i++ {
		p.Update(float64(i))
	}
	p.Reset()
	if p.Count() != 0 {
		t.Errorf("Count after Reset: got %d, want 0", p.Count())
	}
	if got := p.Quantile(); got != 0 {
		t.Errorf("Quantile after Reset: got %v, want 0", got)
	}
}

// TestNewP2QuantileRejectsOutOfRangeProbability matches the §4.5 construction
// error: p outside [0,1] is rejected, not clamped.
func TestNewP2QuantileRejectsOutOfRangeProbability(t *testing.T) {
	if _, err := NewP2Quantile(1.5); err == nil {
		t.Error("p > 1 should be a construction error")
	}
	if _, err := NewP2Quantile(-0.5); err == nil {
		t.Error("p < 0 should be a construction error")
	}
	if _, err := NewP2Quantile(0); err != nil {
		t.Errorf("p = 0 should be accepted: %v", err)
	}
	if _, err := NewP2Quantile(1); err != nil {
		t.Errorf("p = 1 should be accepted: %v", err)
	}
}

// TestP2QuantileRelativeErrorWithinFivePercent reproduces the §8 streaming
// quantile accuracy invariant: against 100,000 N(0,1) samples with a fixed
// seed, the P2Quantile estimate of the median must fall within 0.02 absolute
// error, and that of the 90th percentile within 5% relative error, of the
// exact (sorted) value.
func TestP2QuantileRelativeErrorWithinFivePercent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 100000
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = rng.NormFloat64()
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	// The median of a standard normal sample sits arbitrarily close to zero,
	// which makes a *relative* error metric ill-conditioned there (dividing
	// by a near-zero exact value). Use an absolute tolerance for it, and a
	// relative tolerance for the 90th percentile, which sits well away from
	// zero (~1.28).
	medianP, err := NewP2Quantile(0.5)
	if err != nil {
		t.Fatalf("NewP2Quantile: %v", err)
	}
	for _, x := range samples {
		medianP.Update(x)
	}
	exactMedian := sorted[(n-1)/2]
	if got := medianP.Quantile(); math.Abs(got-exactMedian) > 0.02 {
		t.Errorf("median: estimate %v, exact %v, absolute error exceeds 0.02", got, exactMedian)
	}

	p90, err := NewP2Quantile(0.9)
	if err != nil {
		t.Fatalf("NewP2Quantile: %v", err)
	}
	for _, x := range samples {
		p90.Update(x)
	}
	exact90 := sorted[(n-1)*9/10]
	got90 := p90.Quantile()
	relErr := math.Abs(got90-exact90) / math.Abs(exact90)
	if relErr > 0.05 {
		t.Errorf("p90: estimate %v, exact %v, relative error %v exceeds 5%%", got90, exact90, relErr)
	}
}

func TestNewSyncP2QuantileRejectsOutOfRangeProbability(t *testing.T) {
	if _, err := NewSyncP2Quantile(2); err == nil {
		t.Error("p > 1 should be a construction error")
	}
}

func TestSyncP2QuantileConcurrentUpdates(t *testing.T) {
	s, err := NewSyncP2Quantile(0.5)
	if err != nil {
		t.Fatalf("NewSyncP2Quantile: %v", err)
	}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Update(float64(i))
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		s.Update(float64(-i))
	}
	<-done
	if s.Count() != 2000 {
		t.Errorf("Count: got %d, want 2000", s.Count())
	}
	_ = s.Quantile()
	s.Reset()
	if s.Count() != 0 {
		t.Errorf("Count after Reset: got %d, want 0", s.Count())
	}
}
