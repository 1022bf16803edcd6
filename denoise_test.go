package denoiser

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestNewDenoiseEngineValidatesArgs(t *testing.T) {
	if _, err := NewDenoiseEngine(nil, BoundaryPeriodic, 1, ThresholdSoft); err == nil {
		t.Error("nil transformer should be rejected")
	}
	if _, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 0, ThresholdSoft); err == nil {
		t.Error("levels 0 should be rejected")
	}
}

// TestDenoiseZeroThresholdIsLosslessPassthrough matches the §8
// constant-signal scenario: with lambda=0 every wavelet coefficient survives
// thresholding unchanged, so forward+inverse must reconstruct the input
// exactly (up to floating point error).
func TestDenoiseZeroThresholdIsLosslessPassthrough(t *testing.T) {
	engine, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 3, ThresholdSoft)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	window := make([]float64, 64)
	for i := range window {
		window[i] = 5.0
	}
	recon, err := engine.Denoise(window, 0, nil)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if len(recon) != len(window) {
		t.Fatalf("reconstruction length %d, want %d", len(recon), len(window))
	}
	for i := range window {
		if math.Abs(recon[i]-window[i]) > 1e-9 {
			t.Errorf("recon[%d] = %v, want %v", i, recon[i], window[i])
		}
	}
}

func TestDenoiseSingleSamplePassesThroughUnchanged(t *testing.T) {
	engine, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 4, ThresholdSoft)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	recon, err := engine.Denoise([]float64{42}, 100, nil)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if len(recon) != 1 || recon[0] != 42 {
		t.Errorf("single-sample window: got %v, want [42]", recon)
	}
}

func TestDenoiseRejectsNonFiniteWithoutMutatingState(t *testing.T) {
	engine, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 2, ThresholdSoft)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	window := []float64{1, 2, math.NaN(), 4}
	_, err = engine.Denoise(window, 1, nil)
	if err == nil {
		t.Fatal("NaN sample should be rejected")
	}
	var invalidErr *InvalidSignalError
	if !errors.As(err, &invalidErr) {
		t.Errorf("expected *InvalidSignalError, got %T", err)
	} else if invalidErr.Index != 2 {
		t.Errorf("invalid index: got %d, want 2", invalidErr.Index)
	}
}

func TestDenoiseObservesFinestDetailBeforeThresholding(t *testing.T) {
	engine, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 1, ThresholdHard)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	window := []float64{1, 5, 2, 9, 3, 7, 4, 6}
	var observed []float64
	// a huge lambda would zero every coefficient post-threshold; the
	// observed detail must still reflect the pre-threshold values.
	if _, err := engine.Denoise(window, 1e9, func(d []float64) {
		observed = append([]float64(nil), d...)
	}); err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	allZero := true
	for _, v := range observed {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("observeDetail should see pre-threshold coefficients, not the zeroed post-threshold values")
	}
}

func TestDenoiseSoftVsHardThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	window := make([]float64, 32)
	for i := range window {
		window[i] = rng.NormFloat64()
	}

	soft, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 1, ThresholdSoft)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	hard, err := NewDenoiseEngine(HaarTransformer{}, BoundaryPeriodic, 1, ThresholdHard)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}

	const lambda = 0.3
	reconSoft, err := soft.Denoise(append([]float64(nil), window...), lambda, nil)
	if err != nil {
		t.Fatalf("soft Denoise: %v", err)
	}
	reconHard, err := hard.Denoise(append([]float64(nil), window...), lambda, nil)
	if err != nil {
		t.Fatalf("hard Denoise: %v", err)
	}
	// both must reconstruct a block of the input's length; they need not be
	// identical to one another.
	if len(reconSoft) != len(window) || len(reconHard) != len(window) {
		t.Fatalf("reconstruction length mismatch: soft=%d hard=%d want %d", len(reconSoft), len(reconHard), len(window))
	}
}

func TestMaxLevelsForBlockSize(t *testing.T) {
	cases := []struct {
		blockSize, filterLength, want int
	}{
		{256, 2, 7},
		{16, 2, 3},
		{4, 2, 1},
		{3, 2, 0},
		{8, 0, 0},
	}
	for _, c := range cases {
		if got := MaxLevelsForBlockSize(c.blockSize, c.filterLength); got != c.want {
			t.Errorf("MaxLevelsForBlockSize(%d,%d): got %d, want %d", c.blockSize, c.filterLength, got, c.want)
		}
	}
}

// TestDenoiseMultiLevelOddBlockSizeRoundTrips exercises the denoise.go fix
// for non-power-of-two block sizes recursing through an odd intermediate
// approximation length, at lambda=0 (lossless).
func TestDenoiseMultiLevelOddBlockSizeRoundTrips(t *testing.T) {
	engine, err := NewDenoiseEngine(HaarTransformer{}, BoundaryZeroPadding, 3, ThresholdSoft)
	if err != nil {
		t.Fatalf("NewDenoiseEngine: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	window := make([]float64, 25)
	for i := range window {
		window[i] = rng.NormFloat64() * 5
	}
	recon, err := engine.Denoise(append([]float64(nil), window...), 0, nil)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if len(recon) != len(window) {
		t.Fatalf("reconstruction length %d, want %d", len(recon), len(window))
	}
	for i := range window {
		if math.Abs(recon[i]-window[i]) > 1e-6 {
			t.Errorf("recon[%d] = %v, want %v", i, recon[i], window[i])
		}
	}
}
