package denoiser

import "math"

// ThresholdKind selects which wavelet threshold selection rule
// MADEstimator.Threshold computes (§4.6).
type ThresholdKind int

const (
	ThresholdUniversal ThresholdKind = iota
	ThresholdSURE
	ThresholdMinimax
)

// kappaSURE is the conservative multiplier applied to the universal
// threshold to derive the SURE variant in a streaming context, where the
// classical Stein's Unbiased Risk Estimate minimisation is not available
// (it requires the full coefficient vector). Kept > 1 so the invariant
// SURE >= Universal always holds; left as an open constant per the source
// material's documented ambiguity here.
const kappaSURE = 1.1

// madScaleFactor converts MAD to a Gaussian-equivalent standard deviation:
// 1/Phi^-1(0.75).
const madScaleFactor = 1.4826

// MADEstimator is an online, outlier-robust noise level estimator built on
// two P2Quantile instances: one tracking the median of x, the other
// tracking the median of |x - median(x)| (§4.6).
type MADEstimator struct {
	medianX *P2Quantile
	madP2   *P2Quantile

	alpha        float64
	currentNoise float64
	count        int
}

// NewMADEstimator constructs an estimator with exponential smoothing factor
// alpha in [0,1] (the weight given to the previous level on each update).
func NewMADEstimator(alpha float64) (*MADEstimator, error) {
	if alpha < 0 || alpha > 1 {
		return nil, &InvalidArgumentError{Field: "alpha", Value: alpha}
	}
	medianX, err := NewP2Quantile(0.5)
	if err != nil {
		return nil, err
	}
	madP2, err := NewP2Quantile(0.5)
	if err != nil {
		return nil, err
	}
	return &MADEstimator{
		medianX: medianX,
		madP2:   madP2,
		alpha:   alpha,
	}, nil
}

// Update folds every sample in batch into the estimator without returning a
// value. An empty batch leaves all state untouched.
func (m *MADEstimator) Update(batch []float64) {
	for _, x := range batch {
		m.updateOne(x)
	}
}

func (m *MADEstimator) updateOne(x float64) {
	m.medianX.Update(x)
	median := m.medianX.Quantile()
	m.madP2.Update(math.Abs(x - median))
	m.count++

	newLevel := madScaleFactor * m.madP2.Quantile()
	if m.count == 1 {
		m.currentNoise = newLevel
		return
	}
	m.currentNoise = m.alpha*m.currentNoise + (1-m.alpha)*newLevel
}

// Estimate updates with all of batch and returns the resulting smoothed
// noise level. An empty batch leaves state untouched and returns 0 (§4.6).
func (m *MADEstimator) Estimate(batch []float64) float64 {
	if len(batch) == 0 {
		return 0
	}
	m.Update(batch)
	return m.currentNoise
}

// CurrentLevel returns the last computed smoothed noise level (sigma).
func (m *MADEstimator) CurrentLevel() float64 { return m.currentNoise }

// SampleCount returns the total number of samples folded in.
func (m *MADEstimator) SampleCount() int { return m.count }

// Reset restores the estimator to its construction-time state.
func (m *MADEstimator) Reset() {
	// 0.5 is a fixed, already-validated target quantile; this cannot fail.
	medianX, err := NewP2Quantile(0.5)
	if err != nil {
		panic(&InternalError{Cause: err})
	}
	madP2, err := NewP2Quantile(0.5)
	if err != nil {
		panic(&InternalError{Cause: err})
	}
	alpha := m.alpha
	m.medianX = medianX
	m.madP2 = madP2
	m.alpha = alpha
	m.currentNoise = 0
	m.count = 0
}

// Threshold computes the wavelet threshold selection rule identified by
// kind, using the current smoothed noise level as sigma and SampleCount as
// n. Returns 0 if no samples have been observed.
func (m *MADEstimator) Threshold(kind ThresholdKind) float64 {
	n := m.count
	if n == 0 {
		return 0
	}
	sigma := m.currentNoise
	nf := float64(n)

	switch kind {
	case ThresholdSURE:
		return sigma * math.Sqrt(2*math.Log(nf)) * kappaSURE
	case ThresholdMinimax:
		if n < 32 {
			return sigma
		}
		return sigma * (0.3936 + 0.1829*math.Log2(nf))
	default: // ThresholdUniversal
		return sigma * math.Sqrt(2*math.Log(nf))
	}
}
