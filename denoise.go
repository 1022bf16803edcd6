package denoiser

import "math"

// ThresholdType selects the shrinkage rule DenoiseEngine applies to detail
// coefficients (§4.8).
type ThresholdType int

const (
	ThresholdSoft ThresholdType = iota
	ThresholdHard
)

// DenoiseEngine performs one stateless per-window denoise operation:
// forward transform, multi-level recursion with detail thresholding, and
// inverse transform (§4.8). It holds no per-call state; the threshold
// value and noise estimator it reads from are owned by the caller
// (StreamingPipeline).
type DenoiseEngine struct {
	transformer Transformer
	mode        BoundaryMode
	levels      int
	thresholdTy ThresholdType
}

// NewDenoiseEngine constructs an engine bound to transformer, decomposing
// levels times (levels >= 1) under the given boundary mode and applying
// thresholdTy shrinkage to every detail band.
func NewDenoiseEngine(transformer Transformer, mode BoundaryMode, levels int, thresholdTy ThresholdType) (*DenoiseEngine, error) {
	if transformer == nil {
		return nil, &InvalidArgumentError{Field: "transformer", Value: nil}
	}
	if levels < 1 {
		return nil, &InvalidArgumentError{Field: "levels", Value: levels}
	}
	return &DenoiseEngine{
		transformer: transformer,
		mode:        mode,
		levels:      levels,
		thresholdTy: thresholdTy,
	}, nil
}

// Denoise runs the forward/threshold/inverse pipeline over window using
// lambda as the threshold applied to every detail band, and reports the
// finest-level signed detail coefficients via observeDetail (used by the caller to
// feed the noise estimator) before thresholding is applied. window must
// contain only finite samples; a single-sample window passes through
// unchanged (§4.8 edge case).
func (e *DenoiseEngine) Denoise(window []float64, lambda float64, observeDetail func([]float64)) ([]float64, error) {
	for i, v := range window {
		if !isFinite(v) {
			return nil, &InvalidSignalError{Index: i, Value: v}
		}
	}
	if len(window) <= 1 {
		out := make([]float64, len(window))
		copy(out, window)
		return out, nil
	}

	approxStack := make([][]float64, 0, e.levels)
	detailStack := make([][]float64, 0, e.levels)
	lengthStack := make([]int, 0, e.levels) // len(current) going into each level's Forward

	current := window
	for level := 0; level < e.levels; level++ {
		lengthStack = append(lengthStack, len(current))
		a, d, err := e.transformer.Forward(current, e.mode)
		if err != nil {
			return nil, err
		}
		approxStack = append(approxStack, a)
		detailStack = append(detailStack, d)
		current = a
		if len(current) <= 1 {
			break
		}
	}

	if observeDetail != nil && len(detailStack) > 0 {
		observeDetail(detailStack[0])
	}

	for _, d := range detailStack {
		e.threshold(d, lambda)
	}

	recon := approxStack[len(approxStack)-1]
	for i := len(detailStack) - 1; i >= 0; i-- {
		var err error
		recon, err = e.transformer.Inverse(recon, detailStack[i], e.mode)
		if err != nil {
			return nil, err
		}
		// Forward pads an odd-length level to an even coefficient count
		// (§4.8); trim the synthetic extra sample Inverse reintroduces so
		// each level's reconstruction matches the length it was built from.
		if want := lengthStack[i]; len(recon) > want {
			recon = recon[:want]
		}
	}
	return recon, nil
}

func (e *DenoiseEngine) threshold(detail []float64, lambda float64) {
	switch e.thresholdTy {
	case ThresholdHard:
		for i, x := range detail {
			if math.Abs(x) <= lambda {
				detail[i] = 0
			}
		}
	default: // ThresholdSoft
		for i, x := range detail {
			mag := math.Abs(x) - lambda
			if mag <= 0 {
				detail[i] = 0
				continue
			}
			if x < 0 {
				detail[i] = -mag
			} else {
				detail[i] = mag
			}
		}
	}
}

// Levels returns the configured decomposition depth.
func (e *DenoiseEngine) Levels() int { return e.levels }

// MaxLevelsForBlockSize implements the §6 constraint
// 1 <= L <= floor(log2(block_size / filter_length)).
func MaxLevelsForBlockSize(blockSize, filterLength int) int {
	if filterLength <= 0 || blockSize < filterLength {
		return 0
	}
	return int(math.Floor(math.Log2(float64(blockSize) / float64(filterLength))))
}
