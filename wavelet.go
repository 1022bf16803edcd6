package denoiser

import "math"

// BoundaryMode selects how the wavelet Transformer handles samples at the
// edges of a block.
type BoundaryMode int

const (
	BoundaryPeriodic BoundaryMode = iota
	BoundaryZeroPadding
)

// Transformer is the single capability the pipeline requires of a wavelet
// family: a forward single-level decomposition into approximation and
// detail coefficients, and its inverse. It is the only coupling point to
// the wavelet kernels themselves, which are out of scope for this module
// (§1, §9): implementations are supplied by the caller.
type Transformer interface {
	// Forward decomposes input into approximation and detail coefficient
	// slices under mode. len(input) determines the output lengths, which
	// are implementation-defined (e.g. len(input)/2 for an orthogonal
	// wavelet without boundary extension).
	Forward(input []float64, mode BoundaryMode) (approx, detail []float64, err error)

	// Inverse reconstructs a block from approximation and detail
	// coefficients under mode. The returned length is implementation-defined
	// and may exceed the input length of the corresponding Forward call
	// (HaarTransformer returns 2*len(approx), one more than an odd input);
	// DenoiseEngine trims each level's result back to that input length.
	Inverse(approx, detail []float64, mode BoundaryMode) ([]float64, error)

	// FilterLength reports the length of the filter pair, used to bound
	// the maximum decomposition depth for a given block size.
	FilterLength() int
}

// HaarTransformer is a minimal Transformer implementing the Haar wavelet,
// included as a ready-to-use filter pair; any Transformer may be supplied
// in its place.
type HaarTransformer struct{}

const invSqrt2 = 0.7071067811865476

// Forward implements Transformer for the Haar wavelet: pairwise sum/
// difference scaled by 1/sqrt(2).
func (HaarTransformer) Forward(input []float64, mode BoundaryMode) ([]float64, []float64, error) {
	n := len(input)
	for _, v := range input {
		if !isFinite(v) {
			return nil, nil, &InvalidSignalError{Value: v}
		}
	}
	if n == 1 {
		return []float64{input[0]}, nil, nil
	}

	half := n / 2
	odd := n%2 == 1
	if odd {
		half++
	}
	approx := make([]float64, half)
	detail := make([]float64, half)

	for i := 0; i < n/2; i++ {
		a, b := input[2*i], input[2*i+1]
		approx[i] = (a + b) * invSqrt2
		detail[i] = (a - b) * invSqrt2
	}
	if odd {
		last := input[n-1]
		var pair float64
		switch mode {
		case BoundaryPeriodic:
			pair = input[0]
		default: // BoundaryZeroPadding
			pair = 0
		}
		approx[half-1] = (last + pair) * invSqrt2
		detail[half-1] = (last - pair) * invSqrt2
	}
	return approx, detail, nil
}

// Inverse implements Transformer for the Haar wavelet.
func (HaarTransformer) Inverse(approx, detail []float64, mode BoundaryMode) ([]float64, error) {
	if len(approx) == 1 && len(detail) == 0 {
		return []float64{approx[0]}, nil
	}
	if len(approx) != len(detail) {
		return nil, &InvalidArgumentError{Field: "detail", Value: len(detail)}
	}
	n := len(approx) * 2
	out := make([]float64, n)
	for i := range approx {
		a, d := approx[i], detail[i]
		out[2*i] = (a + d) * invSqrt2
		out[2*i+1] = (a - d) * invSqrt2
	}
	return out, nil
}

// FilterLength reports the Haar filter length (2).
func (HaarTransformer) FilterLength() int { return 2 }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
