package denoiser

import (
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WindowFunction selects the coefficient array OverlapBuffer multiplies
// each block by before stitching it into the reconstructed stream.
type WindowFunction int

const (
	WindowRectangular WindowFunction = iota
	WindowHann
	WindowHamming
	WindowTukey
)

func (w WindowFunction) String() string {
	switch w {
	case WindowRectangular:
		return "rectangular"
	case WindowHann:
		return "hann"
	case WindowHamming:
		return "hamming"
	case WindowTukey:
		return "tukey"
	default:
		return "unknown"
	}
}

type windowCacheKey struct {
	blockSize int
	overlap   float64
	fn        WindowFunction
}

// windowCoeffCacheCapacity bounds the process-wide cache of materialised
// window coefficient arrays (§4.4).
const windowCoeffCacheCapacity = 32

var (
	windowCacheOnce sync.Once
	windowCache     *lru.Cache[windowCacheKey, []float64]
)

func getWindowCache() *lru.Cache[windowCacheKey, []float64] {
	windowCacheOnce.Do(func() {
		// size is always windowCoeffCacheCapacity > 0, so the error return
		// is unreachable.
		c, _ := lru.New[windowCacheKey, []float64](windowCoeffCacheCapacity)
		windowCache = c
	})
	return windowCache
}

// ClearWindowCoefficientCache explicitly evicts every cached window
// coefficient array. Intended for tests and for callers that want to
// reclaim memory between distinct configuration regimes.
func ClearWindowCoefficientCache() {
	getWindowCache().Purge()
}

func computeWindowCoeffs(blockSize int, overlap float64, fn WindowFunction) []float64 {
	coeffs := make([]float64, blockSize)
	switch fn {
	case WindowRectangular:
		for i := range coeffs {
			coeffs[i] = 1.0
		}
	case WindowHann:
		for i := range coeffs {
			coeffs[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(blockSize-1))
		}
	case WindowHamming:
		for i := range coeffs {
			coeffs[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(blockSize-1))
		}
	case WindowTukey:
		alpha := 0.5
		n := float64(blockSize - 1)
		for i := range coeffs {
			x := float64(i) / n
			switch {
			case x < alpha/2:
				coeffs[i] = 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
			case x > 1-alpha/2:
				coeffs[i] = 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
			default:
				coeffs[i] = 1.0
			}
		}
	default:
		for i := range coeffs {
			coeffs[i] = 1.0
		}
	}
	return coeffs
}

// windowCoeffs returns the cached coefficient array for (blockSize,
// overlap, fn), computing and caching it on first use.
func windowCoeffs(blockSize int, overlap float64, fn WindowFunction) []float64 {
	key := windowCacheKey{blockSize: blockSize, overlap: overlap, fn: fn}
	cache := getWindowCache()
	if v, ok := cache.Get(key); ok {
		return v
	}
	coeffs := computeWindowCoeffs(blockSize, overlap, fn)
	cache.Add(key, coeffs)
	return coeffs
}

// OverlapBuffer stitches consecutive, equal-length processed blocks back
// into a single stream using the overlap-add method (§4.4).
type OverlapBuffer struct {
	blockSize     int
	overlapFactor float64
	fn            WindowFunction
	overlap       int
	hop           int

	tail         []float64 // length overlap, not blockSize
	firstEmitted bool
}

// NewOverlapBuffer constructs an OverlapBuffer for the given block size,
// overlap factor (in [0,1)), and window function.
func NewOverlapBuffer(blockSize int, overlapFactor float64, fn WindowFunction) (*OverlapBuffer, error) {
	if blockSize <= 0 {
		return nil, &InvalidArgumentError{Field: "blockSize", Value: blockSize}
	}
	if overlapFactor < 0 || overlapFactor >= 1 {
		return nil, &InvalidArgumentError{Field: "overlapFactor", Value: overlapFactor}
	}
	overlap := int(float64(blockSize) * overlapFactor)
	hop := blockSize - overlap
	return &OverlapBuffer{
		blockSize:     blockSize,
		overlapFactor: overlapFactor,
		fn:            fn,
		overlap:       overlap,
		hop:           hop,
		tail:          make([]float64, overlap),
	}, nil
}

// Process implements the contract of §4.4: the first call returns the full
// windowed block; subsequent calls fold the new windowed block's leading
// overlap samples into the saved tail and return the next hop samples of
// the combined stream.
func (o *OverlapBuffer) Process(block []float64) ([]float64, error) {
	if len(block) != o.blockSize {
		return nil, &InvalidArgumentError{Field: "block", Value: fmt.Sprintf("len=%d", len(block))}
	}
	coeffs := windowCoeffs(o.blockSize, o.overlapFactor, o.fn)

	windowed := make([]float64, o.blockSize)
	for i, v := range block {
		windowed[i] = v * coeffs[i]
	}

	if !o.firstEmitted {
		o.firstEmitted = true
		if o.overlap > 0 {
			copy(o.tail, windowed[o.blockSize-o.overlap:])
		}
		out := make([]float64, o.blockSize)
		copy(out, windowed)
		return out, nil
	}

	if o.overlap == 0 {
		out := make([]float64, o.blockSize)
		copy(out, windowed)
		return out, nil
	}

	combined := make([]float64, o.blockSize)
	for i := 0; i < o.overlap; i++ {
		combined[i] = o.tail[i] + windowed[i]
	}
	copy(combined[o.overlap:], windowed[o.overlap:])

	out := make([]float64, o.hop)
	copy(out, combined[:o.hop])
	copy(o.tail, combined[o.hop:])
	return out, nil
}

// BlockSize returns the configured block (window) size.
func (o *OverlapBuffer) BlockSize() int { return o.blockSize }

// HopSize returns blockSize-overlap.
func (o *OverlapBuffer) HopSize() int { return o.hop }

// Reset clears the saved tail and the "first block" flag.
func (o *OverlapBuffer) Reset() {
	for i := range o.tail {
		o.tail[i] = 0
	}
	o.firstEmitted = false
}

// FlushTail returns the remaining tail (the final fragment emitted by
// flush(), per §4.9, when overlap > 0) and resets the buffer.
func (o *OverlapBuffer) FlushTail() []float64 {
	if o.overlap == 0 || !o.firstEmitted {
		return nil
	}
	out := make([]float64, o.overlap)
	copy(out, o.tail)
	o.Reset()
	return out
}
