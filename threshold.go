package denoiser

import "math"

// ThresholdAdapter is a first-order low-pass controller with distinct
// attack and release time constants (§4.7), used to smooth the wavelet
// threshold across windows instead of snapping to each window's raw noise
// estimate.
type ThresholdAdapter struct {
	current float64
	target  float64

	alphaAttack  float64
	alphaRelease float64

	min float64
	max float64
}

// NewThresholdAdapter builds an adapter with the given attack/release time
// constants (milliseconds) and expected per-block period (milliseconds),
// bounding current/target to [min, max].
func NewThresholdAdapter(attackMs, releaseMs, periodMs, min, max float64) (*ThresholdAdapter, error) {
	if attackMs <= 0 {
		return nil, &InvalidArgumentError{Field: "attackMs", Value: attackMs}
	}
	if releaseMs <= 0 {
		return nil, &InvalidArgumentError{Field: "releaseMs", Value: releaseMs}
	}
	if periodMs <= 0 {
		return nil, &InvalidArgumentError{Field: "periodMs", Value: periodMs}
	}
	if min > max {
		return nil, &InvalidArgumentError{Field: "min", Value: min}
	}
	a := &ThresholdAdapter{
		alphaAttack:  1 - math.Exp(-periodMs/attackMs),
		alphaRelease: 1 - math.Exp(-periodMs/releaseMs),
		min:          min,
		max:          max,
	}
	a.current = clamp(0, min, max)
	a.target = a.current
	return a, nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SetTarget sets the value current converges toward on subsequent Tick
// calls, clamped to [min, max].
func (a *ThresholdAdapter) SetTarget(v float64) {
	a.target = clamp(v, a.min, a.max)
}

// SetCurrent immediately sets current (clamped), and resets target to the
// same value so the adapter does not resume converging toward a stale
// target on the next Tick.
func (a *ThresholdAdapter) SetCurrent(v float64) {
	v = clamp(v, a.min, a.max)
	a.current = v
	a.target = v
}

// Tick advances current one step toward target using the attack
// coefficient if target > current, else the release coefficient, and
// returns the new current value.
func (a *ThresholdAdapter) Tick() float64 {
	k := a.alphaRelease
	if a.target > a.current {
		k = a.alphaAttack
	}
	a.current += k * (a.target - a.current)
	a.current = clamp(a.current, a.min, a.max)
	return a.current
}

// Current returns the current value without advancing state.
func (a *ThresholdAdapter) Current() float64 { return a.current }

// Target returns the current target value.
func (a *ThresholdAdapter) Target() float64 { return a.target }

// ReachedTarget reports whether current is within eps of target.
func (a *ThresholdAdapter) ReachedTarget(eps float64) bool {
	return math.Abs(a.target-a.current) <= eps
}
