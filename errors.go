package denoiser

import (
	"errors"
	"fmt"
)

// InvalidArgumentError reports a configuration value outside its documented
// range: a null wavelet/boundary mode, a non-positive size, an overlap
// factor outside [0,1), a non-positive time constant, or a noise buffer
// factor below 1.
type InvalidArgumentError struct {
	Field string
	Value any
	Cause error
}

func (e *InvalidArgumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("denoiser: invalid argument %s=%v: %v", e.Field, e.Value, e.Cause)
	}
	return fmt.Sprintf("denoiser: invalid argument %s=%v", e.Field, e.Value)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Cause }

// InvalidSignalError reports NaN/Inf in an input sample, or an empty input
// where empty is disallowed (operator ingress, not pipeline ingress: the
// pipeline itself treats an empty process() call as a no-op, per §8).
type InvalidSignalError struct {
	Index int
	Value float64
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("denoiser: invalid signal at index %d: %v", e.Index, e.Value)
}

// InvalidStateError reports an operation attempted in a state that forbids
// it: process after close, or a second subscribe before close. Flush on a
// closed pipeline is a no-op and returns nil.
type InvalidStateError struct {
	Op    string
	State PipelineState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("denoiser: invalid state for %s: %s", e.Op, e.State)
}

// CapacityExceededError reports a non-blocking process() call that could
// not buffer all of its input. Accepted is the number of leading samples
// that were in fact written to the ring.
type CapacityExceededError struct {
	Requested int
	Accepted  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("denoiser: capacity exceeded: accepted %d of %d samples", e.Accepted, e.Requested)
}

// InternalError wraps a fatal invariant violation (e.g. P² marker ordering)
// that forces the pipeline into the Closed state and is reported via
// on_error rather than returned synchronously.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("denoiser: internal error: %v", e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// IsClosed reports whether err indicates the pipeline has already closed.
func IsClosed(err error) bool {
	var stateErr *InvalidStateError
	return errors.As(err, &stateErr) && stateErr.State == StateClosed
}
