package denoiser

import "sync/atomic"

// PipelineState is the lifecycle state of a StreamingPipeline.
//
// State Machine:
//
//	Created  -> Ready       [subscribe]
//	Ready    -> Draining    [flush, or producer-side stop]
//	Draining -> Closed      [close, after tail fragment emission]
//	(any)    -> Closed      [unrecoverable internal error]
type PipelineState uint32

const (
	StateCreated PipelineState = iota
	StateReady
	StateDraining
	StateClosed
)

func (s PipelineState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateReady:
		return "Ready"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const cacheLinePad = 64

// fastState is a lock-free state holder, cache-line padded to avoid false
// sharing with neighbouring fields in the owning struct.
type fastState struct {
	_ [cacheLinePad]byte
	v atomic.Uint32
	_ [cacheLinePad - 4]byte
}

func newFastState(initial PipelineState) *fastState {
	s := &fastState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *fastState) Load() PipelineState {
	return PipelineState(s.v.Load())
}

func (s *fastState) Store(state PipelineState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts an atomic CAS from -> to, returning true on
// success.
func (s *fastState) TryTransition(from, to PipelineState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts to move from any of validFrom to to, trying each
// in order until one succeeds.
func (s *fastState) TransitionAny(validFrom []PipelineState, to PipelineState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return true
		}
	}
	return false
}

func (s *fastState) IsClosed() bool {
	return s.Load() == StateClosed
}
