package denoiser

import "sync"

// P2Quantile implements the P² algorithm for streaming quantile estimation
// (§4.5): O(1) per-observation update and O(1) quantile retrieval, without
// storing the observation history.
//
// Reference: Jain, R. and Chlamtac, I. (1985). "The P² Algorithm for Dynamic
// Calculation of Quantiles and Histograms Without Storing Observations".
// Communications of the ACM, 28(10), pp. 1076-1085.
//
// Thread Safety: NOT thread-safe. Use SyncP2Quantile for concurrent access.
type P2Quantile struct {
	p float64

	q  [5]float64 // marker heights
	n  [5]int     // marker positions
	np [5]float64 // desired marker positions
	dn [5]float64 // increments for desired marker positions

	count int
	init  [5]float64
}

// NewP2Quantile creates an estimator for the given target quantile p.
// p outside [0, 1] is a construction error (§4.5).
func NewP2Quantile(p float64) (*P2Quantile, error) {
	if p < 0 || p > 1 {
		return nil, &InvalidArgumentError{Field: "p", Value: p}
	}
	return &P2Quantile{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}, nil
}

// Update folds a new observation into the estimator.
func (ps *P2Quantile) Update(x float64) {
	ps.count++

	if ps.count <= 5 {
		ps.init[ps.count-1] = x
		if ps.count == 5 {
			ps.initialize()
		}
		return
	}

	var k int
	if x < ps.q[0] {
		ps.q[0] = x
		k = 0
	} else if x >= ps.q[4] {
		ps.q[4] = x
		k = 3
	} else {
		for k = 0; k < 4; k++ {
			if ps.q[k] <= x && x < ps.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		ps.n[i]++
	}
	for i := 0; i < 5; i++ {
		ps.np[i] += ps.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := ps.np[i] - float64(ps.n[i])
		if (d >= 1 && ps.n[i+1]-ps.n[i] > 1) || (d <= -1 && ps.n[i-1]-ps.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := ps.parabolic(i, sign)
			if ps.q[i-1] < qPrime && qPrime < ps.q[i+1] {
				ps.q[i] = qPrime
			} else {
				ps.q[i] = ps.linear(i, sign)
			}
			ps.n[i] += sign
		}
	}
}

func (ps *P2Quantile) initialize() {
	for i := 1; i < 5; i++ {
		key := ps.init[i]
		j := i - 1
		for j >= 0 && ps.init[j] > key {
			ps.init[j+1] = ps.init[j]
			j--
		}
		ps.init[j+1] = key
	}
	for i := 0; i < 5; i++ {
		ps.q[i] = ps.init[i]
		ps.n[i] = i
	}
	ps.np = [5]float64{0, 2 * ps.p, 4 * ps.p, 2 + 2*ps.p, 4}
}

func (ps *P2Quantile) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(ps.n[i])
	niPrev := float64(ps.n[i-1])
	niNext := float64(ps.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (ps.q[i+1] - ps.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (ps.q[i] - ps.q[i-1]) / (ni - niPrev)
	return ps.q[i] + term1*(term2+term3)
}

func (ps *P2Quantile) linear(i, d int) float64 {
	if d == 1 {
		return ps.q[i] + (ps.q[i+1]-ps.q[i])/float64(ps.n[i+1]-ps.n[i])
	}
	return ps.q[i] - (ps.q[i]-ps.q[i-1])/float64(ps.n[i]-ps.n[i-1])
}

// Quantile returns the current estimate. Before 5 observations have been
// seen it falls back to an exact computation over the buffered samples.
func (ps *P2Quantile) Quantile() float64 {
	if ps.count == 0 {
		return 0
	}
	if ps.count < 5 {
		sorted := make([]float64, ps.count)
		copy(sorted, ps.init[:ps.count])
		for i := 1; i < ps.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(ps.count-1) * ps.p)
		if index >= ps.count {
			index = ps.count - 1
		}
		return sorted[index]
	}
	return ps.q[2]
}

// Count returns the number of observations folded in so far.
func (ps *P2Quantile) Count() int { return ps.count }

// Reset restores the estimator to its construction-time state.
func (ps *P2Quantile) Reset() {
	// ps.p was already validated by NewP2Quantile; this cannot fail.
	fresh, err := NewP2Quantile(ps.p)
	if err != nil {
		panic(&InternalError{Cause: err})
	}
	*ps = *fresh
}

// SyncP2Quantile is a mutex-guarded P2Quantile for callers that need a
// consistent snapshot across Update/Quantile pairs without forcing every
// caller onto the same goroutine. Statistics and MADEstimator use a plain
// P2Quantile, not this type.
type SyncP2Quantile struct {
	mu  sync.Mutex
	est *P2Quantile
}

// NewSyncP2Quantile wraps a new P2Quantile for the given target quantile.
// p outside [0, 1] is a construction error (§4.5).
func NewSyncP2Quantile(p float64) (*SyncP2Quantile, error) {
	est, err := NewP2Quantile(p)
	if err != nil {
		return nil, err
	}
	return &SyncP2Quantile{est: est}, nil
}

func (s *SyncP2Quantile) Update(x float64) {
	s.mu.Lock()
	s.est.Update(x)
	s.mu.Unlock()
}

func (s *SyncP2Quantile) Quantile() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Quantile()
}

func (s *SyncP2Quantile) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Count()
}

func (s *SyncP2Quantile) Reset() {
	s.mu.Lock()
	s.est.Reset()
	s.mu.Unlock()
}
