package denoiser

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	atomic "go.uber.org/atomic"
)

var (
	metricSamplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "denoiser",
		Name:      "samples_processed_total",
		Help:      "Total number of input samples accepted by a pipeline's process().",
	})
	metricBlocksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "denoiser",
		Name:      "blocks_emitted_total",
		Help:      "Total number of output fragments published downstream.",
	})
	metricProcessingNanos = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "denoiser",
		Name:      "block_processing_nanoseconds",
		Help:      "Most recently observed per-block processing duration.",
	})
)

// Statistics tracks monotonic counters and processing-time percentiles for
// a StreamingPipeline (§3, §6). All methods are safe for concurrent use;
// counters are updated from the consumer thread and read from any thread.
type Statistics struct {
	samplesProcessed atomic.Int64
	blocksEmitted    atomic.Int64

	mu          sync.Mutex
	procTime    *P2Quantile // P50 used as a robust "average" proxy
	maxProcNs   int64
	startTime   time.Time
}

// NewStatistics constructs a Statistics tracker, stamped with start as the
// pipeline's creation time (the caller supplies this since the runtime may
// not call time.Now() from library code under test).
func NewStatistics(start time.Time) *Statistics {
	// 0.5 is a fixed, already-validated target quantile; this cannot fail.
	procTime, err := NewP2Quantile(0.5)
	if err != nil {
		panic(&InternalError{Cause: err})
	}
	return &Statistics{
		procTime:  procTime,
		startTime: start,
	}
}

// RecordSamples increments samples_processed by n.
func (s *Statistics) RecordSamples(n int) {
	s.samplesProcessed.Add(int64(n))
	metricSamplesProcessed.Add(float64(n))
}

// RecordBlockEmitted increments blocks_emitted by one.
func (s *Statistics) RecordBlockEmitted() {
	s.blocksEmitted.Add(1)
	metricBlocksEmitted.Inc()
}

// RecordProcessingTime folds a single block's processing duration into the
// rolling percentile estimate and the running maximum.
func (s *Statistics) RecordProcessingTime(d time.Duration) {
	ns := int64(d)
	s.mu.Lock()
	s.procTime.Update(float64(ns))
	if ns > s.maxProcNs {
		s.maxProcNs = ns
	}
	s.mu.Unlock()
	metricProcessingNanos.Set(float64(ns))
}

// StatisticsSnapshot is the externally observable statistics record (§6).
type StatisticsSnapshot struct {
	SamplesProcessed      int64
	BlocksEmitted         int64
	AvgProcessingNs       float64
	MaxProcessingNs       int64
	ThroughputSamplesPerS float64
}

// Snapshot returns a point-in-time copy of the tracked statistics, as
// observed by current (the caller supplies "now" for the same reason
// NewStatistics takes an explicit start).
func (s *Statistics) Snapshot(current time.Time) StatisticsSnapshot {
	s.mu.Lock()
	avg := s.procTime.Quantile()
	maxNs := s.maxProcNs
	s.mu.Unlock()

	samples := s.samplesProcessed.Load()
	elapsed := current.Sub(s.startTime).Seconds()
	var throughput float64
	if elapsed > 0 {
		throughput = float64(samples) / elapsed
	}

	return StatisticsSnapshot{
		SamplesProcessed:      samples,
		BlocksEmitted:         s.blocksEmitted.Load(),
		AvgProcessingNs:       avg,
		MaxProcessingNs:       maxNs,
		ThroughputSamplesPerS: throughput,
	}
}

// Reset zeroes every counter and the processing-time estimator, restamping
// start to restart, as if newly constructed.
func (s *Statistics) Reset(restart time.Time) {
	s.samplesProcessed.Store(0)
	s.blocksEmitted.Store(0)
	s.mu.Lock()
	s.procTime.Reset()
	s.maxProcNs = 0
	s.startTime = restart
	s.mu.Unlock()
}
