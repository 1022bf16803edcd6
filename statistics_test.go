package denoiser

import (
	"testing"
	"time"
)

func TestStatisticsRecordSamplesAndBlocks(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewStatistics(start)
	s.RecordSamples(100)
	s.RecordSamples(50)
	s.RecordBlockEmitted()
	s.RecordBlockEmitted()
	s.RecordBlockEmitted()

	snap := s.Snapshot(start.Add(time.Second))
	if snap.SamplesProcessed != 150 {
		t.Errorf("SamplesProcessed: got %d, want 150", snap.SamplesProcessed)
	}
	if snap.BlocksEmitted != 3 {
		t.Errorf("BlocksEmitted: got %d, want 3", snap.BlocksEmitted)
	}
}

func TestStatisticsThroughputComputation(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewStatistics(start)
	s.RecordSamples(1000)
	snap := s.Snapshot(start.Add(2 * time.Second))
	if got, want := snap.ThroughputSamplesPerS, 500.0; got != want {
		t.Errorf("ThroughputSamplesPerS: got %v, want %v", got, want)
	}
}

func TestStatisticsThroughputZeroElapsed(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewStatistics(start)
	s.RecordSamples(1000)
	snap := s.Snapshot(start)
	if snap.ThroughputSamplesPerS != 0 {
		t.Errorf("ThroughputSamplesPerS with zero elapsed: got %v, want 0", snap.ThroughputSamplesPerS)
	}
}

func TestStatisticsProcessingTimeMaxAndAverage(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewStatistics(start)
	durations := []time.Duration{10 * time.Millisecond, 5 * time.Millisecond, 20 * time.Millisecond}
	for _, d := range durations {
		s.RecordProcessingTime(d)
	}
	snap := s.Snapshot(start.Add(time.Second))
	if snap.MaxProcessingNs != int64(20*time.Millisecond) {
		t.Errorf("MaxProcessingNs: got %d, want %d", snap.MaxProcessingNs, int64(20*time.Millisecond))
	}
	if snap.AvgProcessingNs <= 0 {
		t.Error("AvgProcessingNs should be positive after recording samples")
	}
}

func TestStatisticsReset(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewStatistics(start)
	s.RecordSamples(500)
	s.RecordBlockEmitted()
	s.RecordProcessingTime(10 * time.Millisecond)

	restart := start.Add(time.Hour)
	s.Reset(restart)

	snap := s.Snapshot(restart)
	if snap.SamplesProcessed != 0 || snap.BlocksEmitted != 0 || snap.MaxProcessingNs != 0 {
		t.Errorf("Snapshot after Reset should be all-zero, got %+v", snap)
	}
}
