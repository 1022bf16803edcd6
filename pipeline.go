package denoiser

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// StreamingPipeline is the orchestrator (§4.9): it owns the ring buffer,
// windowing, denoise engine, overlap-add reconstruction, noise/threshold
// control loop, publisher, statistics, and (optionally) a shared pool, and
// drives them through process/flush/close/subscribe.
//
// Scheduling model (§5): one producer goroutine calls ProcessSample/
// ProcessBlock/Flush; one consumer goroutine runs the dispatch loop. In
// the default single-threaded cooperative mode the same goroutine plays
// both roles, invoking the dispatch loop inline at the end of each
// Process call.
type StreamingPipeline struct {
	cfg *config

	ring    *ResizableRing
	window  *StreamingWindow
	overlap *OverlapBuffer
	mad     *MADEstimator
	adapter *ThresholdAdapter
	engine  *DenoiseEngine

	publisher *Publisher
	stats     *Statistics
	pool      *SharedPool

	state *fastState

	consecutiveSubErrors atomic.Int64
	closeOnce            sync.Once
}

// madSmoothingFromBufferFactor derives the MADEstimator's exponential
// smoothing weight from noise_buffer_factor: a larger factor means a
// longer effective history, so more weight stays on the previous level.
func madSmoothingFromBufferFactor(factor float64) float64 {
	alpha := 1 - 1/(factor*10)
	return clamp(alpha, 0, 0.99)
}

// expectedPeriodMs returns the per-block period (ms) ThresholdAdapter's
// attack/release coefficients are derived against, approximated from the
// hop size at a nominal 1 sample/ms processing rate. Pipelines running at
// a materially different rate should use WithAttackRelease with time
// constants large relative to their own actual block period.
func expectedPeriodMs(hopSize int) float64 {
	if hopSize < 1 {
		hopSize = 1
	}
	return float64(hopSize)
}

// New constructs a StreamingPipeline from the given options (§4.14).
// Configuration errors are surfaced synchronously here, per §7.
func New(opts ...Option) (*StreamingPipeline, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	overlapSamples := int(float64(cfg.blockSize) * cfg.overlapFactor)
	hop := cfg.blockSize - overlapSamples

	minCap := cfg.ringMinCap
	if wantMin := nextPow2(int(float64(cfg.blockSize)*cfg.noiseBufferFactor) + 1); wantMin > minCap {
		minCap = clampPow2(wantMin, cfg.ringMinCap, cfg.ringMaxCap)
	}

	ring, err := NewResizableRing(minCap, minCap, cfg.ringMaxCap, cfg.resizeCooldown)
	if err != nil {
		return nil, err
	}

	window, err := NewStreamingWindow(ring.Ring(), cfg.blockSize, hop)
	if err != nil {
		return nil, err
	}

	overlapBuf, err := NewOverlapBuffer(cfg.blockSize, cfg.overlapFactor, cfg.windowFunction)
	if err != nil {
		return nil, err
	}

	mad, err := NewMADEstimator(madSmoothingFromBufferFactor(cfg.noiseBufferFactor))
	if err != nil {
		return nil, err
	}

	adapter, err := NewThresholdAdapter(cfg.attackTimeMs, cfg.releaseTimeMs, expectedPeriodMs(hop), 0, 1e12)
	if err != nil {
		return nil, err
	}

	engine, err := NewDenoiseEngine(cfg.transformer, cfg.boundaryMode, cfg.levels, cfg.thresholdType)
	if err != nil {
		return nil, err
	}

	p := &StreamingPipeline{
		cfg:       cfg,
		ring:      ring,
		window:    window,
		overlap:   overlapBuf,
		mad:       mad,
		adapter:   adapter,
		engine:    engine,
		publisher: NewPublisher(),
		stats:     NewStatistics(time.Now()),
		state:     newFastState(StateCreated),
	}

	if cfg.useSharedPool {
		p.pool = cfg.sharedPool
		p.pool.AddUser()
	}

	return p, nil
}

// Subscribe attaches subscriber as the pipeline's single subscriber and
// transitions Created -> Ready (§4.9). Re-subscribing before Close fails
// with InvalidStateError.
func (p *StreamingPipeline) Subscribe(subscriber Subscriber) error {
	guard := &subscriberGuard{inner: subscriber, pipeline: p}
	if err := p.publisher.Subscribe(guard); err != nil {
		return err
	}
	if p.state.TryTransition(StateCreated, StateReady) {
		getGlobalLogger().Info("pipeline subscribed", F("state", StateReady.String()))
	}
	return nil
}

// subscriberGuard wraps a user Subscriber to implement the panic-catching,
// consecutive-error-counting policy in §7: "Subscriber on_next exceptions
// are caught, counted, and logged; the pipeline continues. Three
// consecutive subscriber errors transition the pipeline to Closed."
type subscriberGuard struct {
	inner    Subscriber
	pipeline *StreamingPipeline
}

func (g *subscriberGuard) OnSubscribe(sub *Subscription) { g.inner.OnSubscribe(sub) }

func (g *subscriberGuard) OnNext(fragment []float64) {
	defer func() {
		if r := recover(); r != nil {
			g.pipeline.recordSubscriberError(r)
		}
	}()
	g.inner.OnNext(fragment)
	g.pipeline.consecutiveSubErrors.Store(0)
}

func (g *subscriberGuard) OnError(err error) { g.inner.OnError(err) }
func (g *subscriberGuard) OnComplete()       { g.inner.OnComplete() }

func (p *StreamingPipeline) recordSubscriberError(cause any) {
	getGlobalLogger().Warn("subscriber on_next failed", F("cause", fmt.Sprint(cause)))
	n := p.consecutiveSubErrors.Add(1)
	if n >= 3 {
		p.failFatal(&InternalError{Cause: fmt.Errorf("subscriber failed %d times consecutively: %v", n, cause)})
	}
}

// ProcessSample validates and ingests a single sample, then runs the
// dispatch loop inline.
func (p *StreamingPipeline) ProcessSample(v float64) error {
	if p.state.IsClosed() {
		return &InvalidStateError{Op: "StreamingPipeline.ProcessSample", State: StateClosed}
	}
	if !isFinite(v) {
		return &InvalidSignalError{Index: 0, Value: v}
	}
	if !p.ring.Ring().Write(v) {
		return &CapacityExceededError{Requested: 1, Accepted: 0}
	}
	p.stats.RecordSamples(1)
	return p.runDispatch()
}

// ProcessBlock validates and ingests samples, batching them into the ring
// with a best-effort single copy. Returns the number of samples accepted;
// if fewer than len(samples) were accepted, the returned error is a
// CapacityExceededError (§7). An empty slice is a no-op (§8).
func (p *StreamingPipeline) ProcessBlock(samples []float64) (int, error) {
	if p.state.IsClosed() {
		return 0, &InvalidStateError{Op: "StreamingPipeline.ProcessBlock", State: StateClosed}
	}
	if len(samples) == 0 {
		return 0, nil
	}
	for i, v := range samples {
		if !isFinite(v) {
			return 0, &InvalidSignalError{Index: i, Value: v}
		}
	}

	n := p.ring.Ring().WriteBatch(samples)
	p.stats.RecordSamples(n)

	var err error
	if n < len(samples) {
		err = &CapacityExceededError{Requested: len(samples), Accepted: n}
	}
	if dispatchErr := p.runDispatch(); dispatchErr != nil {
		return n, dispatchErr
	}
	return n, err
}

// runDispatch implements the dispatch loop of §4.9: drain every fully
// buffered window, denoise it, feed the overlap-add reconstruction to the
// publisher subject to demand, and run the adaptive resize supervisor.
func (p *StreamingPipeline) runDispatch() error {
	for p.window.HasWindow() {
		buf, zeroCopy := p.window.WindowView()
		var scratch *[]float64
		var slab *SlabHandle
		if !zeroCopy {
			if p.pool != nil {
				slab = p.pool.Acquire(p.window.WindowSize())
				buf = p.window.WindowCopy(slab.Data)
			} else {
				scratch = acquireScratch(p.window.WindowSize())
				buf = p.window.WindowCopy(*scratch)
			}
		}

		lambda := p.adapter.Current() * p.cfg.thresholdMultiplier

		start := time.Now()
		var detail []float64
		recon, err := p.engine.Denoise(buf, lambda, func(d []float64) { detail = append([]float64(nil), d...) })
		if scratch != nil {
			releaseScratch(scratch)
		}
		if slab != nil {
			slab.Release()
		}
		if err != nil {
			p.failFatal(err)
			return err
		}
		p.stats.RecordProcessingTime(time.Since(start))

		if len(detail) > 0 {
			p.mad.Update(detail)
			newThreshold := p.mad.Threshold(p.cfg.thresholdMethod)
			if p.cfg.adaptiveThreshold {
				p.adapter.SetTarget(newThreshold)
				p.adapter.Tick()
			} else {
				p.adapter.SetCurrent(newThreshold)
			}
		}

		fragment, err := p.overlap.Process(recon)
		if err != nil {
			p.failFatal(err)
			return err
		}
		p.stats.RecordBlockEmitted()

		p.publisher.Publish(fragment)
		if p.publisher.MailboxFull() {
			// Single-threaded cooperative default (§5): park here until
			// demand frees the mailbox rather than dropping data.
			p.publisher.WaitForCapacity()
		}

		if err := p.window.Advance(); err != nil {
			p.failFatal(err)
			return err
		}
	}

	p.maybeResize()
	return nil
}

func (p *StreamingPipeline) maybeResize() {
	if !p.cfg.adaptiveResize {
		return
	}
	ring := p.ring.Ring()
	utilization := float64(ring.Available()) / float64(ring.Capacity())
	if p.ring.ResizeBasedOnUtilization(utilization) {
		p.window.ring = p.ring.Ring()
		getGlobalLogger().Info("ring resized",
			F("utilization", utilization),
			F("new_capacity", p.ring.Ring().Capacity()))
	}
}

// Flush processes every currently fully-buffered window and, if overlap >
// 0, emits the final remaining OverlapBuffer tail fragment (§4.9). If the
// subscriber's demand is exhausted when the tail is published, Flush waits
// up to the configured close grace period for it to drain before
// returning, so a subsequent Close does not drop it. It is a no-op on a
// closed pipeline.
func (p *StreamingPipeline) Flush() error {
	if p.state.IsClosed() {
		return nil
	}
	if err := p.runDispatch(); err != nil {
		return err
	}
	if tail := p.overlap.FlushTail(); tail != nil {
		p.publisher.Publish(tail)
		p.stats.RecordBlockEmitted()
		if p.publisher.MailboxFull() {
			if !p.publisher.WaitForCapacityTimeout(p.cfg.closeGracePeriod) {
				getGlobalLogger().Warn("close grace period elapsed with final fragment undelivered",
					F("grace_period", p.cfg.closeGracePeriod.String()))
			}
		}
	}
	p.state.TransitionAny([]PipelineState{StateCreated, StateReady}, StateDraining)
	return nil
}

// Close flushes, signals OnComplete to the subscriber, releases any
// shared pool reference, and marks the pipeline Closed. Idempotent.
// Flush itself waits out the close grace period for the final fragment to
// drain (§4.9); Close then forces completion regardless of the outcome.
func (p *StreamingPipeline) Close() error {
	var flushErr error
	p.closeOnce.Do(func() {
		flushErr = p.Flush()
		p.publisher.Complete()
		if p.pool != nil {
			p.pool.RemoveUser()
		}
		p.state.Store(StateClosed)
		getGlobalLogger().Info("pipeline closed")
	})
	return flushErr
}

// failFatal implements the fatal-internal-error path of §7: publish
// on_error, transition to Closed immediately (bypassing the normal flush
// sequence, since the triggering state may no longer be consistent).
func (p *StreamingPipeline) failFatal(cause error) {
	getGlobalLogger().Error("pipeline fatal error", F("cause", cause.Error()))
	p.publisher.Fail(cause)
	p.state.Store(StateClosed)
	p.closeOnce.Do(func() {
		if p.pool != nil {
			p.pool.RemoveUser()
		}
	})
}

// CurrentThreshold returns the adapter's current lambda value.
func (p *StreamingPipeline) CurrentThreshold() float64 { return p.adapter.Current() }

// CurrentNoiseLevel returns the MAD estimator's current smoothed sigma.
func (p *StreamingPipeline) CurrentNoiseLevel() float64 { return p.mad.CurrentLevel() }

// Statistics returns a point-in-time snapshot of the pipeline's counters.
func (p *StreamingPipeline) Statistics() StatisticsSnapshot { return p.stats.Snapshot(time.Now()) }

// BufferLevel returns the ring's current utilisation (available/capacity).
func (p *StreamingPipeline) BufferLevel() float64 {
	ring := p.ring.Ring()
	return float64(ring.Available()) / float64(ring.Capacity())
}

// IsReady reports whether the pipeline is in the Ready state.
func (p *StreamingPipeline) IsReady() bool { return p.state.Load() == StateReady }

// BlockSize returns the configured window length.
func (p *StreamingPipeline) BlockSize() int { return p.window.WindowSize() }

// HopSize returns the configured hop length.
func (p *StreamingPipeline) HopSize() int { return p.window.HopSize() }

// State returns the pipeline's current lifecycle state.
func (p *StreamingPipeline) State() PipelineState { return p.state.Load() }
