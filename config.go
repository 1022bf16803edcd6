package denoiser

import "time"

// ImplementationStrategy selects between constant-factor tradeoffs for the
// dispatch loop; both implement the same contract (§6).
type ImplementationStrategy int

const (
	StrategyAuto ImplementationStrategy = iota
	StrategyFast
	StrategyQuality
)

// config is the resolved set of options a StreamingPipeline is built from
// (§4.14). It mirrors §6's configuration table exactly.
type config struct {
	transformer  Transformer
	boundaryMode BoundaryMode

	blockSize     int
	overlapFactor float64
	levels        int

	thresholdMethod ThresholdKind
	thresholdType   ThresholdType

	adaptiveThreshold    bool
	thresholdMultiplier  float64
	attackTimeMs         float64
	releaseTimeMs        float64
	noiseBufferFactor    float64

	useSharedPool bool
	sharedPool    *SharedPool

	windowFunction WindowFunction

	ringMinCap      int
	ringMaxCap      int
	resizeCooldown  time.Duration
	adaptiveResize  bool

	strategy ImplementationStrategy

	metricsEnabled bool

	closeGracePeriod time.Duration
}

func defaultConfig() *config {
	return &config{
		boundaryMode:        BoundaryPeriodic,
		blockSize:           256,
		overlapFactor:       0,
		levels:              1,
		thresholdMethod:     ThresholdUniversal,
		thresholdType:       ThresholdSoft,
		adaptiveThreshold:   false,
		thresholdMultiplier: 1.0,
		attackTimeMs:        10,
		releaseTimeMs:       50,
		noiseBufferFactor:   1,
		windowFunction:      WindowRectangular,
		ringMinCap:          256,
		ringMaxCap:          65536,
		resizeCooldown:      time.Second,
		strategy:            StrategyAuto,
		closeGracePeriod:    5 * time.Second,
	}
}

// Option configures a StreamingPipeline, following the functional-options
// pattern (§4.14). Each option validates its own argument and returns an
// error that New surfaces synchronously (§7).
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// WithTransformer sets the wavelet capability used for forward/inverse
// transforms. Required; New fails without one.
func WithTransformer(t Transformer) Option {
	return optionFunc(func(c *config) error {
		if t == nil {
			return &InvalidArgumentError{Field: "transformer", Value: nil}
		}
		c.transformer = t
		return nil
	})
}

// WithBoundaryMode sets the boundary handling mode for the transformer.
func WithBoundaryMode(mode BoundaryMode) Option {
	return optionFunc(func(c *config) error {
		c.boundaryMode = mode
		return nil
	})
}

// WithBlockSize sets the window length. Must be >= 16.
func WithBlockSize(n int) Option {
	return optionFunc(func(c *config) error {
		if n < 16 {
			return &InvalidArgumentError{Field: "blockSize", Value: n}
		}
		c.blockSize = n
		return nil
	})
}

// WithOverlapFactor sets the overlap-add fraction, in [0, 1). 0 disables
// overlap-add.
func WithOverlapFactor(f float64) Option {
	return optionFunc(func(c *config) error {
		if f < 0 || f >= 1 {
			return &InvalidArgumentError{Field: "overlapFactor", Value: f}
		}
		c.overlapFactor = f
		return nil
	})
}

// WithLevels sets the wavelet decomposition depth. Must be >= 1; validated
// against block size/filter length when the transformer is known, in New.
func WithLevels(n int) Option {
	return optionFunc(func(c *config) error {
		if n < 1 {
			return &InvalidArgumentError{Field: "levels", Value: n}
		}
		c.levels = n
		return nil
	})
}

// WithThresholdMethod selects Universal/SURE/Minimax threshold selection.
func WithThresholdMethod(kind ThresholdKind) Option {
	return optionFunc(func(c *config) error {
		c.thresholdMethod = kind
		return nil
	})
}

// WithThresholdType selects Soft/Hard shrinkage.
func WithThresholdType(t ThresholdType) Option {
	return optionFunc(func(c *config) error {
		c.thresholdType = t
		return nil
	})
}

// WithAdaptiveThreshold enables the ThresholdAdapter attack/release
// smoothing path instead of applying the raw per-window estimate.
func WithAdaptiveThreshold(enabled bool) Option {
	return optionFunc(func(c *config) error {
		c.adaptiveThreshold = enabled
		return nil
	})
}

// WithThresholdMultiplier scales the computed lambda by a positive factor.
func WithThresholdMultiplier(m float64) Option {
	return optionFunc(func(c *config) error {
		if m <= 0 {
			return &InvalidArgumentError{Field: "thresholdMultiplier", Value: m}
		}
		c.thresholdMultiplier = m
		return nil
	})
}

// WithAttackRelease sets the ThresholdAdapter's time constants in
// milliseconds; both must be positive.
func WithAttackRelease(attackMs, releaseMs float64) Option {
	return optionFunc(func(c *config) error {
		if attackMs <= 0 {
			return &InvalidArgumentError{Field: "attackTimeMs", Value: attackMs}
		}
		if releaseMs <= 0 {
			return &InvalidArgumentError{Field: "releaseTimeMs", Value: releaseMs}
		}
		c.attackTimeMs = attackMs
		c.releaseTimeMs = releaseMs
		return nil
	})
}

// WithNoiseBufferFactor sets the multiplier sizing MAD history; must be
// >= 1.
func WithNoiseBufferFactor(f float64) Option {
	return optionFunc(func(c *config) error {
		if f < 1 {
			return &InvalidArgumentError{Field: "noiseBufferFactor", Value: f}
		}
		c.noiseBufferFactor = f
		return nil
	})
}

// WithSharedPool attaches a pre-built SharedPool, shared across pipelines;
// pool's reference count is incremented by New and decremented by Close.
func WithSharedPool(pool *SharedPool) Option {
	return optionFunc(func(c *config) error {
		if pool == nil {
			return &InvalidArgumentError{Field: "sharedPool", Value: nil}
		}
		c.useSharedPool = true
		c.sharedPool = pool
		return nil
	})
}

// WithWindowFunction selects the OverlapBuffer window function.
func WithWindowFunction(fn WindowFunction) Option {
	return optionFunc(func(c *config) error {
		c.windowFunction = fn
		return nil
	})
}

// WithRingCapacity sets the ResizableRing's [min, max] bounds. Both must
// be powers of two >= 2, with min <= max.
func WithRingCapacity(minCap, maxCap int) Option {
	return optionFunc(func(c *config) error {
		if minCap < 2 || minCap&(minCap-1) != 0 {
			return &InvalidArgumentError{Field: "ringMinCap", Value: minCap}
		}
		if maxCap < minCap || maxCap&(maxCap-1) != 0 {
			return &InvalidArgumentError{Field: "ringMaxCap", Value: maxCap}
		}
		c.ringMinCap = minCap
		c.ringMaxCap = maxCap
		return nil
	})
}

// WithResizeCooldown sets the minimum interval between automatic resizes
// and enables the adaptive resize supervisor.
func WithResizeCooldown(d time.Duration) Option {
	return optionFunc(func(c *config) error {
		if d <= 0 {
			return &InvalidArgumentError{Field: "resizeCooldown", Value: d}
		}
		c.resizeCooldown = d
		c.adaptiveResize = true
		return nil
	})
}

// WithCloseGracePeriod sets how long Close waits for the final fragment to
// drain to the subscriber before forcing completion (§4.9). 0 means close
// forces completion immediately without waiting. Must be >= 0.
func WithCloseGracePeriod(d time.Duration) Option {
	return optionFunc(func(c *config) error {
		if d < 0 {
			return &InvalidArgumentError{Field: "closeGracePeriod", Value: d}
		}
		c.closeGracePeriod = d
		return nil
	})
}

// WithImplementationStrategy overrides AUTO strategy selection (§6).
func WithImplementationStrategy(s ImplementationStrategy) Option {
	return optionFunc(func(c *config) error {
		c.strategy = s
		return nil
	})
}

// WithMetrics records a metrics-enabled flag in the configuration (false by
// default). Nothing reads the flag: the package's Prometheus collectors in
// statistics.go and pool.go are registered at package initialisation and
// updated on every call whatever this option says.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(c *config) error {
		c.metricsEnabled = enabled
		return nil
	})
}

func resolveConfig(opts []Option) (*config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}
	if c.transformer == nil {
		return nil, &InvalidArgumentError{Field: "transformer", Value: nil}
	}
	maxLevels := MaxLevelsForBlockSize(c.blockSize, c.transformer.FilterLength())
	if c.levels > maxLevels {
		return nil, &InvalidArgumentError{Field: "levels", Value: c.levels}
	}
	return c, nil
}

// resolvedStrategy applies the AUTO selection rule from §6.
func (c *config) resolvedStrategy() ImplementationStrategy {
	if c.strategy != StrategyAuto {
		return c.strategy
	}
	if c.blockSize <= 256 {
		return StrategyFast
	}
	if c.overlapFactor > 0 && c.adaptiveThreshold {
		return StrategyFast
	}
	return StrategyQuality
}
