package szeval

import (
	"log/slog"
	"runtime"
)

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	thresholds map[Variant]float64

	lookback      int
	fpsPerHour    float64
	fpTimePerHour float64

	smoothWindow int
	causal       bool

	workers int
	logger  *slog.Logger
}

func defaultConfig() config {
	return config{
		thresholds: make(map[Variant]float64),
		workers:    runtime.NumCPU(),
		logger:     slog.Default(),
	}
}

// WithThreshold fixes the operating threshold for every variant, skipping
// the ceiling search. Use it to apply a threshold learned on another split.
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.thresholds[VariantRaw] = t
		c.thresholds[VariantSmoothed] = t
	}
}

// WithVariantThreshold fixes the operating threshold for one variant.
func WithVariantThreshold(v Variant, t float64) Option {
	return func(c *config) {
		c.thresholds[v] = t
	}
}

// WithLookback sets how many windows before an annotated onset an early
// detection may be credited (default: 0, unbounded).
func WithLookback(n int) Option {
	return func(c *config) {
		c.lookback = n
	}
}

// WithFPSPerHourCeiling sets the false-positive events per hour ceiling used
// to select a threshold (default: 0, disabled).
func WithFPSPerHourCeiling(v float64) Option {
	return func(c *config) {
		c.fpsPerHour = v
	}
}

// WithFPTimePerHourCeiling sets the false-positive seconds per hour ceiling
// used to select a threshold (default: 0, disabled).
func WithFPTimePerHourCeiling(v float64) Option {
	return func(c *config) {
		c.fpTimePerHour = v
	}
}

// WithSmoothingWindow enables a second, smoothed evaluation pass using a
// moving average over n windows (default: 0, disabled).
func WithSmoothingWindow(n int) Option {
	return func(c *config) {
		c.smoothWindow = n
	}
}

// WithCausalSmoothing switches the smoothed pass to a trailing average.
func WithCausalSmoothing() Option {
	return func(c *config) {
		c.causal = true
	}
}

// WithWorkers sets the sweep worker count (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
