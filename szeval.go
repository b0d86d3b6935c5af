package szeval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jamesainslie/go-szeval/events"
	"github.com/jamesainslie/go-szeval/metrics"
	"github.com/jamesainslie/go-szeval/recording"
	"github.com/jamesainslie/go-szeval/smooth"
	"github.com/jamesainslie/go-szeval/sweep"
)

// Variant distinguishes the raw and smoothed evaluation passes.
type Variant string

const (
	VariantRaw      Variant = "raw"
	VariantSmoothed Variant = "smoothed"
)

// Suffix returns the file-name suffix used for the variant's reports.
func (v Variant) Suffix() string {
	if v == VariantRaw {
		return ""
	}
	return "_" + string(v)
}

// SequenceRow is the event outcome of one recording at the chosen threshold.
type SequenceRow struct {
	Filename             string  `json:"filename"`
	FalsePositiveEvents  int     `json:"nfps"`
	LatencySamples       int     `json:"latency_samples"`
	Correct              int     `json:"ncorrect"`
	FalsePositiveSamples int     `json:"nfp_samples"`
	TruePositiveSamples  int     `json:"ntp_samples"`
	Seizures             int     `json:"nseizures"`
	Duration             float64 `json:"duration"`
}

// SequenceTotal aggregates the sequence rows of a set.
type SequenceTotal struct {
	FPSPerHour          float64 `json:"fps_per_hour"`
	FPTimePerHour       float64 `json:"fp_time_per_hour"`
	LatencyTime         float64 `json:"latency_time"`
	Sensitivity         float64 `json:"sensitivity"`
	FalsePositiveEvents int     `json:"nfps"`
	LatencySamples      int     `json:"latency_samples"`
	Correct             int     `json:"ncorrect"`
	Seizures            int     `json:"nseizures"`
	Duration            float64 `json:"duration"`
}

// SequenceReport is the per-recording event report plus its total.
type SequenceReport struct {
	Rows  []SequenceRow `json:"rows"`
	Total SequenceTotal `json:"total"`
}

// Report is the full result set of one variant of one recording set.
type Report struct {
	Dataset   string          `json:"dataset"`
	Variant   Variant         `json:"variant"`
	Lookback  int             `json:"lookback"`
	Selection sweep.Selection `json:"selection"`
	Window    metrics.Result  `json:"window"`
	Sequence  SequenceReport  `json:"sequence"`
	Sweep     *sweep.Result   `json:"-"`
}

// Evaluator scores recording sets, selects operating thresholds and builds
// reports. It is safe for concurrent use.
type Evaluator struct {
	cfg    config
	logger *slog.Logger
}

// New creates an Evaluator.
func New(opts ...Option) (*Evaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	for v, t := range cfg.thresholds {
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("%w: %s threshold %.4f outside [0, 1]", ErrInvalidOption, v, t)
		}
	}
	if cfg.lookback < 0 {
		return nil, fmt.Errorf("%w: lookback %d is negative", ErrInvalidOption, cfg.lookback)
	}
	if cfg.fpsPerHour < 0 || cfg.fpTimePerHour < 0 {
		return nil, fmt.Errorf("%w: ceilings must be non-negative", ErrInvalidOption)
	}
	if cfg.smoothWindow < 0 {
		return nil, fmt.Errorf("%w: smoothing window %d is negative", ErrInvalidOption, cfg.smoothWindow)
	}

	return &Evaluator{cfg: cfg, logger: cfg.logger}, nil
}

// Evaluate runs the raw pass and, when a smoothing window is configured, the
// smoothed pass over set.
func (e *Evaluator) Evaluate(ctx context.Context, set *recording.Set) ([]*Report, error) {
	if len(set.Recordings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySet, set.Name)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", set.Name, err)
	}

	raw, err := e.evaluate(ctx, set, VariantRaw)
	if err != nil {
		return nil, err
	}
	reports := []*Report{raw}

	if e.cfg.smoothWindow > 0 {
		smoothed := set.WithScores(e.smoother())
		e.logger.Debug("smoothing predictions",
			"dataset", set.Name, "window", e.cfg.smoothWindow, "causal", e.cfg.causal)
		rep, err := e.evaluate(ctx, smoothed, VariantSmoothed)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Transfer evaluates set at the thresholds selected in from, typically the
// reports of a training split. Variants missing from from fall back to the
// evaluator's own configuration.
func (e *Evaluator) Transfer(ctx context.Context, from []*Report, set *recording.Set) ([]*Report, error) {
	cfg := e.cfg
	cfg.thresholds = make(map[Variant]float64, len(from))
	for v, t := range e.cfg.thresholds {
		cfg.thresholds[v] = t
	}
	for _, r := range from {
		cfg.thresholds[r.Variant] = r.Selection.Threshold
		e.logger.Info("transferring threshold",
			"from", r.Dataset, "to", set.Name, "variant", r.Variant, "threshold", r.Selection.Threshold)
	}
	te := &Evaluator{cfg: cfg, logger: e.logger}
	return te.Evaluate(ctx, set)
}

func (e *Evaluator) smoother() func([]float64) []float64 {
	w := e.cfg.smoothWindow
	if e.cfg.causal {
		return func(x []float64) []float64 { return smooth.Causal(x, w) }
	}
	return func(x []float64) []float64 { return smooth.Centered(x, w) }
}

func (e *Evaluator) evaluate(ctx context.Context, set *recording.Set, v Variant) (*Report, error) {
	e.logger.Info("sweeping thresholds",
		"dataset", set.Name, "variant", v, "recordings", len(set.Recordings),
		"thresholds", sweep.GridSize, "workers", e.cfg.workers)

	sw, err := sweep.Sweep(ctx, set, sweep.Config{Lookback: e.cfg.lookback, Workers: e.cfg.workers})
	if err != nil {
		return nil, err
	}

	sel := e.choose(sw, v)
	log := e.logger.With("dataset", set.Name, "variant", v)
	if sel.Reason == sweep.ReasonUnsatisfiable {
		log.Warn("no threshold satisfies the false-positive ceilings, using floor",
			"threshold", sel.Threshold,
			"fps_per_hour_ceiling", e.cfg.fpsPerHour,
			"fp_time_per_hour_ceiling", e.cfg.fpTimePerHour)
	} else {
		log.Info("selected threshold", "threshold", sel.Threshold, "reason", sel.Reason)
	}

	win, err := metrics.ComputeSet(set, sel.Threshold)
	if err != nil {
		return nil, err
	}
	seq, err := e.sequenceReport(set, sel.Threshold)
	if err != nil {
		return nil, err
	}

	return &Report{
		Dataset:   set.Name,
		Variant:   v,
		Lookback:  e.cfg.lookback,
		Selection: sel,
		Window:    win,
		Sequence:  seq,
		Sweep:     sw,
	}, nil
}

// choose applies the selection policy: an explicit threshold wins, then the
// ceiling search, then the default operating point.
func (e *Evaluator) choose(sw *sweep.Result, v Variant) sweep.Selection {
	if t, ok := e.cfg.thresholds[v]; ok {
		return sweep.Selection{Index: sweep.IndexOf(t), Threshold: t, Reason: sweep.ReasonExplicit}
	}
	c := sweep.Ceilings{FPSPerHour: e.cfg.fpsPerHour, FPTimePerHour: e.cfg.fpTimePerHour}
	if c.Active() {
		return sw.Select(c)
	}
	return sweep.Selection{
		Index:     sweep.IndexOf(metrics.DefaultThreshold),
		Threshold: metrics.DefaultThreshold,
		Reason:    sweep.ReasonDefault,
	}
}

func (e *Evaluator) sequenceReport(set *recording.Set, threshold float64) (SequenceReport, error) {
	var rep SequenceReport
	var total events.Result
	for _, r := range set.Recordings {
		m, err := events.MatchRecording(r, threshold, e.cfg.lookback)
		if err != nil {
			return SequenceReport{}, err
		}
		total.Add(m)
		rep.Rows = append(rep.Rows, SequenceRow{
			Filename:             r.Filename,
			FalsePositiveEvents:  m.FalsePositiveEvents,
			LatencySamples:       m.LatencySamples,
			Correct:              m.Correct,
			FalsePositiveSamples: m.FalsePositiveSamples,
			TruePositiveSamples:  m.TruePositiveSamples,
			Seizures:             m.Seizures,
			Duration:             r.Duration,
		})
	}

	duration := set.TotalDuration()
	seizures := set.TotalSeizures()
	advance := set.Advance()
	t := SequenceTotal{
		FalsePositiveEvents: total.FalsePositiveEvents,
		LatencySamples:      total.LatencySamples,
		Correct:             total.Correct,
		Seizures:            seizures,
		Duration:            duration,
	}
	if duration > 0 {
		t.FPSPerHour = float64(total.FalsePositiveEvents) * 3600 / duration
		t.FPTimePerHour = float64(total.FalsePositiveSamples) * advance * 3600 / duration
	}
	if seizures > 0 {
		t.Sensitivity = float64(total.Correct) / float64(seizures)
	}
	if total.Correct > 0 {
		t.LatencyTime = float64(total.LatencySamples) * advance / float64(total.Correct)
	}
	rep.Total = t
	return rep, nil
}
