// Package sweep scores a recording set across the fixed threshold grid and
// selects a deployment threshold under false-positive ceilings.
package sweep

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-szeval/events"
	"github.com/jamesainslie/go-szeval/recording"
)

// Config holds sweep parameters.
type Config struct {
	// Lookback bounds early-detection credit, in windows. 0 is unbounded.
	Lookback int
	// Workers caps concurrent threshold evaluations (default: runtime.NumCPU()).
	Workers int
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		Lookback: 0,
		Workers:  runtime.NumCPU(),
	}
}

// Result is the threshold-sweep table for one recording set. Every slice is
// indexed like Thresholds.
type Result struct {
	Thresholds           []float64 `json:"thresholds"`
	FalsePositiveEvents  []int     `json:"nfps"`
	FalsePositiveSamples []int     `json:"nfp_samples"`
	LatencySamples       []int     `json:"latency_samples"`
	Correct              []int     `json:"ncorrect"`

	Sensitivity           []float64 `json:"sensitivity"`
	FPSPerHour            []float64 `json:"fps_per_hour"`
	FPTimePerHour         []float64 `json:"fp_time_per_hour"`
	AverageLatencySamples []float64 `json:"average_latency_samples"`
	LatencySeconds        []float64 `json:"latency_seconds"`
	AverageLatencySeconds []float64 `json:"average_latency_seconds"`

	TotalSeizures int     `json:"total_seizures"`
	TotalDuration float64 `json:"total_duration_seconds"`
	Advance       float64 `json:"window_advance_seconds"`

	// PerRecording[t][r] is recording r's result at Thresholds[t].
	PerRecording [][]events.Result `json:"-"`
	Filenames    []string          `json:"-"`
}

// Sweep runs the event matcher for every recording at every grid threshold
// and aggregates the counts. Identical inputs always produce identical
// results.
func Sweep(ctx context.Context, set *recording.Set, cfg Config) (*Result, error) {
	return SweepThresholds(ctx, set, Grid(), cfg)
}

// SweepThresholds is Sweep over an arbitrary threshold list.
func SweepThresholds(ctx context.Context, set *recording.Set, thresholds []float64, cfg Config) (*Result, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("sweep %s: %w", set.Name, err)
	}
	if cfg.Lookback < 0 {
		return nil, fmt.Errorf("sweep: lookback must be non-negative, got %d", cfg.Lookback)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	n := len(thresholds)
	res := newResult(set, thresholds)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t, th := range thresholds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]events.Result, len(set.Recordings))
			for r, rec := range set.Recordings {
				m, err := events.Match(rec.Labels, rec.Scores, th, cfg.Lookback)
				if err != nil {
					return fmt.Errorf("threshold %.2f, %s: %w", th, rec.Filename, err)
				}
				row[r] = m
			}
			res.PerRecording[t] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for t := 0; t < n; t++ {
		var total events.Result
		for _, m := range res.PerRecording[t] {
			total.Add(m)
		}
		res.FalsePositiveEvents[t] = total.FalsePositiveEvents
		res.FalsePositiveSamples[t] = total.FalsePositiveSamples
		res.LatencySamples[t] = total.LatencySamples
		res.Correct[t] = total.Correct
	}
	res.Derive()
	return res, nil
}

func newResult(set *recording.Set, thresholds []float64) *Result {
	n := len(thresholds)
	res := &Result{
		Thresholds:           append([]float64(nil), thresholds...),
		FalsePositiveEvents:  make([]int, n),
		FalsePositiveSamples: make([]int, n),
		LatencySamples:       make([]int, n),
		Correct:              make([]int, n),
		TotalSeizures:        set.TotalSeizures(),
		TotalDuration:        set.TotalDuration(),
		Advance:              set.Advance(),
		PerRecording:         make([][]events.Result, n),
		Filenames:            make([]string, len(set.Recordings)),
	}
	for i, r := range set.Recordings {
		res.Filenames[i] = r.Filename
	}
	return res
}

// Derive recomputes the rate columns from the count columns and the set
// totals. Undefined ratios are 0.
func (r *Result) Derive() {
	n := len(r.Thresholds)
	for _, col := range []*[]float64{
		&r.Sensitivity, &r.FPSPerHour, &r.FPTimePerHour,
		&r.AverageLatencySamples, &r.LatencySeconds, &r.AverageLatencySeconds,
	} {
		*col = make([]float64, n)
	}
	hours := r.TotalDuration / 3600
	for t := range r.Thresholds {
		if r.Correct[t] != 0 {
			r.AverageLatencySamples[t] = float64(r.LatencySamples[t]) / float64(r.Correct[t])
		}
		if r.TotalSeizures > 0 {
			r.Sensitivity[t] = float64(r.Correct[t]) / float64(r.TotalSeizures)
		}
		if hours > 0 {
			r.FPSPerHour[t] = float64(r.FalsePositiveEvents[t]) / hours
			r.FPTimePerHour[t] = float64(r.FalsePositiveSamples[t]) * r.Advance / hours
		}
		r.LatencySeconds[t] = float64(r.LatencySamples[t]) * r.Advance
		r.AverageLatencySeconds[t] = r.AverageLatencySamples[t] * r.Advance
	}
}

// Row returns the aggregate event counts at threshold index t.
func (r *Result) Row(t int) events.Result {
	return events.Result{
		FalsePositiveEvents:  r.FalsePositiveEvents[t],
		FalsePositiveSamples: r.FalsePositiveSamples[t],
		LatencySamples:       r.LatencySamples[t],
		Correct:              r.Correct[t],
		Seizures:             r.TotalSeizures,
	}
}
