// Package config loads evaluation settings from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	szeval "github.com/jamesainslie/go-szeval"
)

// EvalConfig holds evaluation settings. Nil fields fall back to the Get*
// defaults so partial files are valid.
type EvalConfig struct {
	// Fixed thresholds; when set the ceiling search is skipped.
	Threshold         *float64 `json:"threshold,omitempty"`
	SmoothedThreshold *float64 `json:"smoothed_threshold,omitempty"`

	// Event matching
	Lookback *int `json:"lookback,omitempty"`

	// Selection ceilings, 0 disables
	FPSPerHour    *float64 `json:"fps_per_hour,omitempty"`
	FPTimePerHour *float64 `json:"fp_time_per_hour,omitempty"`

	// Smoothing
	SmoothingWindow *int  `json:"smoothing_window,omitempty"`
	CausalSmoothing *bool `json:"causal_smoothing,omitempty"`

	Workers *int `json:"workers,omitempty"`

	// Outputs
	OutputDir *string `json:"output_dir,omitempty"`
	DBPath    *string `json:"db_path,omitempty"`
}

// Load reads an EvalConfig from a .json file of at most 1 MiB.
func Load(path string) (*EvalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 << 20
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &EvalConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set values are in range.
func (c *EvalConfig) Validate() error {
	for name, t := range map[string]*float64{"threshold": c.Threshold, "smoothed_threshold": c.SmoothedThreshold} {
		if t != nil && (*t < 0 || *t > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *t)
		}
	}
	if c.Lookback != nil && *c.Lookback < 0 {
		return fmt.Errorf("lookback must be non-negative, got %d", *c.Lookback)
	}
	if c.FPSPerHour != nil && *c.FPSPerHour < 0 {
		return fmt.Errorf("fps_per_hour must be non-negative, got %f", *c.FPSPerHour)
	}
	if c.FPTimePerHour != nil && *c.FPTimePerHour < 0 {
		return fmt.Errorf("fp_time_per_hour must be non-negative, got %f", *c.FPTimePerHour)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 0 {
		return fmt.Errorf("smoothing_window must be non-negative, got %d", *c.SmoothingWindow)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetLookback returns the lookback or 0 (unbounded).
func (c *EvalConfig) GetLookback() int {
	if c.Lookback == nil {
		return 0
	}
	return *c.Lookback
}

// GetFPSPerHour returns the false-positive events per hour ceiling or 0.
func (c *EvalConfig) GetFPSPerHour() float64 {
	if c.FPSPerHour == nil {
		return 0
	}
	return *c.FPSPerHour
}

// GetFPTimePerHour returns the false-positive seconds per hour ceiling or 0.
func (c *EvalConfig) GetFPTimePerHour() float64 {
	if c.FPTimePerHour == nil {
		return 0
	}
	return *c.FPTimePerHour
}

// GetSmoothingWindow returns the smoothing window or 0 (disabled).
func (c *EvalConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 0
	}
	return *c.SmoothingWindow
}

// GetCausalSmoothing returns whether the trailing average is used.
func (c *EvalConfig) GetCausalSmoothing() bool {
	return c.CausalSmoothing != nil && *c.CausalSmoothing
}

// GetWorkers returns the worker count or runtime.NumCPU().
func (c *EvalConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetOutputDir returns the report directory or "reports".
func (c *EvalConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "reports"
	}
	return *c.OutputDir
}

// GetDBPath returns the run database path or "" (persistence disabled).
func (c *EvalConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// Options converts the configuration to evaluator options.
func (c *EvalConfig) Options() []szeval.Option {
	opts := []szeval.Option{
		szeval.WithLookback(c.GetLookback()),
		szeval.WithFPSPerHourCeiling(c.GetFPSPerHour()),
		szeval.WithFPTimePerHourCeiling(c.GetFPTimePerHour()),
		szeval.WithSmoothingWindow(c.GetSmoothingWindow()),
		szeval.WithWorkers(c.GetWorkers()),
	}
	if c.GetCausalSmoothing() {
		opts = append(opts, szeval.WithCausalSmoothing())
	}
	if c.Threshold != nil {
		opts = append(opts, szeval.WithVariantThreshold(szeval.VariantRaw, *c.Threshold))
	}
	if c.SmoothedThreshold != nil {
		opts = append(opts, szeval.WithVariantThreshold(szeval.VariantSmoothed, *c.SmoothedThreshold))
	}
	return opts
}
