// Package dataset loads recording sets from a YAML manifest and per-recording
// prediction CSV files.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/go-szeval/labels"
	"github.com/jamesainslie/go-szeval/recording"
)

// Manifest describes one dataset split.
type Manifest struct {
	Name string `yaml:"name"`
	// TotalSeizures overrides the count derived from the annotations.
	TotalSeizures int             `yaml:"total_seizures,omitempty"`
	Window        Window          `yaml:"window"`
	PostSeizure   bool            `yaml:"post_seizure,omitempty"`
	Recordings    []RecordingSpec `yaml:"recordings"`

	dir string
}

// Window is the window geometry shared by every recording of a manifest.
type Window struct {
	Length     float64 `yaml:"length"`
	Overlap    float64 `yaml:"overlap,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// Geometry converts w to a labels.Geometry.
func (w Window) Geometry() labels.Geometry {
	return labels.Geometry{WindowLength: w.Length, Overlap: w.Overlap, SampleRate: w.SampleRate}
}

// RecordingSpec is one recording entry of a manifest.
type RecordingSpec struct {
	Filename      string    `yaml:"filename"`
	Duration      float64   `yaml:"duration"`
	SeizureStarts []float64 `yaml:"seizure_starts,omitempty"`
	SeizureEnds   []float64 `yaml:"seizure_ends,omitempty"`
	// Predictions is a CSV path, relative to the manifest directory.
	Predictions string `yaml:"predictions"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural errors. All problems are
// reported together.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Window.Length <= 0 {
		errs = append(errs, fmt.Errorf("window length must be positive, got %v", m.Window.Length))
	}
	if m.Window.Overlap < 0 || m.Window.Overlap >= m.Window.Length {
		errs = append(errs, fmt.Errorf("window overlap %v must be in [0, length)", m.Window.Overlap))
	}
	if m.TotalSeizures < 0 {
		errs = append(errs, fmt.Errorf("total_seizures must be non-negative, got %d", m.TotalSeizures))
	}
	if len(m.Recordings) == 0 {
		errs = append(errs, errors.New("no recordings"))
	}
	seen := make(map[string]bool, len(m.Recordings))
	for i, r := range m.Recordings {
		if r.Filename == "" {
			errs = append(errs, fmt.Errorf("recording %d: missing filename", i))
			continue
		}
		if seen[r.Filename] {
			errs = append(errs, fmt.Errorf("%s: duplicate recording", r.Filename))
		}
		seen[r.Filename] = true
		if r.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: duration must be positive", r.Filename))
		}
		if len(r.SeizureStarts) != len(r.SeizureEnds) {
			errs = append(errs, fmt.Errorf("%s: %d seizure starts but %d ends",
				r.Filename, len(r.SeizureStarts), len(r.SeizureEnds)))
		}
		if r.Predictions == "" {
			errs = append(errs, fmt.Errorf("%s: missing predictions path", r.Filename))
		}
	}
	return errors.Join(errs...)
}

// PredictionsPath resolves r's predictions path against the manifest
// directory.
func (m *Manifest) PredictionsPath(r RecordingSpec) string {
	if filepath.IsAbs(r.Predictions) || m.dir == "" {
		return r.Predictions
	}
	return filepath.Join(m.dir, r.Predictions)
}

// Label derives the per-window labels of r.
func (m *Manifest) Label(r RecordingSpec) ([]int, error) {
	intervals, err := labels.Intervals(r.SeizureStarts, r.SeizureEnds)
	if err != nil {
		return nil, err
	}
	return labels.Label(r.Duration, intervals, m.Window.Geometry(), m.PostSeizure)
}

// Load builds the recording set described by m, reading every predictions
// file. A prediction count that disagrees with the label count is reported
// as recording.ErrShapeMismatch.
func (m *Manifest) Load() (*recording.Set, error) {
	set := &recording.Set{Name: m.Name, Seizures: m.TotalSeizures}
	advance := m.Window.Geometry().Advance()
	for _, r := range m.Recordings {
		lab, err := m.Label(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Filename, err)
		}
		scores, err := ReadPredictionsFile(m.PredictionsPath(r))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Filename, err)
		}
		set.Recordings = append(set.Recordings, &recording.Recording{
			Filename: r.Filename,
			Scores:   scores,
			Labels:   lab,
			Duration: r.Duration,
			Advance:  advance,
		})
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	return set, nil
}

// LoadSet is LoadManifest followed by Load.
func LoadSet(path string) (*recording.Set, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.Load()
}
