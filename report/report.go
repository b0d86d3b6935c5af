// Package report serializes evaluation results: the window report as JSON,
// the sequence report and threshold-sweep table as CSV, the sweep table as a
// protobuf Struct, and the selected threshold as plain text.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	szeval "github.com/jamesainslie/go-szeval"
	"github.com/jamesainslie/go-szeval/metrics"
	"github.com/jamesainslie/go-szeval/sweep"
)

// Files names the outputs written for one report.
type Files struct {
	Window    string
	Sequence  string
	SweepCSV  string
	SweepPB   string
	Threshold string
}

// FilesFor returns the output paths for a dataset/variant inside dir.
func FilesFor(dir, dataset string, v szeval.Variant) Files {
	prefix := filepath.Join(dir, dataset+"_")
	suffix := v.Suffix()
	return Files{
		Window:    prefix + "window_report" + suffix + ".json",
		Sequence:  prefix + "sequence_report" + suffix + ".csv",
		SweepCSV:  prefix + "threshold_sweep" + suffix + ".csv",
		SweepPB:   prefix + "threshold_sweep" + suffix + ".pb",
		Threshold: prefix + "threshold" + suffix + ".txt",
	}
}

// WriteAll writes every output of rep into dir and returns the paths.
func WriteAll(dir string, rep *szeval.Report) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}
	f := FilesFor(dir, rep.Dataset, rep.Variant)

	if err := writeFile(f.Window, func(w io.Writer) error { return WriteWindow(w, rep.Window) }); err != nil {
		return Files{}, err
	}
	if err := writeFile(f.Sequence, func(w io.Writer) error { return WriteSequence(w, rep.Sequence) }); err != nil {
		return Files{}, err
	}
	if rep.Sweep != nil {
		if err := writeFile(f.SweepCSV, func(w io.Writer) error { return WriteSweepCSV(w, rep.Sweep) }); err != nil {
			return Files{}, err
		}
		if err := writeFile(f.SweepPB, func(w io.Writer) error {
			data, err := MarshalSweep(rep.Sweep)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}); err != nil {
			return Files{}, err
		}
	}
	if err := writeFile(f.Threshold, func(w io.Writer) error {
		return WriteThreshold(w, rep.Selection.Threshold)
	}); err != nil {
		return Files{}, err
	}
	return f, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteWindow writes the window report as indented JSON.
func WriteWindow(w io.Writer, m metrics.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ReadWindow decodes a window report written by WriteWindow.
func ReadWindow(r io.Reader) (metrics.Result, error) {
	var m metrics.Result
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return metrics.Result{}, fmt.Errorf("decode window report: %w", err)
	}
	return m, nil
}

var sequenceHeader = []string{
	"filename", "nfps", "latency_samples", "ncorrect",
	"nfp_samples", "ntp_samples", "nseizures", "duration",
	"fps_per_hour", "fp_time_per_hour", "latency_time", "sensitivity",
}

// WriteSequence writes one CSV row per recording followed by a "total" row.
// Rate columns are only filled on the total row.
func WriteSequence(w io.Writer, s szeval.SequenceReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sequenceHeader); err != nil {
		return err
	}
	for _, r := range s.Rows {
		row := []string{
			r.Filename,
			strconv.Itoa(r.FalsePositiveEvents),
			strconv.Itoa(r.LatencySamples),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.FalsePositiveSamples),
			strconv.Itoa(r.TruePositiveSamples),
			strconv.Itoa(r.Seizures),
			formatFloat(r.Duration),
			"", "", "", "",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	t := s.Total
	total := []string{
		"total",
		strconv.Itoa(t.FalsePositiveEvents),
		strconv.Itoa(t.LatencySamples),
		strconv.Itoa(t.Correct),
		"", "",
		strconv.Itoa(t.Seizures),
		formatFloat(t.Duration),
		formatFloat(t.FPSPerHour),
		formatFloat(t.FPTimePerHour),
		formatFloat(t.LatencyTime),
		formatFloat(t.Sensitivity),
	}
	if err := cw.Write(total); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

var sweepHeader = []string{
	"thresholds", "nfps", "nfp_samples", "latency_samples", "ncorrect",
	"sensitivity", "fps_per_hour", "fp_time_per_hour",
	"average_latency_samples", "latency_seconds", "average_latency_seconds",
}

// WriteSweepCSV writes the sweep table with one row per threshold.
func WriteSweepCSV(w io.Writer, r *sweep.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sweepHeader); err != nil {
		return err
	}
	for t, th := range r.Thresholds {
		row := []string{
			formatFloat(th),
			strconv.Itoa(r.FalsePositiveEvents[t]),
			strconv.Itoa(r.FalsePositiveSamples[t]),
			strconv.Itoa(r.LatencySamples[t]),
			strconv.Itoa(r.Correct[t]),
			formatFloat(r.Sensitivity[t]),
			formatFloat(r.FPSPerHour[t]),
			formatFloat(r.FPTimePerHour[t]),
			formatFloat(r.AverageLatencySamples[t]),
			formatFloat(r.LatencySeconds[t]),
			formatFloat(r.AverageLatencySeconds[t]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteThreshold writes a selected threshold as a single line of text.
func WriteThreshold(w io.Writer, t float64) error {
	_, err := fmt.Fprintln(w, formatFloat(t))
	return err
}

// ReadThreshold parses a threshold written by WriteThreshold.
func ReadThreshold(r io.Reader) (float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read threshold: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, errors.New("report: empty threshold file")
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse threshold %q: %w", s, err)
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("report: threshold %v outside [0, 1]", t)
	}
	return t, nil
}

// ReadThresholdFile is ReadThreshold over a file path.
func ReadThresholdFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return ReadThreshold(f)
}

// ThresholdPath returns where the variant's threshold sits next to the raw
// threshold file path.
func ThresholdPath(path string, v szeval.Variant) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + v.Suffix() + ext
}

// ReadThresholds reads the raw threshold at path and, when it exists, the
// smoothed threshold written next to it by WriteAll.
func ReadThresholds(path string) (map[szeval.Variant]float64, error) {
	raw, err := ReadThresholdFile(path)
	if err != nil {
		return nil, err
	}
	out := map[szeval.Variant]float64{szeval.VariantRaw: raw}

	smoothedPath := ThresholdPath(path, szeval.VariantSmoothed)
	smoothed, err := ReadThresholdFile(smoothedPath)
	switch {
	case err == nil:
		out[szeval.VariantSmoothed] = smoothed
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", smoothedPath, err)
	}
	return out, nil
}

// ReadWindowFile is ReadWindow over a file path.
func ReadWindowFile(path string) (metrics.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return metrics.Result{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadWindow(f)
}

// ReadSweepFile decodes a protobuf sweep table written by WriteAll.
func ReadSweepFile(path string) (*sweep.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalSweep(data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
