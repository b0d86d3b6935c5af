// Package events reconciles binarized per-window detections with annotated
// seizures and produces event-level counts for one recording.
//
// A seizure counts as detected when any of its windows is predicted
// positive. When the detector was already firing at the annotated onset, the
// contiguous run of positive windows leading into the onset is credited to
// the seizure (bounded by the lookback when it is positive) and the latency
// becomes negative. Every detection run whose first window is still a false
// positive after crediting counts as one false-positive event.
package events

import (
	"fmt"

	"github.com/jamesainslie/go-szeval/recording"
)

// Result holds the event-level outcome of one recording at one threshold.
type Result struct {
	// FalsePositiveEvents is the number of false detection events (nfps).
	FalsePositiveEvents int `json:"nfps"`
	// FalsePositiveSamples and TruePositiveSamples count windows after
	// crediting early detections.
	FalsePositiveSamples int `json:"nfp_samples"`
	TruePositiveSamples  int `json:"ntp_samples"`
	// LatencySamples is the signed latency sum over detected seizures, in windows.
	LatencySamples int `json:"latency_samples"`
	// Correct is the number of detected seizures (ncorrect).
	Correct int `json:"ncorrect"`
	// Seizures is the number of annotated seizure runs.
	Seizures int `json:"nseizures"`
	// Reclassified lists background windows credited to a seizure, ascending
	// within each seizure.
	Reclassified []int `json:"-"`
}

// Add accumulates o into r. Reclassified indices are not merged.
func (r *Result) Add(o Result) {
	r.FalsePositiveEvents += o.FalsePositiveEvents
	r.FalsePositiveSamples += o.FalsePositiveSamples
	r.TruePositiveSamples += o.TruePositiveSamples
	r.LatencySamples += o.LatencySamples
	r.Correct += o.Correct
	r.Seizures += o.Seizures
}

// Span is a seizure run: Onset is its first window, Offset one past its last.
type Span struct {
	Onset  int
	Offset int
}

// Seizures returns the contiguous seizure runs of labels.
func Seizures(labels []int) []Span {
	var spans []Span
	in := false
	for i, l := range labels {
		switch {
		case l == recording.Seizure && !in:
			spans = append(spans, Span{Onset: i})
			in = true
		case l != recording.Seizure && in:
			spans[len(spans)-1].Offset = i
			in = false
		}
	}
	if in {
		spans[len(spans)-1].Offset = len(labels)
	}
	return spans
}

// DetectionStarts returns the indices where pred switches from 0 to 1,
// including index 0 when the first window is positive.
func DetectionStarts(pred []int) []int {
	var starts []int
	prev := 0
	for i, p := range pred {
		if p == 1 && prev == 0 {
			starts = append(starts, i)
		}
		prev = p
	}
	return starts
}

// MatchRecording scores r at threshold. It fails when scores and labels
// disagree in length.
func MatchRecording(r *recording.Recording, threshold float64, lookback int) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return Match(r.Labels, r.Scores, threshold, lookback)
}

// Match scores one recording. Post-seizure labels are treated as background.
// lookback bounds how many windows before an onset an early detection may be
// credited; 0 leaves the backward walk unbounded and disables the early-fire
// penalty.
func Match(labels []int, scores []float64, threshold float64, lookback int) (Result, error) {
	if len(labels) != len(scores) {
		return Result{}, fmt.Errorf("%w: %d predictions and %d labels",
			recording.ErrShapeMismatch, len(scores), len(labels))
	}
	if lookback < 0 {
		return Result{}, fmt.Errorf("events: lookback must be non-negative, got %d", lookback)
	}

	m := matcher{
		label:    recording.FoldPostSeizure(labels),
		pred:     recording.Binarize(scores, threshold),
		credited: make([]bool, len(labels)),
	}

	var res Result
	for _, sz := range Seizures(m.label) {
		res.Seizures++
		first := m.firstDetection(sz)
		if first < 0 {
			continue
		}
		res.Correct++

		if first > sz.Onset {
			res.LatencySamples += first - sz.Onset
			continue
		}

		if lookback > 0 && m.firedThroughLookback(sz.Onset, lookback) {
			res.FalsePositiveEvents++
		}
		start, credited := m.creditBackward(sz.Onset, lookback)
		res.Reclassified = append(res.Reclassified, credited...)
		res.LatencySamples += start - sz.Onset
	}

	for _, d := range DetectionStarts(m.pred) {
		if m.fp(d) {
			res.FalsePositiveEvents++
		}
	}
	for i := range m.pred {
		if m.tp(i) {
			res.TruePositiveSamples++
		} else if m.fp(i) {
			res.FalsePositiveSamples++
		}
	}
	return res, nil
}

type matcher struct {
	label    []int
	pred     []int
	credited []bool
}

func (m *matcher) tp(i int) bool {
	return m.pred[i] == 1 && (m.label[i] == recording.Seizure || m.credited[i])
}

func (m *matcher) fp(i int) bool {
	return m.pred[i] == 1 && m.label[i] != recording.Seizure && !m.credited[i]
}

// firstDetection returns the first positive window in sz, or -1.
func (m *matcher) firstDetection(sz Span) int {
	for i := sz.Onset; i < sz.Offset; i++ {
		if m.pred[i] == 1 {
			return i
		}
	}
	return -1
}

// firedThroughLookback reports whether every window in
// [onset-lookback-1, onset) is a false positive, i.e. the detection run
// reaches past the allowed early window.
func (m *matcher) firedThroughLookback(onset, lookback int) bool {
	lo := onset - lookback - 1
	if lo < 0 {
		return false
	}
	for i := lo; i < onset; i++ {
		if !m.fp(i) {
			return false
		}
	}
	return true
}

// creditBackward walks back from onset over positive windows, crediting
// background windows to the seizure. It returns the first credited index and
// the newly credited windows in ascending order.
func (m *matcher) creditBackward(onset, lookback int) (int, []int) {
	i := onset
	var credited []int
	for i > 0 && m.pred[i-1] == 1 {
		if lookback > 0 && onset-(i-1) > lookback {
			break
		}
		i--
		if m.label[i] != recording.Seizure && !m.credited[i] {
			m.credited[i] = true
			credited = append(credited, i)
		}
	}
	for a, b := 0, len(credited)-1; a < b; a, b = a+1, b-1 {
		credited[a], credited[b] = credited[b], credited[a]
	}
	return i, credited
}
