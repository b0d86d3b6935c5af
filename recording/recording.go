// Package recording defines the scoring unit shared by every evaluation stage:
// a per-window score sequence, its ground-truth labels and the recording
// metadata needed to normalise event rates.
package recording

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch indicates predictions and labels disagree in window count.
var ErrShapeMismatch = errors.New("recording: predictions and labels differ in window count")

// Window labels. PostSeizure is folded back to Background before scoring.
const (
	Background  = 0
	Seizure     = 1
	PostSeizure = 2
)

// Recording is one scored file: positive-class scores and labels share the
// same window index space.
type Recording struct {
	Filename string
	// Scores holds the positive-class probability per window, in [0, 1].
	Scores []float64
	// Labels holds 0 (background), 1 (seizure) or 2 (post-seizure) per window.
	Labels []int
	// Duration is the recording length in seconds.
	Duration float64
	// Advance is the window advance in seconds (window length minus overlap).
	Advance float64
}

// Validate checks that scores and labels cover the same windows.
func (r *Recording) Validate() error {
	if len(r.Scores) != len(r.Labels) {
		return fmt.Errorf("%w: %s has %d predictions and %d labels",
			ErrShapeMismatch, r.Filename, len(r.Scores), len(r.Labels))
	}
	return nil
}

// BinaryLabels returns the labels with PostSeizure folded to Background.
func (r *Recording) BinaryLabels() []int {
	return FoldPostSeizure(r.Labels)
}

// NumSeizures counts contiguous seizure runs in the binary labels.
func (r *Recording) NumSeizures() int {
	n := 0
	prev := Background
	for _, l := range r.Labels {
		cur := Background
		if l == Seizure {
			cur = Seizure
		}
		if cur == Seizure && prev != Seizure {
			n++
		}
		prev = cur
	}
	return n
}

// WithScores returns a shallow copy of r carrying different scores.
func (r *Recording) WithScores(scores []float64) *Recording {
	c := *r
	c.Scores = scores
	return &c
}

// FoldPostSeizure maps PostSeizure labels to Background. The input is not modified.
func FoldPostSeizure(labels []int) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Seizure {
			out[i] = Seizure
		}
	}
	return out
}

// Binarize returns 1 where score >= threshold and 0 elsewhere.
func Binarize(scores []float64, threshold float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= threshold {
			out[i] = 1
		}
	}
	return out
}

// PositiveClass extracts the positive-class column from a windows × classes
// prediction matrix. Single-column rows are taken as-is; otherwise the last
// column is used (column 1 for two-class output).
func PositiveClass(preds [][]float64) []float64 {
	out := make([]float64, len(preds))
	for i, row := range preds {
		if len(row) == 0 {
			continue
		}
		out[i] = row[len(row)-1]
	}
	return out
}
