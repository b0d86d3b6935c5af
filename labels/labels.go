// Package labels derives per-window ground truth from seizure annotations.
package labels

import (
	"errors"
	"fmt"
	"math"

	"github.com/jamesainslie/go-szeval/recording"
)

// ErrInvalidGeometry indicates a window/overlap/duration combination that
// yields no windows.
var ErrInvalidGeometry = errors.New("labels: invalid window geometry")

// Geometry describes how a recording is cut into windows.
type Geometry struct {
	WindowLength float64 // seconds
	Overlap      float64 // seconds
	// SampleRate, when > 0, quantizes window starts and interval bounds to
	// whole samples before comparison.
	SampleRate float64
}

// Advance returns the window advance in seconds.
func (g Geometry) Advance() float64 {
	return g.WindowLength - g.Overlap
}

// Interval is an annotated seizure in seconds from recording start.
type Interval struct {
	Start float64
	End   float64
}

// Intervals zips parallel start/end lists as found in annotation manifests.
func Intervals(starts, ends []float64) ([]Interval, error) {
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("labels: %d seizure starts but %d ends", len(starts), len(ends))
	}
	out := make([]Interval, len(starts))
	for i := range starts {
		out[i] = Interval{Start: starts[i], End: ends[i]}
	}
	return out, nil
}

// Count returns the number of whole windows that fit in duration seconds.
func Count(duration float64, g Geometry) (int, error) {
	adv := g.Advance()
	if g.WindowLength <= 0 || adv <= 0 {
		return 0, fmt.Errorf("%w: window %.3fs, overlap %.3fs", ErrInvalidGeometry, g.WindowLength, g.Overlap)
	}
	n := int(math.Floor((duration-g.WindowLength)/adv)) + 1
	if n <= 0 {
		return 0, fmt.Errorf("%w: duration %.3fs shorter than window %.3fs", ErrInvalidGeometry, duration, g.WindowLength)
	}
	return n, nil
}

// Label builds the label sequence for one recording. A window is a seizure
// window when its start time falls in [start, end) of some interval. With
// postSeizure set, windows starting at or after the end of the first listed
// seizure are marked PostSeizure unless a seizure interval claims them.
func Label(duration float64, intervals []Interval, g Geometry, postSeizure bool) ([]int, error) {
	n, err := Count(duration, g)
	if err != nil {
		return nil, err
	}

	q := newQuantizer(g)
	out := make([]int, n)

	if postSeizure && len(intervals) > 0 {
		firstEnd := q.bound(intervals[0].End)
		for i := range out {
			if q.windowStart(i) >= firstEnd {
				out[i] = recording.PostSeizure
			}
		}
	}

	for _, iv := range intervals {
		start, end := q.bound(iv.Start), q.bound(iv.End)
		for i := range out {
			ws := q.windowStart(i)
			if ws >= start && ws < end {
				out[i] = recording.Seizure
			}
		}
	}
	return out, nil
}

// quantizer maps times onto the comparison grid: seconds, or whole samples
// when a sample rate is known.
type quantizer struct {
	advance float64
	fs      float64
}

func newQuantizer(g Geometry) quantizer {
	q := quantizer{advance: g.Advance(), fs: g.SampleRate}
	if q.fs > 0 {
		q.advance = math.Round(q.advance * q.fs)
	}
	return q
}

func (q quantizer) windowStart(i int) float64 {
	return float64(i) * q.advance
}

func (q quantizer) bound(t float64) float64 {
	if q.fs > 0 {
		return math.Round(t * q.fs)
	}
	return t
}
