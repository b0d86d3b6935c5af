package recording

import (
	"errors"
	"fmt"
)

// Set is an ordered collection of recordings sharing one window geometry.
type Set struct {
	Name       string
	Recordings []*Recording

	// Seizures overrides the seizure count derived from labels when > 0.
	// Manifests usually supply it from the annotation lists.
	Seizures int
}

// Validate checks every recording and the shared geometry. All recording
// errors are reported together.
func (s *Set) Validate() error {
	var errs []error
	var advance float64
	for i, r := range s.Recordings {
		if r == nil {
			errs = append(errs, fmt.Errorf("recording %d is nil", i))
			continue
		}
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
		if i == 0 {
			advance = r.Advance
		} else if r.Advance != advance {
			errs = append(errs, fmt.Errorf("%s: window advance %.3fs differs from set advance %.3fs",
				r.Filename, r.Advance, advance))
		}
	}
	return errors.Join(errs...)
}

// TotalDuration returns the summed recording duration in seconds.
func (s *Set) TotalDuration() float64 {
	var d float64
	for _, r := range s.Recordings {
		d += r.Duration
	}
	return d
}

// TotalSeizures returns the seizure count used to normalise sensitivity.
func (s *Set) TotalSeizures() int {
	if s.Seizures > 0 {
		return s.Seizures
	}
	n := 0
	for _, r := range s.Recordings {
		n += r.NumSeizures()
	}
	return n
}

// Advance returns the window advance in seconds shared by the set.
func (s *Set) Advance() float64 {
	if len(s.Recordings) == 0 {
		return 0
	}
	return s.Recordings[0].Advance
}

// WithScores returns a copy of the set whose recordings carry the scores
// produced by fn. Labels and metadata are shared with s.
func (s *Set) WithScores(fn func(scores []float64) []float64) *Set {
	out := &Set{
		Name:       s.Name,
		Seizures:   s.Seizures,
		Recordings: make([]*Recording, len(s.Recordings)),
	}
	for i, r := range s.Recordings {
		out.Recordings[i] = r.WithScores(fn(r.Scores))
	}
	return out
}
