package szeval

import (
	"errors"

	"github.com/jamesainslie/go-szeval/labels"
	"github.com/jamesainslie/go-szeval/recording"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidGeometry indicates a window geometry that yields no windows.
	ErrInvalidGeometry = labels.ErrInvalidGeometry

	// ErrShapeMismatch indicates a recording whose predictions and labels
	// differ in window count.
	ErrShapeMismatch = recording.ErrShapeMismatch

	// ErrInvalidOption indicates an out-of-range evaluator option.
	ErrInvalidOption = errors.New("szeval: invalid option")

	// ErrEmptySet indicates a recording set without recordings.
	ErrEmptySet = errors.New("szeval: recording set is empty")
)
