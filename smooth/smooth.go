// Package smooth applies moving-average filters to prediction sequences
// before they are re-scored.
package smooth

import (
	"gonum.org/v1/gonum/floats"
)

// Centered returns the moving average of x over a window of half-width
// window/2 centred on each sample. The window is clamped at the sequence
// ends, so boundary samples average over fewer values. window <= 0 returns a
// copy of x.
func Centered(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 0 || len(x) == 0 {
		copy(out, x)
		return out
	}

	half := window / 2
	sums := prefixSums(x)
	for i := range x {
		lo := max(0, i-half)
		hi := min(len(x), i+half+1)
		out[i] = (sums[hi] - sums[lo]) / float64(hi-lo)
	}
	return out
}

// Causal returns the trailing moving average of x over the last window
// samples, using fewer samples at the start. window <= 0 returns a copy of x.
func Causal(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 0 || len(x) == 0 {
		copy(out, x)
		return out
	}

	sums := prefixSums(x)
	for i := range x {
		lo := max(0, i-window+1)
		out[i] = (sums[i+1] - sums[lo]) / float64(i+1-lo)
	}
	return out
}

// Channels applies Centered to each column of a windows × channels matrix.
func Channels(preds [][]float64, window int) [][]float64 {
	out := make([][]float64, len(preds))
	if len(preds) == 0 {
		return out
	}
	nch := len(preds[0])
	for i := range out {
		out[i] = make([]float64, nch)
	}
	col := make([]float64, len(preds))
	for c := 0; c < nch; c++ {
		for i, row := range preds {
			col[i] = row[c]
		}
		sm := Centered(col, window)
		for i := range out {
			out[i][c] = sm[i]
		}
	}
	return out
}

// prefixSums returns s with s[0] = 0 and s[i+1] = x[0] + ... + x[i].
func prefixSums(x []float64) []float64 {
	s := make([]float64, len(x)+1)
	floats.CumSum(s[1:], x)
	return s
}
