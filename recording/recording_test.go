package recording

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording_Validate(t *testing.T) {
	r := &Recording{Filename: "chb01_03.edf", Scores: []float64{0.1, 0.2}, Labels: []int{0}}
	err := r.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "chb01_03.edf")

	r.Labels = []int{0, 1}
	assert.NoError(t, r.Validate())
}

func TestFoldPostSeizure(t *testing.T) {
	in := []int{0, 1, 1, 2, 2, 1, 2}
	got := FoldPostSeizure(in)
	assert.Equal(t, []int{0, 1, 1, 0, 0, 1, 0}, got)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 1, 2}, in, "input must not be modified")
}

func TestBinarize(t *testing.T) {
	got := Binarize([]float64{0, 0.49, 0.5, 0.51, 1}, 0.5)
	assert.Equal(t, []int{0, 0, 1, 1, 1}, got)
}

func TestNumSeizures(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   int
	}{
		{"none", []int{0, 0, 0}, 0},
		{"single", []int{0, 1, 1, 0}, 1},
		{"starts and ends in seizure", []int{1, 0, 1}, 2},
		{"post seizure separates runs", []int{1, 2, 1, 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Recording{Labels: tt.labels}
			assert.Equal(t, tt.want, r.NumSeizures())
		})
	}
}

func TestPositiveClass(t *testing.T) {
	got := PositiveClass([][]float64{{0.9, 0.1}, {0.3}, {}, {0.2, 0.8}})
	assert.Equal(t, []float64{0.1, 0.3, 0, 0.8}, got)
}

func TestSet(t *testing.T) {
	s := &Set{Recordings: []*Recording{
		{Filename: "a", Scores: make([]float64, 3), Labels: []int{0, 1, 0}, Duration: 1800, Advance: 1},
		{Filename: "b", Scores: make([]float64, 2), Labels: []int{1, 1}, Duration: 1800, Advance: 1},
	}}
	require.NoError(t, s.Validate())
	assert.Equal(t, 3600.0, s.TotalDuration())
	assert.Equal(t, 2, s.TotalSeizures())
	assert.Equal(t, 1.0, s.Advance())

	s.Seizures = 5
	assert.Equal(t, 5, s.TotalSeizures())

	doubled := s.WithScores(func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i := range out {
			out[i] = 1
		}
		return out
	})
	assert.Equal(t, []float64{1, 1, 1}, doubled.Recordings[0].Scores)
	assert.Equal(t, []float64{0, 0, 0}, s.Recordings[0].Scores)
}

func TestSet_ValidateJoinsErrors(t *testing.T) {
	s := &Set{Recordings: []*Recording{
		{Filename: "a", Scores: make([]float64, 3), Labels: []int{0}, Advance: 1},
		{Filename: "b", Scores: make([]float64, 1), Labels: []int{0}, Advance: 2},
		nil,
	}}
	err := s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "window advance")
	assert.Contains(t, err.Error(), "recording 2 is nil")
}
