package labels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		geom     Geometry
		want     int
		wantErr  bool
	}{
		{"no overlap", 60, Geometry{WindowLength: 1}, 60, false},
		{"half overlap", 10, Geometry{WindowLength: 2, Overlap: 1}, 9, false},
		{"partial tail dropped", 10.5, Geometry{WindowLength: 2}, 5, false},
		{"exactly one window", 4, Geometry{WindowLength: 4}, 1, false},
		{"shorter than window", 3, Geometry{WindowLength: 4}, 0, true},
		{"overlap equals window", 10, Geometry{WindowLength: 2, Overlap: 2}, 0, true},
		{"zero window", 10, Geometry{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Count(tt.duration, tt.geom)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidGeometry))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabel_RoundTrip(t *testing.T) {
	got, err := Label(40, []Interval{{Start: 10, End: 20}}, Geometry{WindowLength: 1}, false)
	require.NoError(t, err)
	require.Len(t, got, 40)
	for i, l := range got {
		want := 0
		if i >= 10 && i < 20 {
			want = 1
		}
		assert.Equalf(t, want, l, "window %d", i)
	}
}

func TestLabel_SampleRateQuantized(t *testing.T) {
	geom := Geometry{WindowLength: 1, SampleRate: 256}
	got, err := Label(40, []Interval{{Start: 10, End: 20}}, geom, false)
	require.NoError(t, err)
	assert.Equal(t, 10, sum(got))
	assert.Equal(t, 1, got[10])
	assert.Equal(t, 0, got[20])
}

func TestLabel_Overlap(t *testing.T) {
	// 4s windows advancing 2s; starts at 0,2,4,...,16.
	got, err := Label(20, []Interval{{Start: 5, End: 9}}, Geometry{WindowLength: 4, Overlap: 2}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 0, 0, 0, 0}, got)
}

func TestLabel_PostSeizure(t *testing.T) {
	intervals := []Interval{{Start: 2, End: 4}, {Start: 7, End: 8}}
	got, err := Label(10, intervals, Geometry{WindowLength: 1}, true)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 2, 1, 2, 2}, got)

	plain, err := Label(10, intervals, Geometry{WindowLength: 1}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 0, 0, 0, 1, 0, 0}, plain)
}

func TestLabel_InvalidGeometry(t *testing.T) {
	_, err := Label(1, nil, Geometry{WindowLength: 2}, false)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestIntervals(t *testing.T) {
	got, err := Intervals([]float64{1, 5}, []float64{2, 9})
	require.NoError(t, err)
	assert.Equal(t, []Interval{{1, 2}, {5, 9}}, got)

	_, err = Intervals([]float64{1}, nil)
	assert.Error(t, err)
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
