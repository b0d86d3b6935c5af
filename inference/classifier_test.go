package inference

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-szeval/recording"
)

func TestArgmax(t *testing.T) {
	tests := []struct {
		name  string
		proba [][]float64
		want  []int
	}{
		{"two class", [][]float64{{0.9, 0.1}, {0.2, 0.8}}, []int{0, 1}},
		{"tie prefers lower", [][]float64{{0.5, 0.5}}, []int{0}},
		{"three class", [][]float64{{0.1, 0.2, 0.7}, {0.1, 0.8, 0.1}}, []int{2, 1}},
		{"empty row", [][]float64{{}}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Argmax(tt.proba))
		})
	}
}

func TestPrecomputed(t *testing.T) {
	c := FromScores([]float64{0.25, 0.75, 0.5})
	features := make([][]float32, 3)
	ctx := context.Background()

	proba, err := c.PredictProba(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.75, 0.25}, {0.25, 0.75}, {0.5, 0.5}}, proba)

	proba[0][0] = 42
	again, err := c.PredictProba(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, 0.75, again[0][0], "stored rows are copied")

	pred, err := c.Predict(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, pred)

	scores, err := Scores(ctx, c, features)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75, 0.5}, scores)
	assert.Equal(t, 3, c.Len())
}

func TestPrecomputed_Errors(t *testing.T) {
	c := NewPrecomputed([][]float64{{0.1, 0.9}})

	_, err := c.PredictProba(context.Background(), make([][]float32, 2))
	assert.ErrorIs(t, err, recording.ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Predict(ctx, make([][]float32, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewONNX_ModelNotFound(t *testing.T) {
	_, err := NewONNX("../testdata/nonexistent.onnx", 2, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestONNX_PredictProba_Batches(t *testing.T) {
	tests := []struct {
		name      string
		windows   int
		batchSize int
		want      []int
	}{
		{"uneven tail", 10, 4, []int{2, 4, 4}},
		{"exact split", 8, 4, []int{4, 4}},
		{"single batch", 3, 16, []int{3}},
		{"default batch size", 300, 0, []int{44, DefaultBatchSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, runners := fakePool(t, 3)
			c := newONNX(pool, tt.batchSize)
			defer func() { _ = c.Close() }()

			features := make([][]float32, tt.windows)
			for i := range features {
				features[i] = []float32{float32(i) / float32(tt.windows)}
			}

			proba, err := c.PredictProba(context.Background(), features)
			require.NoError(t, err)
			require.Len(t, proba, tt.windows)
			for i, row := range proba {
				require.Len(t, row, 2)
				assert.InDeltaf(t, float64(features[i][0]), row[1], 1e-6, "window %d out of place", i)
			}

			var batches []int
			for _, r := range runners {
				batches = append(batches, r.batches...)
			}
			sort.Ints(batches)
			assert.Equal(t, tt.want, batches)
		})
	}
}

func TestONNX_PredictProba_BatchError(t *testing.T) {
	pool, runners := fakePool(t, 1)
	c := newONNX(pool, 4)
	defer func() { _ = c.Close() }()

	runners[0].err = errors.New("bad batch")
	_, err := c.PredictProba(context.Background(), make2D(6))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "windows 0-3")
}

func TestONNX_Predict(t *testing.T) {
	pool, _ := fakePool(t, 2)
	c := newONNX(pool, 2)
	defer func() { _ = c.Close() }()

	pred, err := c.Predict(context.Background(), [][]float32{{0.9}, {0.2}, {0.6}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, pred)

	proba, err := c.PredictProba(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, proba)
}

func TestONNX_Closed(t *testing.T) {
	pool, runners := fakePool(t, 2)
	c := newONNX(pool, 2)
	require.NoError(t, c.Close())

	_, err := c.PredictProba(context.Background(), make2D(3))
	assert.ErrorIs(t, err, ErrPoolClosed)
	for _, r := range runners {
		assert.True(t, r.closed.Load())
	}
}

func make2D(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{0.5}
	}
	return out
}
