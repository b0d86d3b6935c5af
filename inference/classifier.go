package inference

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-szeval/recording"
)

var (
	// ErrPoolClosed is returned by Acquire and Infer after Close.
	ErrPoolClosed = errors.New("inference: pool is closed")

	// ErrSessionClosed is returned by Infer after Close.
	ErrSessionClosed = errors.New("inference: session is closed")

	// ErrFeatureWidth indicates feature rows of unequal width.
	ErrFeatureWidth = errors.New("inference: inconsistent feature width")
)

// Classifier maps per-window feature rows to class decisions and
// probabilities. The last probability column is the positive (seizure) class.
type Classifier interface {
	Predict(ctx context.Context, features [][]float32) ([]int, error)
	PredictProba(ctx context.Context, features [][]float32) ([][]float64, error)
}

// Scores returns the positive-class probability of every window.
func Scores(ctx context.Context, c Classifier, features [][]float32) ([]float64, error) {
	proba, err := c.PredictProba(ctx, features)
	if err != nil {
		return nil, err
	}
	return recording.PositiveClass(proba), nil
}

// Argmax returns the most probable class of each row. Ties go to the lower
// class index.
func Argmax(proba [][]float64) []int {
	out := make([]int, len(proba))
	for i, row := range proba {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// DefaultBatchSize is the number of windows sent to one session run.
const DefaultBatchSize = 256

// ONNX is a Classifier backed by a session pool. Batches run concurrently,
// one per pooled session.
type ONNX struct {
	pool      *Pool
	batchSize int
}

// NewONNX creates a classifier over a pool of size sessions for modelPath.
func NewONNX(modelPath string, size, batchSize int) (*ONNX, error) {
	pool, err := NewPool(modelPath, size)
	if err != nil {
		return nil, err
	}
	return newONNX(pool, batchSize), nil
}

func newONNX(pool *Pool, batchSize int) *ONNX {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ONNX{pool: pool, batchSize: batchSize}
}

// PredictProba implements Classifier.
func (c *ONNX) PredictProba(ctx context.Context, features [][]float32) ([][]float64, error) {
	out := make([][]float64, len(features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.pool.Size())
	for start := 0; start < len(features); start += c.batchSize {
		end := min(start+c.batchSize, len(features))
		g.Go(func() error {
			probs, err := c.pool.Infer(gctx, features[start:end])
			if err != nil {
				return fmt.Errorf("windows %d-%d: %w", start, end-1, err)
			}
			for i, row := range probs {
				r := make([]float64, len(row))
				for j, p := range row {
					r[j] = float64(p)
				}
				out[start+i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict implements Classifier.
func (c *ONNX) Predict(ctx context.Context, features [][]float32) ([]int, error) {
	proba, err := c.PredictProba(ctx, features)
	if err != nil {
		return nil, err
	}
	return Argmax(proba), nil
}

// Close releases the session pool.
func (c *ONNX) Close() error {
	return c.pool.Close()
}

// Precomputed replays stored probabilities, one row per window, in place of
// a live model. Feature rows only select the window count.
type Precomputed struct {
	proba [][]float64
}

// NewPrecomputed wraps a windows × classes probability matrix.
func NewPrecomputed(proba [][]float64) *Precomputed {
	return &Precomputed{proba: proba}
}

// FromScores builds a two-class Precomputed from positive-class scores.
func FromScores(scores []float64) *Precomputed {
	proba := make([][]float64, len(scores))
	for i, s := range scores {
		proba[i] = []float64{1 - s, s}
	}
	return &Precomputed{proba: proba}
}

// Len returns the number of stored windows.
func (c *Precomputed) Len() int { return len(c.proba) }

// PredictProba implements Classifier.
func (c *Precomputed) PredictProba(ctx context.Context, features [][]float32) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features) != len(c.proba) {
		return nil, fmt.Errorf("%w: %d feature rows for %d stored predictions",
			recording.ErrShapeMismatch, len(features), len(c.proba))
	}
	out := make([][]float64, len(c.proba))
	for i, row := range c.proba {
		out[i] = append([]float64(nil), row...)
	}
	return out, nil
}

// Predict implements Classifier.
func (c *Precomputed) Predict(ctx context.Context, features [][]float32) ([]int, error) {
	proba, err := c.PredictProba(ctx, features)
	if err != nil {
		return nil, err
	}
	return Argmax(proba), nil
}

var (
	_ Classifier = (*ONNX)(nil)
	_ Classifier = (*Precomputed)(nil)
	_ Runner     = (*Session)(nil)
)
