// Package inference runs window classifiers that turn per-window feature
// vectors into class probabilities.
package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names expected in exported window-classifier models.
const (
	InputName  = "features"
	OutputName = "probabilities"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Session wraps an ONNX Runtime session for a window classifier with a
// [batch, features] float32 input and a [batch, classes] float32 output.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file.
func NewSession(modelPath string) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{InputName},
		[]string{OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Infer runs the model on a batch of feature rows of equal width and
// returns one probability row per input row.
func (s *Session) Infer(ctx context.Context, features [][]float32) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(features) == 0 {
		return nil, nil
	}

	batch := int64(len(features))
	width := int64(len(features[0]))
	flat := make([]float32, 0, batch*width)
	for i, row := range features {
		if int64(len(row)) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureWidth, i, len(row), width)
		}
		flat = append(flat, row...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	input, err := ort.NewTensor(ort.NewShape(batch, width), flat)
	if err != nil {
		return nil, fmt.Errorf("creating %s tensor: %w", InputName, err)
	}
	defer func() { _ = input.Destroy() }()

	// nil entries are allocated by Run
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	probs, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	shape := probs.GetShape()
	if len(shape) != 2 || shape[0] != batch {
		return nil, fmt.Errorf("unexpected output shape %v for batch %d", shape, batch)
	}

	classes := int(shape[1])
	data := probs.GetData()
	out := make([][]float32, batch)
	for i := range out {
		out[i] = make([]float32, classes)
		copy(out[i], data[i*classes:(i+1)*classes])
	}
	return out, nil
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
