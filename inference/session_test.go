package inference

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestNewSession_FileNotFound(t *testing.T) {
	_, err := NewSession("../testdata/nonexistent.onnx")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

// The checks below run before the ONNX runtime is touched, so a zero
// Session is enough.

func TestSession_Infer_Context(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"canceled", canceled, context.Canceled},
		{"deadline exceeded", expired, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{}
			_, err := s.Infer(tt.ctx, [][]float32{{1, 2}})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestSession_Infer_EmptyBatch(t *testing.T) {
	s := &Session{}
	out, err := s.Infer(context.Background(), nil)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if out != nil {
		t.Errorf("expected no rows, got %v", out)
	}
}

func TestSession_Infer_RaggedFeatures(t *testing.T) {
	s := &Session{}
	_, err := s.Infer(context.Background(), [][]float32{{1, 2, 3}, {1}})
	if !errors.Is(err, ErrFeatureWidth) {
		t.Errorf("expected ErrFeatureWidth, got: %v", err)
	}
}

func TestSession_Close(t *testing.T) {
	s := &Session{}
	if err := s.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	_, err := s.Infer(context.Background(), [][]float32{{1, 2}})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got: %v", err)
	}
}
