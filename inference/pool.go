package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Runner classifies one batch of feature rows. *Session is the ONNX
// implementation.
type Runner interface {
	Infer(ctx context.Context, features [][]float32) ([][]float32, error)
	Close() error
}

// Pool hands out a fixed set of runners to concurrent callers. A runner is
// used by one caller at a time.
type Pool struct {
	idle chan Runner
	size int

	mu     sync.Mutex
	closed bool
}

// NewPool opens size ONNX sessions for modelPath. size <= 0 means 1.
func NewPool(modelPath string, size int) (*Pool, error) {
	return NewRunnerPool(size, func() (Runner, error) {
		s, err := NewSession(modelPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// NewRunnerPool fills a pool with size runners from open. Runners opened
// before a failure are closed again.
func NewRunnerPool(size int, open func() (Runner, error)) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{idle: make(chan Runner, size), size: size}
	for i := 0; i < size; i++ {
		r, err := open()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		p.idle <- r
	}
	return p, nil
}

// Acquire takes an idle runner, waiting until one is released, ctx is done
// or the pool is closed.
func (p *Pool) Acquire(ctx context.Context) (Runner, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case r, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns r to the pool. After Close, or when the pool already
// holds size idle runners, r is closed instead.
func (p *Pool) Release(r Runner) {
	if r == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = r.Close()
		return
	}
	select {
	case p.idle <- r:
	default:
		_ = r.Close()
	}
}

// Infer runs one batch on a pooled runner.
func (p *Pool) Infer(ctx context.Context, features [][]float32) ([][]float32, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(r)
	return r.Infer(ctx, features)
}

// Close closes the idle runners. Runners still checked out are closed when
// they are released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	var errs []error
	for r := range p.idle {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the number of runners the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// Idle returns the number of runners waiting in the pool.
func (p *Pool) Idle() int {
	return len(p.idle)
}
