package gpio

import (
	"context"
	"sync"
)

// FakeLine is a test double driven by the test. Edges are handed directly
// to a waiting caller, so a pulse is only delivered while someone waits,
// matching the real line's no-latch behaviour.
type FakeLine struct {
	edges chan error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	waits  int
}

// NewFakeLine creates an open FakeLine.
func NewFakeLine() *FakeLine {
	return &FakeLine{
		edges: make(chan error),
		done:  make(chan struct{}),
	}
}

// WaitRisingEdge blocks until Pulse or Fail is called, ctx is done, or the
// line is closed.
func (f *FakeLine) WaitRisingEdge(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.waits++
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return ErrClosed
	case err := <-f.edges:
		return err
	}
}

// Pulse delivers one rising edge to the waiter. It blocks until a waiter
// takes it or ctx is done.
func (f *FakeLine) Pulse(ctx context.Context) error {
	return f.deliver(ctx, nil)
}

// Fail makes the current wait return err.
func (f *FakeLine) Fail(ctx context.Context, err error) error {
	return f.deliver(ctx, err)
}

func (f *FakeLine) deliver(ctx context.Context, err error) error {
	select {
	case f.edges <- err:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waits returns how many times WaitRisingEdge has been entered.
func (f *FakeLine) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close unblocks any waiter and marks the line closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}
