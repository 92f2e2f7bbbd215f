// Package events carries accepted input events from the monitors to the
// dispatcher.
package events

import (
	"context"
	"sync/atomic"

	"github.com/sweeney/prop-controller/internal/logic"
)

// DefaultCapacity is the default queue depth.
const DefaultCapacity = 16

// Channel is a bounded FIFO with many producers and one consumer.
// Sends never block: when the queue is full the event is dropped and counted.
type Channel struct {
	q     chan logic.InputEvent
	drops atomic.Uint64
}

// New creates a channel holding at most capacity events.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{q: make(chan logic.InputEvent, capacity)}
}

// TrySend enqueues ev without blocking. It returns false, and counts a drop,
// when the queue is full.
func (c *Channel) TrySend(ev logic.InputEvent) bool {
	select {
	case c.q <- ev:
		return true
	default:
		c.drops.Add(1)
		return false
	}
}

// Receive blocks until an event is available or ctx is done.
func (c *Channel) Receive(ctx context.Context) (logic.InputEvent, error) {
	select {
	case <-ctx.Done():
		return logic.InputEvent{}, ctx.Err()
	case ev := <-c.q:
		return ev, nil
	}
}

// Len returns the number of queued events.
func (c *Channel) Len() int {
	return len(c.q)
}

// Cap returns the queue capacity.
func (c *Channel) Cap() int {
	return cap(c.q)
}

// Drops returns how many events were dropped because the queue was full.
func (c *Channel) Drops() uint64 {
	return c.drops.Load()
}
