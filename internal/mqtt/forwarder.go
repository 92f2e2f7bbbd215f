package mqtt

import (
	"context"
	"sync/atomic"

	"github.com/sweeney/prop-controller/internal/logging"
)

// DefaultQueueSize is the forwarder queue depth when none is configured.
const DefaultQueueSize = 64

// Forwarder moves diagnostics from the logging path to the publisher on its
// own goroutine, so a slow or absent broker never blocks a caller.
type Forwarder struct {
	pub   Publisher
	queue chan Diagnostic
	drops atomic.Uint64
	log   *logging.Logger
}

// NewForwarder creates a forwarder with a bounded queue. log must not
// itself forward to MQTT.
func NewForwarder(pub Publisher, size int, log *logging.Logger) *Forwarder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Forwarder{
		pub:   pub,
		queue: make(chan Diagnostic, size),
		log:   log.With("component", "mqtt"),
	}
}

// Enqueue queues d without blocking. It returns false, and counts a drop,
// when the queue is full.
func (f *Forwarder) Enqueue(d Diagnostic) bool {
	select {
	case f.queue <- d:
		return true
	default:
		f.drops.Add(1)
		return false
	}
}

// Drops returns how many diagnostics were dropped on a full queue.
func (f *Forwarder) Drops() uint64 {
	return f.drops.Load()
}

// Run publishes queued diagnostics until ctx is cancelled, then publishes
// whatever is still queued and returns nil.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return nil
		case d := <-f.queue:
			f.publish(d)
		}
	}
}

func (f *Forwarder) drain() {
	for {
		select {
		case d := <-f.queue:
			f.publish(d)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(d Diagnostic) {
	if err := f.pub.Publish(d); err != nil {
		f.log.Debug("diagnostic publish failed", "error", err)
	}
}
