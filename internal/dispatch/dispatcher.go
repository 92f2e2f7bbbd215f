// Package dispatch is the single consumer of input events. It applies the
// per-input cooldown and runs the mapped sequence.
package dispatch

import (
	"context"
	"time"

	"github.com/sweeney/prop-controller/internal/events"
	"github.com/sweeney/prop-controller/internal/logging"
	"github.com/sweeney/prop-controller/internal/logic"
	"github.com/sweeney/prop-controller/internal/status"
)

// Executor plays a sequence to completion.
type Executor interface {
	ExecuteSequence(ctx context.Context, seq *logic.Sequence) error
}

// shadower is implemented by executors that can report the relay mask.
type shadower interface {
	Shadow() uint8
}

// Dispatcher owns the cooldown state. Handle and Run must only be called
// from one goroutine.
type Dispatcher struct {
	gate    *logic.Gate
	exec    Executor
	log     *logging.Logger
	tracker *status.Tracker

	now func() time.Time
}

// New creates a dispatcher for the static trigger table.
func New(table logic.Table, exec Executor, log *logging.Logger, tracker *status.Tracker) *Dispatcher {
	return &Dispatcher{
		gate:    logic.NewGate(table),
		exec:    exec,
		log:     log.With("component", "dispatch"),
		tracker: tracker,
		now:     time.Now,
	}
}

// Run receives events until ctx is cancelled and handles them in order.
func (d *Dispatcher) Run(ctx context.Context, ch *events.Channel) error {
	d.log.Info("dispatcher started", "triggers", len(d.gate.Table()))

	for {
		ev, err := ch.Receive(ctx)
		if err != nil {
			return nil
		}
		d.Handle(ctx, ev)
	}
}

// Handle decides what to do with one event and, when the trigger is
// accepted, runs its sequence before returning. Sequence errors are logged
// and never returned.
func (d *Dispatcher) Handle(ctx context.Context, ev logic.InputEvent) logic.Decision {
	dec := d.gate.Admit(ev.Input, d.now())
	d.tracker.RecordDecision(dec)

	switch dec.Outcome {
	case logic.OutcomeCoolingDown:
		d.log.Info("trigger ignored, cooling down",
			"input", ev.Input.String(), "remaining_ms", dec.Remaining.Milliseconds())
		return dec
	case logic.OutcomeUnmapped:
		d.log.Info("trigger unmapped", "input", ev.Input.String())
		return dec
	}

	tr := dec.Trigger
	d.log.Info("trigger accepted",
		"input", ev.Input.String(), "label", tr.Label, "sequence", tr.Sequence.Name)

	err := d.exec.ExecuteSequence(ctx, tr.Sequence)
	d.recordSequence(err)
	if err != nil {
		d.log.Error("sequence failed", "label", tr.Label, "error", err)
		return dec
	}

	d.log.Info("sequence done, cooldown active",
		"label", tr.Label, "cooldown_ms", tr.Cooldown.Milliseconds())
	return dec
}

// RemainingCooldown returns the cooldown left for the input right now.
func (d *Dispatcher) RemainingCooldown(in logic.InputID) time.Duration {
	return d.gate.RemainingCooldown(in, d.now())
}

func (d *Dispatcher) recordSequence(err error) {
	var relays uint8
	if s, ok := d.exec.(shadower); ok {
		relays = s.Shadow()
	}
	d.tracker.RecordSequence(relays, err)
}
