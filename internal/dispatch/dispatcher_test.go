package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/prop-controller/internal/events"
	"github.com/sweeney/prop-controller/internal/expander"
	"github.com/sweeney/prop-controller/internal/i2c"
	"github.com/sweeney/prop-controller/internal/logging"
	"github.com/sweeney/prop-controller/internal/logic"
	"github.com/sweeney/prop-controller/internal/relay"
	"github.com/sweeney/prop-controller/internal/status"
)

var (
	seqA = &logic.Sequence{Name: "a", Steps: []logic.Step{
		{Output: logic.Relay1, Level: logic.Asserted},
		{Output: logic.Relay1, Level: logic.Deasserted},
	}}
	seqB = &logic.Sequence{Name: "b", Steps: []logic.Step{
		{Output: logic.Relay2, Level: logic.Asserted},
	}}
	testTable = logic.Table{
		{Input: logic.DI1, Cooldown: 5 * time.Second, Sequence: seqA, Label: "A"},
		{Input: logic.DI2, Cooldown: 30 * time.Second, Sequence: seqB, Label: "B"},
	}
)

// fakeExecutor records the sequences it was asked to run.
type fakeExecutor struct {
	mu     sync.Mutex
	ran    []string
	err    error
	shadow uint8
}

func (f *fakeExecutor) ExecuteSequence(ctx context.Context, seq *logic.Sequence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, seq.Name)
	return f.err
}

func (f *fakeExecutor) Shadow() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shadow
}

func (f *fakeExecutor) Ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

var t0 = time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

func newTestDispatcher(exec Executor) (*Dispatcher, *status.Tracker, *time.Time) {
	tracker := status.NewTracker(t0, status.Config{})
	d := New(testTable, exec, logging.Discard(), tracker)
	now := t0
	d.now = func() time.Time { return now }
	return d, tracker, &now
}

func event(in logic.InputID) logic.InputEvent {
	return logic.InputEvent{Input: in, Timestamp: t0}
}

func TestCooldownScenario(t *testing.T) {
	exec := &fakeExecutor{}
	d, tracker, now := newTestDispatcher(exec)
	ctx := context.Background()

	if dec := d.Handle(ctx, event(logic.DI1)); dec.Outcome != logic.OutcomeAccepted {
		t.Fatalf("first DI1: got %s, want ACCEPTED", dec.Outcome)
	}

	*now = t0.Add(1 * time.Second)
	dec := d.Handle(ctx, event(logic.DI1))
	if dec.Outcome != logic.OutcomeCoolingDown {
		t.Fatalf("second DI1: got %s, want COOLING_DOWN", dec.Outcome)
	}
	if dec.Remaining != 4*time.Second {
		t.Errorf("remaining: got %v, want 4s", dec.Remaining)
	}
	if got := d.RemainingCooldown(logic.DI1); got != 4*time.Second {
		t.Errorf("RemainingCooldown: got %v, want 4s", got)
	}

	*now = t0.Add(5 * time.Second)
	if dec := d.Handle(ctx, event(logic.DI1)); dec.Outcome != logic.OutcomeAccepted {
		t.Fatalf("third DI1: got %s, want ACCEPTED", dec.Outcome)
	}

	ran := exec.Ran()
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "a" {
		t.Errorf("sequences run: got %v, want [a a]", ran)
	}

	snap := tracker.Snapshot()
	if snap.Dispatch.Accepted != 2 || snap.Dispatch.CoolingDown != 1 || snap.Dispatch.Completed != 2 {
		t.Errorf("dispatch counts: %+v", snap.Dispatch)
	}
	if snap.LastSequence != "A" {
		t.Errorf("LastSequence: got %q, want A", snap.LastSequence)
	}
}

func TestCooldownsAreIndependentPerInput(t *testing.T) {
	exec := &fakeExecutor{}
	d, _, now := newTestDispatcher(exec)
	ctx := context.Background()

	d.Handle(ctx, event(logic.DI2))
	*now = t0.Add(time.Second)
	if dec := d.Handle(ctx, event(logic.DI1)); dec.Outcome != logic.OutcomeAccepted {
		t.Errorf("DI1 should not be blocked by DI2's cooldown, got %s", dec.Outcome)
	}
	*now = t0.Add(29 * time.Second)
	if dec := d.Handle(ctx, event(logic.DI2)); dec.Outcome != logic.OutcomeCoolingDown {
		t.Errorf("DI2 at 29s: got %s, want COOLING_DOWN", dec.Outcome)
	}
	*now = t0.Add(30 * time.Second)
	if dec := d.Handle(ctx, event(logic.DI2)); dec.Outcome != logic.OutcomeAccepted {
		t.Errorf("DI2 at 30s: got %s, want ACCEPTED", dec.Outcome)
	}
}

func TestUnmappedInputWritesNothing(t *testing.T) {
	bus := i2c.NewFakeBus()
	exec := relay.NewExecutor(expander.New(bus, expander.DefaultAddress), logging.Discard())
	d, tracker, _ := newTestDispatcher(exec)

	dec := d.Handle(context.Background(), event(logic.DI5))
	if dec.Outcome != logic.OutcomeUnmapped {
		t.Fatalf("got %s, want UNMAPPED", dec.Outcome)
	}
	if n := len(bus.Transactions()); n != 0 {
		t.Errorf("expected no bus writes, got %d", n)
	}
	if d.gate.IsCoolingDown(logic.DI5, t0) {
		t.Error("unmapped input should not start a cooldown")
	}
	if got := tracker.Snapshot().Dispatch.Unmapped; got != 1 {
		t.Errorf("unmapped count: got %d, want 1", got)
	}
}

func TestSequenceErrorDoesNotPropagate(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("bus nack"), shadow: 0x01}
	d, tracker, now := newTestDispatcher(exec)
	ctx := context.Background()

	if dec := d.Handle(ctx, event(logic.DI1)); dec.Outcome != logic.OutcomeAccepted {
		t.Fatalf("got %s, want ACCEPTED", dec.Outcome)
	}

	snap := tracker.Snapshot()
	if snap.Dispatch.Failed != 1 || snap.LastError != "bus nack" {
		t.Errorf("failure not recorded: %+v %q", snap.Dispatch, snap.LastError)
	}
	if snap.Relays != 0x01 {
		t.Errorf("relays: got %08b, want 00000001", snap.Relays)
	}

	// The cooldown still applies after a failed run.
	*now = t0.Add(time.Second)
	if dec := d.Handle(ctx, event(logic.DI1)); dec.Outcome != logic.OutcomeCoolingDown {
		t.Errorf("got %s, want COOLING_DOWN", dec.Outcome)
	}
}

func TestRunConsumesInOrder(t *testing.T) {
	exec := &fakeExecutor{}
	d, _, _ := newTestDispatcher(exec)
	ch := events.New(4)

	ch.TrySend(event(logic.DI2))
	ch.TrySend(event(logic.DI1))
	ch.TrySend(event(logic.DI1)) // cooling down

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, ch) }()

	deadline := time.Now().Add(2 * time.Second)
	for ch.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("dispatcher did not drain the channel")
		}
		time.Sleep(time.Millisecond)
	}
	// The last receive may still be in Handle.
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
	ran := exec.Ran()
	if len(ran) != 2 || ran[0] != "b" || ran[1] != "a" {
		t.Errorf("sequences run: got %v, want [b a]", ran)
	}
}
