// Package relay plays relay sequences on the output expander.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/prop-controller/internal/expander"
	"github.com/sweeney/prop-controller/internal/logging"
	"github.com/sweeney/prop-controller/internal/logic"
)

// StepError reports the step whose bus write aborted a sequence.
type StepError struct {
	Sequence string
	Index    int
	Step     logic.Step
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sequence %q step %d (%s -> %s): %v",
		e.Sequence, e.Index, e.Step.Output, e.Step.Level, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Executor owns the expander. Every bus transaction goes through its lock,
// and a sequence holds the lock from its first write to its last hold, so
// no other writer can interleave with a running sequence.
type Executor struct {
	mu  sync.Mutex
	dev *expander.Device
	log *logging.Logger

	// sleep waits between steps; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor wraps the device.
func NewExecutor(dev *expander.Device, log *logging.Logger) *Executor {
	return &Executor{
		dev:   dev,
		log:   log.With("component", "relay"),
		sleep: sleepCtx,
	}
}

// Init configures the expander and turns every relay off.
func (e *Executor) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.dev.Init(); err != nil {
		return fmt.Errorf("init expander 0x%02x: %w", e.dev.Address(), err)
	}
	e.log.Info("relay controller initialized, all relays off")
	return nil
}

// ExecuteSequence writes each step in order, waiting each step's hold
// before the next. The first bus error aborts the remaining steps and is
// returned as a *StepError; relays are left as the last good write set
// them. A cancelled ctx aborts during a hold.
func (e *Executor) ExecuteSequence(ctx context.Context, seq *logic.Sequence) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("executing sequence", "sequence", seq.Name, "steps", len(seq.Steps))

	for i, st := range seq.Steps {
		e.log.Debug("step", "output", st.Output.String(), "level", st.Level.String(),
			"hold_ms", st.Hold.Milliseconds())

		if err := e.dev.SetOutput(uint8(st.Output), st.Level); err != nil {
			return &StepError{Sequence: seq.Name, Index: i, Step: st, Err: err}
		}
		if st.Hold > 0 {
			if err := e.sleep(ctx, st.Hold); err != nil {
				return err
			}
		}
	}

	e.log.Info("sequence complete", "sequence", seq.Name)
	return nil
}

// Set drives a single relay outside of any sequence. It waits for a running
// sequence to finish first.
func (e *Executor) Set(out logic.OutputID, level logic.Level) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.dev.SetOutput(uint8(out), level); err != nil {
		return fmt.Errorf("set %s %s: %w", out, level, err)
	}
	return nil
}

// AllOff turns every relay off.
func (e *Executor) AllOff() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("turning all relays off")
	if err := e.dev.AllOff(); err != nil {
		return fmt.Errorf("all off: %w", err)
	}
	return nil
}

// Shadow returns the last attempted relay mask.
func (e *Executor) Shadow() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Shadow()
}

// ReadOutputs reads the relay mask back from the expander.
func (e *Executor) ReadOutputs() (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.ReadOutputs()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
