// Package monitor watches one sensor line, debounces its edges and queues
// accepted ones for the dispatcher.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sweeney/prop-controller/internal/events"
	"github.com/sweeney/prop-controller/internal/gpio"
	"github.com/sweeney/prop-controller/internal/logging"
	"github.com/sweeney/prop-controller/internal/logic"
	"github.com/sweeney/prop-controller/internal/status"
)

// State is the monitor's position in its loop.
type State int32

const (
	StateWaitingForEdge State = iota
	StateDebounceHold
)

func (s State) String() string {
	if s == StateDebounceHold {
		return "DEBOUNCE_HOLD"
	}
	return "WAITING_FOR_EDGE"
}

// errorBackoff is the pause after a failed edge wait before retrying.
const errorBackoff = 100 * time.Millisecond

// Monitor runs the edge loop for one input.
type Monitor struct {
	line     gpio.Line
	input    logic.InputID
	debounce *logic.Debouncer
	out      *events.Channel
	log      *logging.Logger
	tracker  *status.Tracker
	state    atomic.Int32

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a monitor for one line.
func New(line gpio.Line, in logic.InputID, debounce time.Duration, out *events.Channel, log *logging.Logger, tracker *status.Tracker) *Monitor {
	return &Monitor{
		line:     line,
		input:    in,
		debounce: logic.NewDebouncer(debounce),
		out:      out,
		log:      log.With("component", "monitor", "input", in.String()),
		tracker:  tracker,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Input returns the input this monitor watches.
func (m *Monitor) Input() logic.InputID {
	return m.input
}

// State returns the current loop state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Run waits for edges until ctx is cancelled. It never returns for any
// other reason: line errors are logged and the wait is retried.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("input monitor started", "debounce_ms", m.debounce.Window().Milliseconds())

	for {
		m.state.Store(int32(StateWaitingForEdge))

		if err := m.line.WaitRisingEdge(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.log.Error("edge wait failed", "error", err)
			if errors.Is(err, gpio.ErrClosed) {
				// A closed line will not recover; park until shutdown.
				<-ctx.Done()
				return nil
			}
			if m.sleep(ctx, errorBackoff) != nil {
				return nil
			}
			continue
		}

		now := m.now()
		if !m.debounce.Accept(now) {
			m.tracker.RecordEdge(m.input, status.EdgeIgnored)
			m.log.Debug("edge ignored inside debounce window")
			continue
		}

		if m.out.TrySend(logic.InputEvent{Input: m.input, Timestamp: now}) {
			m.tracker.RecordEdge(m.input, status.EdgeAccepted)
			m.log.Info("input triggered")
		} else {
			m.tracker.RecordEdge(m.input, status.EdgeDropped)
			m.log.Warn("event channel full, dropping event", "drops", m.out.Drops())
		}

		m.state.Store(int32(StateDebounceHold))
		if m.sleep(ctx, m.debounce.Window()) != nil {
			return nil
		}
	}
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
