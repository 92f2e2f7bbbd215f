// Package status provides a thread-safe status tracker for the prop controller.
// It is written by the monitors and the dispatcher and read for heartbeats
// and lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/prop-controller/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	DebounceMs    int64
	HeartbeatMs   int64
	QueueCapacity int
	Triggers      int
	I2CDevice     string
	I2CAddress    uint16
	Broker        string
}

// EdgeOutcome is what a monitor did with one raw edge.
type EdgeOutcome int

const (
	EdgeAccepted EdgeOutcome = iota // passed debounce and was queued
	EdgeIgnored                     // inside the debounce window
	EdgeDropped                     // passed debounce but the queue was full
)

// InputCounts tracks edges seen on one input since startup.
type InputCounts struct {
	Accepted int
	Ignored  int
	Dropped  int
}

// DispatchCounts tracks dispatcher decisions and sequence results.
type DispatchCounts struct {
	Accepted    int
	CoolingDown int
	Unmapped    int
	Completed   int
	Failed      int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Inputs        [logic.NumInputs]InputCounts
	Dispatch      DispatchCounts
	LastSequence  string
	LastError     string
	Relays        uint8
	DriverReady   bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	lastHeartbeat time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
	}
}

// RecordEdge counts one raw edge on an input.
func (t *Tracker) RecordEdge(in logic.InputID, outcome EdgeOutcome) {
	if !in.Valid() {
		return
	}
	t.mu.Lock()
	c := &t.snap.Inputs[in]
	switch outcome {
	case EdgeAccepted:
		c.Accepted++
	case EdgeIgnored:
		c.Ignored++
	case EdgeDropped:
		c.Accepted++
		c.Dropped++
	}
	t.mu.Unlock()
}

// RecordDecision counts one dispatcher decision.
func (t *Tracker) RecordDecision(d logic.Decision) {
	t.mu.Lock()
	switch d.Outcome {
	case logic.OutcomeAccepted:
		t.snap.Dispatch.Accepted++
		if d.Trigger != nil {
			t.snap.LastSequence = d.Trigger.Label
		}
	case logic.OutcomeCoolingDown:
		t.snap.Dispatch.CoolingDown++
	case logic.OutcomeUnmapped:
		t.snap.Dispatch.Unmapped++
	}
	t.mu.Unlock()
}

// RecordSequence records the end of a sequence and the relay mask it left.
func (t *Tracker) RecordSequence(relays uint8, err error) {
	t.mu.Lock()
	t.snap.Relays = relays
	if err != nil {
		t.snap.Dispatch.Failed++
		t.snap.LastError = err.Error()
	} else {
		t.snap.Dispatch.Completed++
	}
	t.mu.Unlock()
}

// SetRelays sets the relay mask outside of a sequence (init, all-off).
func (t *Tracker) SetRelays(relays uint8) {
	t.mu.Lock()
	t.snap.Relays = relays
	t.mu.Unlock()
}

// SetDriverReady records whether the expander initialised.
func (t *Tracker) SetDriverReady(ready bool) {
	t.mu.Lock()
	t.snap.DriverReady = ready
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// CheckHeartbeat reports whether interval has elapsed since the last
// heartbeat (or startup) and, if so, restarts the interval at now.
// A non-positive interval disables heartbeats.
func (t *Tracker) CheckHeartbeat(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
