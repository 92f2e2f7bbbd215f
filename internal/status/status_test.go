package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/prop-controller/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{DebounceMs: 100, QueueCapacity: 16, I2CAddress: 0x20}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceMs != 100 {
		t.Errorf("Config.DebounceMs: got %d, want 100", snap.Config.DebounceMs)
	}
	if snap.DriverReady {
		t.Error("expected DriverReady=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordEdge(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordEdge(logic.DI1, EdgeAccepted)
	tr.RecordEdge(logic.DI1, EdgeIgnored)
	tr.RecordEdge(logic.DI1, EdgeIgnored)
	tr.RecordEdge(logic.DI3, EdgeDropped)
	tr.RecordEdge(logic.InputID(42), EdgeAccepted) // ignored

	snap := tr.Snapshot()
	if got := snap.Inputs[logic.DI1]; got != (InputCounts{Accepted: 1, Ignored: 2}) {
		t.Errorf("DI1 counts: got %+v", got)
	}
	if got := snap.Inputs[logic.DI3]; got != (InputCounts{Accepted: 1, Dropped: 1}) {
		t.Errorf("DI3 counts: got %+v", got)
	}
}

func TestRecordDecision(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	seq := &logic.Sequence{Name: "s"}

	tr.RecordDecision(logic.Decision{Outcome: logic.OutcomeAccepted, Trigger: &logic.Trigger{Label: "Jump Scare", Sequence: seq}})
	tr.RecordDecision(logic.Decision{Outcome: logic.OutcomeCoolingDown})
	tr.RecordDecision(logic.Decision{Outcome: logic.OutcomeCoolingDown})
	tr.RecordDecision(logic.Decision{Outcome: logic.OutcomeUnmapped})

	snap := tr.Snapshot()
	want := DispatchCounts{Accepted: 1, CoolingDown: 2, Unmapped: 1}
	if snap.Dispatch != want {
		t.Errorf("Dispatch: got %+v, want %+v", snap.Dispatch, want)
	}
	if snap.LastSequence != "Jump Scare" {
		t.Errorf("LastSequence: got %q", snap.LastSequence)
	}
}

func TestRecordSequence(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordSequence(0x00, nil)
	tr.RecordSequence(0x02, errors.New("bus write failed"))

	snap := tr.Snapshot()
	if snap.Dispatch.Completed != 1 || snap.Dispatch.Failed != 1 {
		t.Errorf("Dispatch: got %+v", snap.Dispatch)
	}
	if snap.Relays != 0x02 {
		t.Errorf("Relays: got 0x%02x, want 0x02", snap.Relays)
	}
	if snap.LastError != "bus write failed" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestSetters(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetDriverReady(true)
	tr.SetMQTTConnected(true)
	tr.SetRelays(0x81)

	snap := tr.Snapshot()
	if !snap.DriverReady || !snap.MQTTConnected || snap.Relays != 0x81 {
		t.Errorf("got %+v", snap)
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestCheckHeartbeat(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{})

	if tr.CheckHeartbeat(start.Add(time.Hour), 0) {
		t.Error("zero interval disables heartbeats")
	}
	if tr.CheckHeartbeat(start.Add(14*time.Minute), 15*time.Minute) {
		t.Error("heartbeat before the interval")
	}
	if !tr.CheckHeartbeat(start.Add(15*time.Minute), 15*time.Minute) {
		t.Error("expected heartbeat at the interval")
	}
	if tr.CheckHeartbeat(start.Add(20*time.Minute), 15*time.Minute) {
		t.Error("interval should restart at the last heartbeat")
	}
	if !tr.CheckHeartbeat(start.Add(30*time.Minute), 15*time.Minute) {
		t.Error("expected second heartbeat")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.RecordEdge(logic.DI1, EdgeAccepted)

	snap1 := tr.Snapshot()
	tr.RecordEdge(logic.DI1, EdgeAccepted)

	if snap1.Inputs[logic.DI1].Accepted != 1 {
		t.Errorf("snapshot changed after later update: %d", snap1.Inputs[logic.DI1].Accepted)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for _, in := range logic.Inputs() {
		wg.Add(1)
		go func(in logic.InputID) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.RecordEdge(in, EdgeAccepted)
			}
		}(in)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			tr.Snapshot()
		}
	}()
	wg.Wait()

	snap := tr.Snapshot()
	for _, in := range logic.Inputs() {
		if snap.Inputs[in].Accepted != 100 {
			t.Errorf("%s: got %d accepted, want 100", in, snap.Inputs[in].Accepted)
		}
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime:   start,
		Now:         start.Add(90 * time.Second),
		DriverReady: true,
		Relays:      0x05,
		Config:      Config{DebounceMs: 100, I2CDevice: "/dev/i2c-1", I2CAddress: 0x20},
	}
	snap.Inputs[logic.DI2] = InputCounts{Accepted: 3, Ignored: 1}
	snap.Dispatch = DispatchCounts{Accepted: 2, CoolingDown: 1}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Event != "SHUTDOWN" || s.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", s.Event, s.Reason)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("uptime_seconds: got %d, want 90", s.UptimeSeconds)
	}
	if s.Relays != "00000101" {
		t.Errorf("relays: got %q, want 00000101", s.Relays)
	}
	if len(s.Inputs) != logic.NumInputs {
		t.Fatalf("inputs: got %d entries", len(s.Inputs))
	}
	if s.Inputs[1].Input != "DI2" || s.Inputs[1].Accepted != 3 || s.Inputs[1].Ignored != 1 {
		t.Errorf("inputs[1]: got %+v", s.Inputs[1])
	}
	if s.Dispatch.CoolingDown != 1 {
		t.Errorf("dispatch.cooling_down: got %d", s.Dispatch.CoolingDown)
	}
	if s.Config.I2CAddress != "0x20" {
		t.Errorf("config.i2c_address: got %q", s.Config.I2CAddress)
	}
}

func TestFormatJSONHasNoEvent(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	var raw map[string]map[string]any
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["event"]; ok {
		t.Error("plain status should omit event")
	}
}
