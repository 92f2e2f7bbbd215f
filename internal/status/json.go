package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/prop-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	Relays        string       `json:"relays"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTTConnected bool         `json:"mqtt_connected"`
	Inputs        []InputJSON  `json:"inputs"`
	Dispatch      DispatchJSON `json:"dispatch"`
	LastSequence  string       `json:"last_sequence,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// InputJSON is the JSON representation of one input's edge counts.
type InputJSON struct {
	Input    string `json:"input"`
	Accepted int    `json:"accepted"`
	Ignored  int    `json:"ignored"`
	Dropped  int    `json:"dropped"`
}

// DispatchJSON is the JSON representation of dispatcher counts.
type DispatchJSON struct {
	Accepted    int `json:"accepted"`
	CoolingDown int `json:"cooling_down"`
	Unmapped    int `json:"unmapped"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DebounceMs    int64  `json:"debounce_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	QueueCapacity int    `json:"queue_capacity"`
	Triggers      int    `json:"triggers"`
	I2CDevice     string `json:"i2c_device"`
	I2CAddress    string `json:"i2c_address"`
	Broker        string `json:"broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inputs := make([]InputJSON, 0, logic.NumInputs)
	for _, in := range logic.Inputs() {
		c := snap.Inputs[in]
		inputs = append(inputs, InputJSON{
			Input:    in.String(),
			Accepted: c.Accepted,
			Ignored:  c.Ignored,
			Dropped:  c.Dropped,
		})
	}

	return StatusInner{
		Ready:         snap.DriverReady,
		Relays:        fmt.Sprintf("%08b", snap.Relays),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTTConnected: snap.MQTTConnected,
		Inputs:        inputs,
		Dispatch: DispatchJSON{
			Accepted:    snap.Dispatch.Accepted,
			CoolingDown: snap.Dispatch.CoolingDown,
			Unmapped:    snap.Dispatch.Unmapped,
			Completed:   snap.Dispatch.Completed,
			Failed:      snap.Dispatch.Failed,
		},
		LastSequence: snap.LastSequence,
		LastError:    snap.LastError,
		Config: ConfigJSON{
			DebounceMs:    snap.Config.DebounceMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			QueueCapacity: snap.Config.QueueCapacity,
			Triggers:      snap.Config.Triggers,
			I2CDevice:     snap.Config.I2CDevice,
			I2CAddress:    fmt.Sprintf("0x%02x", snap.Config.I2CAddress),
			Broker:        snap.Config.Broker,
		},
	}
}

// FormatJSON returns the indented JSON status (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
