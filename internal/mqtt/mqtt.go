// Package mqtt forwards diagnostics and lifecycle events to an MQTT broker.
// It only publishes: the controller takes no commands over the network.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topics are the topics one controller publishes to.
type Topics struct {
	Diag   string // log records forwarded by Handler
	System string // STARTUP, HEARTBEAT, SHUTDOWN, OFFLINE
}

// NewTopics builds the topics under prefix, e.g. "props/controller".
func NewTopics(prefix string) Topics {
	return Topics{
		Diag:   prefix + "/diag",
		System: prefix + "/system",
	}
}

// Publisher publishes diagnostics to MQTT.
type Publisher interface {
	// Publish sends one diagnostic record to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(d Diagnostic) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Diagnostic is one forwarded log record.
type Diagnostic struct {
	Timestamp time.Time
	Level     string
	Component string
	Message   string
	Attrs     map[string]string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// DiagPayload is the MQTT message payload for a diagnostic.
type DiagPayload struct {
	Diag DiagPayloadInner `json:"diag"`
}

// DiagPayloadInner contains the diagnostic details.
type DiagPayloadInner struct {
	Timestamp string            `json:"timestamp"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Message   string            `json:"msg"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// FormatDiagnostic creates the JSON payload for a diagnostic.
func FormatDiagnostic(d Diagnostic) ([]byte, error) {
	payload := DiagPayload{
		Diag: DiagPayloadInner{
			Timestamp: d.Timestamp.UTC().Format(time.RFC3339Nano),
			Level:     d.Level,
			Component: d.Component,
			Message:   d.Message,
			Attrs:     d.Attrs,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (OFFLINE) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
