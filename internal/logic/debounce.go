package logic

import "time"

// Debouncer filters raw edges on one physical line: at most one edge is
// accepted per window.
type Debouncer struct {
	window       time.Duration
	lastAccepted time.Time
	accepted     bool
}

// NewDebouncer creates a filter with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Window returns the debounce window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Accept reports whether an edge seen at now is accepted. The first edge is
// always accepted. An accepted edge becomes the new reference point; a
// rejected one does not move it.
func (d *Debouncer) Accept(now time.Time) bool {
	if d.accepted && now.Sub(d.lastAccepted) < d.window {
		return false
	}
	d.lastAccepted = now
	d.accepted = true
	return true
}

// LastAccepted returns the time of the last accepted edge and whether any
// edge has been accepted yet.
func (d *Debouncer) LastAccepted() (time.Time, bool) {
	return d.lastAccepted, d.accepted
}
