package logic

import "time"

// CooldownTracker holds the per-input cooldown state. It is mutated only by
// the single dispatch consumer and is not safe for concurrent use.
type CooldownTracker struct {
	durations [NumInputs]time.Duration
	last      [NumInputs]time.Time
	triggered [NumInputs]bool
}

// NewCooldownTracker copies the cooldown of each configured input from the
// table (first entry wins). Unconfigured inputs get zero cooldown.
func NewCooldownTracker(table Table) *CooldownTracker {
	c := &CooldownTracker{}
	var set [NumInputs]bool
	for _, tr := range table {
		if !tr.Input.Valid() || set[tr.Input] {
			continue
		}
		c.durations[tr.Input] = tr.Cooldown
		set[tr.Input] = true
	}
	return c
}

// Cooldown returns the configured window for the input.
func (c *CooldownTracker) Cooldown(in InputID) time.Duration {
	if !in.Valid() {
		return 0
	}
	return c.durations[in]
}

// IsCoolingDown is true iff the input was triggered before and less than its
// cooldown has elapsed since.
func (c *CooldownTracker) IsCoolingDown(in InputID, now time.Time) bool {
	if !in.Valid() || !c.triggered[in] {
		return false
	}
	return now.Sub(c.last[in]) < c.durations[in]
}

// MarkTriggered starts the cooldown window of the input at now.
func (c *CooldownTracker) MarkTriggered(in InputID, now time.Time) {
	if !in.Valid() {
		return
	}
	c.last[in] = now
	c.triggered[in] = true
}

// Remaining returns how much of the cooldown is left, floored at zero.
func (c *CooldownTracker) Remaining(in InputID, now time.Time) time.Duration {
	if !in.Valid() || !c.triggered[in] {
		return 0
	}
	elapsed := now.Sub(c.last[in])
	if elapsed >= c.durations[in] {
		return 0
	}
	return c.durations[in] - elapsed
}

// LastTriggered returns the last accepted trigger time, if any.
func (c *CooldownTracker) LastTriggered(in InputID) (time.Time, bool) {
	if !in.Valid() {
		return time.Time{}, false
	}
	return c.last[in], c.triggered[in]
}
