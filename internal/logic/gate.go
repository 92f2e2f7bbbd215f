package logic

import "time"

// Outcome is the result of offering an input event to the gate.
type Outcome string

const (
	OutcomeAccepted    Outcome = "ACCEPTED"
	OutcomeCoolingDown Outcome = "COOLING_DOWN"
	OutcomeUnmapped    Outcome = "UNMAPPED"
)

// Decision describes what the dispatcher should do with one event.
type Decision struct {
	Outcome   Outcome
	Input     InputID
	Trigger   *Trigger      // set when accepted
	Remaining time.Duration // set when cooling down
}

// Gate combines the trigger table and cooldown tracker into the dispatch
// decision. Not safe for concurrent use: only the dispatch loop owns it.
type Gate struct {
	table     Table
	cooldowns *CooldownTracker
}

// NewGate builds the gate once from the static table.
func NewGate(table Table) *Gate {
	return &Gate{
		table:     table,
		cooldowns: NewCooldownTracker(table),
	}
}

// Admit decides whether the input starts its sequence at now. An accepted
// input has its cooldown started here, before the sequence runs, so the
// window bounds the acceptance rate rather than the gap between sequences.
// Rejected events leave all state untouched.
func (g *Gate) Admit(in InputID, now time.Time) Decision {
	if g.cooldowns.IsCoolingDown(in, now) {
		return Decision{
			Outcome:   OutcomeCoolingDown,
			Input:     in,
			Remaining: g.cooldowns.Remaining(in, now),
		}
	}

	tr := g.FindConfig(in)
	if tr == nil {
		return Decision{Outcome: OutcomeUnmapped, Input: in}
	}

	g.cooldowns.MarkTriggered(in, now)
	return Decision{Outcome: OutcomeAccepted, Input: in, Trigger: tr}
}

// IsCoolingDown reports whether the input is inside its cooldown window.
func (g *Gate) IsCoolingDown(in InputID, now time.Time) bool {
	return g.cooldowns.IsCoolingDown(in, now)
}

// MarkTriggered starts the input's cooldown at now.
func (g *Gate) MarkTriggered(in InputID, now time.Time) {
	g.cooldowns.MarkTriggered(in, now)
}

// RemainingCooldown returns the cooldown left for the input, never negative.
func (g *Gate) RemainingCooldown(in InputID, now time.Time) time.Duration {
	return g.cooldowns.Remaining(in, now)
}

// FindConfig returns the first table entry for the input, or nil.
func (g *Gate) FindConfig(in InputID) *Trigger {
	return g.table.Find(in)
}

// Table returns the table the gate was built from.
func (g *Gate) Table() Table {
	return g.table
}
