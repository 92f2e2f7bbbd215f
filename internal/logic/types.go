// Package logic contains the pure decision logic of the prop controller.
// This package has NO external dependencies (no GPIO, I2C, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// NumInputs is the number of digital sensor inputs on the board.
const NumInputs = 8

// NumOutputs is the number of relay channels on the expander.
const NumOutputs = 8

// InputID identifies one of the eight sensor lines. It doubles as an array index.
type InputID uint8

const (
	DI1 InputID = iota
	DI2
	DI3
	DI4
	DI5
	DI6
	DI7
	DI8
)

// Valid reports whether the id is one of DI1..DI8.
func (i InputID) Valid() bool {
	return i < NumInputs
}

func (i InputID) String() string {
	if !i.Valid() {
		return fmt.Sprintf("DI?(%d)", uint8(i))
	}
	return fmt.Sprintf("DI%d", uint8(i)+1)
}

// Inputs returns all input ids in ordinal order.
func Inputs() [NumInputs]InputID {
	return [NumInputs]InputID{DI1, DI2, DI3, DI4, DI5, DI6, DI7, DI8}
}

// OutputID identifies one of the eight relay channels. Its ordinal is the
// expander pin number.
type OutputID uint8

const (
	Relay1 OutputID = iota
	Relay2
	Relay3
	Relay4
	Relay5
	Relay6
	Relay7
	Relay8
)

// Valid reports whether the id is one of Relay1..Relay8.
func (o OutputID) Valid() bool {
	return o < NumOutputs
}

func (o OutputID) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Relay?(%d)", uint8(o))
	}
	return fmt.Sprintf("Relay%d", uint8(o)+1)
}

// Level is the binary drive level of a relay output.
type Level bool

const (
	Asserted   Level = true
	Deasserted Level = false
)

func (l Level) String() string {
	if l == Asserted {
		return "ASSERTED"
	}
	return "DEASSERTED"
}

// InputEvent is produced once per accepted edge and consumed exactly once
// by the dispatcher.
type InputEvent struct {
	Input     InputID
	Timestamp time.Time
}

// Step is a single timed output change.
type Step struct {
	Output OutputID
	Level  Level
	Hold   time.Duration // wait after the write before the next step
}

// Sequence is an immutable ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// Duration returns the sum of all step holds.
func (s *Sequence) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Hold
	}
	return d
}

// Trigger maps a sensor input to the sequence it starts and the minimum time
// between accepted triggers of that input.
type Trigger struct {
	Input    InputID
	Cooldown time.Duration
	Sequence *Sequence
	Label    string
}

// Table is the static trigger configuration. Order matters: on duplicate
// inputs the first entry wins.
type Table []Trigger

// Find returns the first entry for the input, or nil.
func (t Table) Find(in InputID) *Trigger {
	for i := range t {
		if t[i].Input == in {
			return &t[i]
		}
	}
	return nil
}

// Validate reports configuration hazards: invalid ids, missing sequences and
// duplicate inputs (where later entries are shadowed). It is advisory; the
// table is used as-is regardless.
func (t Table) Validate() error {
	var seen [NumInputs]bool
	for i, tr := range t {
		if !tr.Input.Valid() {
			return fmt.Errorf("entry %d (%q): invalid input %s", i, tr.Label, tr.Input)
		}
		if tr.Sequence == nil {
			return fmt.Errorf("entry %d (%q): no sequence", i, tr.Label)
		}
		for j, st := range tr.Sequence.Steps {
			if !st.Output.Valid() {
				return fmt.Errorf("entry %d (%q): step %d: invalid output %s", i, tr.Label, j, st.Output)
			}
			if st.Hold < 0 {
				return fmt.Errorf("entry %d (%q): step %d: negative hold", i, tr.Label, j)
			}
		}
		if seen[tr.Input] {
			return fmt.Errorf("entry %d (%q): duplicate trigger %s, shadowed by an earlier entry", i, tr.Label, tr.Input)
		}
		seen[tr.Input] = true
	}
	return nil
}
