// Package show holds the compiled-in sequences and trigger table of the
// haunted-house install.
package show

import (
	"time"

	"github.com/sweeney/prop-controller/internal/logic"
)

// JumpScare fires the pop-up prop for one second.
var JumpScare = &logic.Sequence{
	Name: "jump_scare",
	Steps: []logic.Step{
		{Output: logic.Relay1, Level: logic.Asserted, Hold: 1000 * time.Millisecond},
		{Output: logic.Relay1, Level: logic.Deasserted},
	},
}

// SnakeAttack strikes the snake four times.
var SnakeAttack = &logic.Sequence{
	Name: "snake_attack",
	Steps: []logic.Step{
		{Output: logic.Relay2, Level: logic.Asserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Deasserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Asserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Deasserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Asserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Deasserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Asserted, Hold: 500 * time.Millisecond},
		{Output: logic.Relay2, Level: logic.Deasserted},
	},
}

// Table returns the trigger table. DI3..DI8 are wired but unmapped.
func Table() logic.Table {
	return logic.Table{
		{Input: logic.DI1, Cooldown: 5 * time.Second, Sequence: JumpScare, Label: "Jump Scare"},
		{Input: logic.DI2, Cooldown: 30 * time.Second, Sequence: SnakeAttack, Label: "Snake Attack"},
	}
}
