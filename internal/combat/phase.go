package combat

import "fmt"

// Phase is a stage of a combat hand. Phases only move forward.
type Phase int

const (
	PhaseMulligan Phase = iota
	PhaseSetup
	PhaseOpeningBet
	PhaseMiddleBet
	PhaseLateBet
	PhaseSettlement
)

func (p Phase) String() string {
	if p < PhaseMulligan || p > PhaseSettlement {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return [...]string{"mulligan", "setup", "opening", "middle", "late", "settlement"}[p]
}

// IsBetting reports whether agents take turns betting in this phase.
func (p Phase) IsBetting() bool {
	return p == PhaseOpeningBet || p == PhaseMiddleBet || p == PhaseLateBet
}

// MustBetOrFold reports whether an opener without a bet to call is barred from
// checking. Only the autonomous opponent's policy applies this rule.
func (p Phase) MustBetOrFold() bool {
	return p == PhaseOpeningBet || p == PhaseMiddleBet
}

// Next returns the phase that follows p. Settlement is terminal.
func (p Phase) Next() Phase {
	if p >= PhaseSettlement {
		return PhaseSettlement
	}
	return p + 1
}

// CommunityCount is the number of community cards revealed during p.
func (p Phase) CommunityCount() int {
	switch p {
	case PhaseOpeningBet:
		return 3
	case PhaseMiddleBet:
		return 4
	case PhaseLateBet, PhaseSettlement:
		return 5
	default:
		return 0
	}
}

// Action is a betting action.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Bet
	Raise
)

func (a Action) String() string {
	if a < Fold || a > Raise {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return [...]string{"fold", "check", "call", "bet", "raise"}[a]
}

// ParseAction converts a lowercase action name into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "bet":
		return Bet, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// Position is an agent's place in the acting order of every betting phase.
type Position int

const (
	PositionFirst Position = iota
	PositionLast
)

func (p Position) String() string {
	if p == PositionLast {
		return "last"
	}
	return "first"
}

// Side selects one of the two agents of a hand.
type Side int

const (
	SideHuman Side = iota
	SideAI
)

func (s Side) String() string {
	if s == SideAI {
		return "ai"
	}
	return "human"
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideAI {
		return SideHuman
	}
	return SideAI
}
