package combat

import "time"

// DefaultMinBet is the fixed minimum bet and raise increment.
const DefaultMinBet = 5

// HPPerStamina is how much HP one point of stamina allows an agent to spend.
const HPPerStamina = 10

// PetStats are the vital statistics of a pet in combat.
type PetStats struct {
	CurrentHealth  int
	MaxHealth      int
	CurrentStamina int
}

// AgentState is one side of a hand.
type AgentState struct {
	AgentID     string
	Pet         PetStats
	HoleCards   []Card
	HPCommitted int // committed this betting round
	BlindPosted int // mandatory pre-commitment, excluded from the policy's call math
	IsReady     bool
}

// AvailableHP is the HP the agent may spend, capped by stamina.
func (a AgentState) AvailableHP() int {
	hp := min(a.Pet.CurrentHealth, a.Pet.CurrentStamina*HPPerStamina)
	return max(0, hp)
}

// State is an immutable snapshot of a hand. The store hands out copies; slices are
// never shared with the canonical state.
type State struct {
	HandNumber int
	Phase      Phase

	Pot        int
	CurrentBet int
	MinBet     int

	ActiveAgentID string
	TurnTimer     int
	MaxTurnTime   int
	ActionCount   int

	FoldWinner      string
	IsAllInShowdown bool
	Winner          string
	Draw            bool

	OpenerIsHuman bool
	HumanPosition Position
	AIPosition    Position

	Human AgentState
	AI    AgentState

	Community      []Card
	SetupStartedAt time.Time
}

// Agent returns the agent state for side.
func (s State) Agent(side Side) AgentState {
	if side == SideAI {
		return s.AI
	}
	return s.Human
}

// Position returns the acting position of side.
func (s State) Position(side Side) Position {
	if side == SideAI {
		return s.AIPosition
	}
	return s.HumanPosition
}

// SideOf maps an agent id to its side.
func (s State) SideOf(agentID string) (Side, bool) {
	switch agentID {
	case "":
		return 0, false
	case s.Human.AgentID:
		return SideHuman, true
	case s.AI.AgentID:
		return SideAI, true
	}
	return 0, false
}

// IsTerminal reports whether no further actions are legal.
func (s State) IsTerminal() bool {
	return s.Phase == PhaseSettlement || s.FoldWinner != ""
}

// TurnKey identifies a single opportunity to act. It changes whenever an action is
// committed, the phase moves, or a new hand starts.
type TurnKey struct {
	HandNumber  int
	Phase       Phase
	AgentID     string
	ActionCount int
}

// TurnKey returns the key of the current turn opportunity.
func (s State) TurnKey() TurnKey {
	return TurnKey{
		HandNumber:  s.HandNumber,
		Phase:       s.Phase,
		AgentID:     s.ActiveAgentID,
		ActionCount: s.ActionCount,
	}
}

// Clone returns a deep copy of the snapshot.
func (s State) Clone() State {
	c := s
	c.Community = append([]Card(nil), s.Community...)
	c.Human.HoleCards = append([]Card(nil), s.Human.HoleCards...)
	c.AI.HoleCards = append([]Card(nil), s.AI.HoleCards...)
	return c
}
