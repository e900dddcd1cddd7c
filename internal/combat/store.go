package combat

// StateReader returns a fresh snapshot every time it is called.
type StateReader interface {
	State() State
}

// Commands is the only way to change a hand.
type Commands interface {
	PerformAction(agentID string, action Action, hpAmount int) error
	AdvancePhase() error
	// CloseBettingRoundIfReady closes the round when both agents are ready and
	// reports whether it did.
	CloseBettingRoundIfReady() (bool, error)
	SetReady(agentID string) error
	UpdateTurnTimer(seconds int)
}

// Store owns the canonical state of a hand.
type Store interface {
	StateReader
	Commands
}
