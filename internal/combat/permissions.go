package combat

// Permissions are the legal actions and bet bounds for one side of a snapshot.
type Permissions struct {
	ToCall       int
	HasBetToCall bool
	AvailableHP  int
	MinBet       int

	CanCheck bool
	CanBet   bool
	CanCall  bool
	CanRaise bool
	CanFold  bool

	MaxBetAmount int
	// CallAmount is what a call actually commits. It is less than ToCall when
	// IsAllIn is set.
	CallAmount int
	IsAllIn    bool

	IsMyTurnToAct      bool
	WaitingForOpponent bool
}

// ResolvePermissions derives the permissions of side from st. It has no side
// effects and returns the same result for the same snapshot.
//
// Turn ownership comes from ActiveAgentID alone. Readiness flags and the phase
// are updated by other writers and cannot be used to infer whose turn it is.
func ResolvePermissions(st State, side Side) Permissions {
	self := st.Agent(side)
	open := st.Phase != PhaseSettlement

	p := Permissions{
		ToCall:      max(0, st.CurrentBet-self.HPCommitted),
		AvailableHP: self.AvailableHP(),
		MinBet:      st.MinBet,
	}
	p.HasBetToCall = p.ToCall > 0

	p.CanCheck = !p.HasBetToCall && open
	p.CanBet = !p.HasBetToCall && p.AvailableHP >= st.MinBet && open
	p.CanCall = p.HasBetToCall && p.AvailableHP > 0 && open
	p.CanRaise = p.HasBetToCall && p.ToCall+st.MinBet <= p.AvailableHP && open
	p.CanFold = p.HasBetToCall && open

	p.CallAmount = min(p.ToCall, p.AvailableHP)
	p.IsAllIn = p.CallAmount < p.ToCall

	if p.HasBetToCall {
		p.MaxBetAmount = max(0, p.AvailableHP-p.ToCall)
	} else {
		p.MaxBetAmount = p.AvailableHP
	}

	if !st.IsTerminal() && st.ActiveAgentID != "" {
		p.IsMyTurnToAct = st.ActiveAgentID == self.AgentID
		p.WaitingForOpponent = st.ActiveAgentID == st.Agent(side.Other()).AgentID
	}
	return p
}
