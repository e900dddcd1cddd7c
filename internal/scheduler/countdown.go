package scheduler

import (
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
)

func (s *Scheduler) humanTurnOpen(st combat.State) bool {
	return !s.gate.Held() &&
		st.Human.AgentID != "" &&
		st.ActiveAgentID == st.Human.AgentID &&
		st.Phase.IsBetting() &&
		st.FoldWinner == "" &&
		!st.IsAllInShowdown
}

// syncCountdownLocked starts a countdown for each new human turn opportunity
// and cancels it once the opportunity is gone.
func (s *Scheduler) syncCountdownLocked(st combat.State) {
	if !s.humanTurnOpen(st) {
		s.stopCountdownLocked()
		return
	}
	key := st.TurnKey()
	if s.countdown != nil && s.countdownTurn == key {
		return
	}
	s.stopCountdownLocked()

	left := st.TurnTimer
	if left <= 0 {
		left = st.MaxTurnTime
	}
	if left <= 0 {
		return
	}
	s.countdownTurn = key
	s.countdownLeft = left
	s.scheduleTickLocked()
}

func (s *Scheduler) scheduleTickLocked() {
	s.countdownGen++
	gen := s.countdownGen
	s.countdown = s.clock.AfterFunc(s.timing.CountdownTick, func() { s.tick(gen) }, "scheduler", "countdown")
}

func (s *Scheduler) stopCountdownLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.countdownGen++
	s.countdownTurn = combat.TurnKey{}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || gen != s.countdownGen {
		return
	}
	s.countdown = nil

	st := s.store.State()
	if !s.humanTurnOpen(st) || st.TurnKey() != s.countdownTurn {
		s.stopCountdownLocked()
		return
	}

	s.countdownLeft--
	s.store.UpdateTurnTimer(s.countdownLeft)
	if s.countdownLeft > 0 {
		s.scheduleTickLocked()
		return
	}
	s.timeoutLocked()
}

// timeoutLocked plays the human's turn when the countdown runs out. The
// announced permissions and the submitted action come from the same fresh read.
func (s *Scheduler) timeoutLocked() {
	st := s.store.State()
	perms := combat.ResolvePermissions(st, combat.SideHuman)
	if !perms.IsMyTurnToAct {
		return
	}

	d := policy.Decision{Action: combat.Check, Reasoning: "turn timer expired"}
	switch {
	case perms.CanCall:
		d = policy.Decision{Action: combat.Call, Amount: perms.CallAmount, Reasoning: "turn timer expired"}
	case !perms.CanCheck:
		// facing a bet with nothing left to call it; a check would be rejected
		d = policy.Decision{Action: combat.Fold, Reasoning: "turn timer expired"}
	}

	s.logger.Info("Turn timer expired", "action", d.Action, "amount", d.Amount, "toCall", perms.ToCall, "available", perms.AvailableHP)
	s.emitLocked(Event{Kind: EventTimeout, Turn: st.TurnKey(), Decision: d, Permissions: perms})

	if err := s.store.PerformAction(st.Human.AgentID, d.Action, d.Amount); err != nil {
		s.logger.Warn("Store rejected timeout action", "action", d.Action, "err", err)
		return
	}
	s.countdownTurn = combat.TurnKey{}
}
