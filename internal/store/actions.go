package store

import (
	"fmt"

	"github.com/lox/petpoker/internal/combat"
)

// PerformAction applies a betting action for the active agent. Bet amounts are
// clamped to [MinBet, MaxBetAmount]; a raise amount is the increment over the
// amount to call. Calls commit what the agent can afford and ignore hpAmount.
// A fold is accepted at any point of the agent's own turn.
func (s *Store) PerformAction(agentID string, action combat.Action, hpAmount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.st
	if st.IsTerminal() {
		return fmt.Errorf("%s %s: %w", agentID, action, ErrHandOver)
	}
	if !st.Phase.IsBetting() {
		return fmt.Errorf("%s %s in %s: %w", agentID, action, st.Phase, ErrNotBettingPhase)
	}
	side, ok := st.SideOf(agentID)
	if !ok {
		return fmt.Errorf("%s %q: %w", action, agentID, ErrUnknownAgent)
	}
	if st.ActiveAgentID != agentID {
		return fmt.Errorf("%s %s: %w", agentID, action, ErrNotYourTurn)
	}

	perms := combat.ResolvePermissions(*st, side)
	a := s.agentLocked(side)
	committed := 0

	switch action {
	case combat.Fold:
		s.foldLocked(side)
		s.notifyLocked()
		return nil
	case combat.Check:
		if !perms.CanCheck {
			return fmt.Errorf("check facing %d: %w", perms.ToCall, ErrIllegalAction)
		}
	case combat.Call:
		if !perms.CanCall {
			return fmt.Errorf("call with nothing to call: %w", ErrIllegalAction)
		}
		committed = s.commitLocked(side, perms.CallAmount)
	case combat.Bet:
		if !perms.CanBet {
			return fmt.Errorf("bet with %d available facing %d: %w", perms.AvailableHP, perms.ToCall, ErrIllegalAction)
		}
		committed = s.commitLocked(side, clamp(hpAmount, st.MinBet, perms.MaxBetAmount))
		st.CurrentBet = a.HPCommitted
		s.agentLocked(side.Other()).IsReady = false
	case combat.Raise:
		if !perms.CanRaise {
			return fmt.Errorf("raise with %d available facing %d: %w", perms.AvailableHP, perms.ToCall, ErrIllegalAction)
		}
		committed = s.commitLocked(side, perms.ToCall+clamp(hpAmount, st.MinBet, perms.MaxBetAmount))
		st.CurrentBet = a.HPCommitted
		s.agentLocked(side.Other()).IsReady = false
	default:
		return fmt.Errorf("unknown action %d: %w", action, ErrIllegalAction)
	}

	a.IsReady = true
	st.ActionCount++
	s.recordLocked(Entry{AgentID: agentID, Action: action, Amount: committed})
	s.logger.Debug("Action", "agent", agentID, "action", action, "hp", committed, "pot", st.Pot, "bet", st.CurrentBet)
	s.passTurnLocked(side)
	s.notifyLocked()
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// commitLocked moves HP from the agent's pet into the pot.
func (s *Store) commitLocked(side combat.Side, amount int) int {
	a := s.agentLocked(side)
	amount = max(0, min(amount, a.AvailableHP()))
	a.HPCommitted += amount
	a.Pet.CurrentHealth -= amount
	s.st.Pot += amount
	s.invested[slot(side)] += amount
	return amount
}

// refundLocked returns HP from the pot to the agent's pet.
func (s *Store) refundLocked(side combat.Side, amount int) {
	a := s.agentLocked(side)
	a.Pet.CurrentHealth = min(a.Pet.MaxHealth, a.Pet.CurrentHealth+amount)
	s.st.Pot -= amount
	s.invested[slot(side)] -= amount
}

// passTurnLocked hands the turn to the opponent, or to nobody when the round
// is ready to close. An opponent with no HP to spend cannot respond and is
// treated as ready.
func (s *Store) passTurnLocked(actor combat.Side) {
	other := s.agentLocked(actor.Other())
	if other.AvailableHP() == 0 {
		other.IsReady = true
	}
	s.st.TurnTimer = s.st.MaxTurnTime
	if s.st.Human.IsReady && s.st.AI.IsReady {
		s.st.ActiveAgentID = ""
		return
	}
	s.st.ActiveAgentID = other.AgentID
}

func (s *Store) foldLocked(side combat.Side) {
	winner := side.Other()
	w := s.agentLocked(winner)
	folder := s.agentLocked(side).AgentID

	s.st.ActionCount++
	s.recordLocked(Entry{AgentID: folder, Action: combat.Fold})

	s.st.FoldWinner = w.AgentID
	s.st.Winner = w.AgentID
	s.st.Human.IsReady = true
	s.st.AI.IsReady = true
	s.st.ActiveAgentID = ""

	lost := s.invested[slot(side)]
	s.refundLocked(winner, s.invested[slot(winner)])
	s.finishLocked()
	s.logger.Info("Hand won by fold", "hand", s.st.HandNumber, "winner", w.AgentID, "damage", lost)
	s.notef("%s folded and loses %d HP", folder, lost)
}
