package store

import (
	"fmt"

	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/equity"
)

// CloseBettingRoundIfReady advances the phase when both agents are ready and,
// in a betting phase, both have matched the current bet or cannot add more.
func (s *Store) CloseBettingRoundIfReady() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.st
	if st.IsTerminal() || st.Phase == combat.PhaseMulligan {
		return false, nil
	}
	if !st.Human.IsReady || !st.AI.IsReady {
		return false, nil
	}
	if st.Phase.IsBetting() {
		if !s.settledLocked() {
			return false, nil
		}
		if st.Human.AvailableHP() == 0 || st.AI.AvailableHP() == 0 {
			st.IsAllInShowdown = true
		}
	}
	s.advanceLocked()
	s.notifyLocked()
	return true, nil
}

// AdvancePhase moves to the next phase without checking readiness.
func (s *Store) AdvancePhase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.IsTerminal() {
		return fmt.Errorf("advance from %s: %w", s.st.Phase, ErrHandOver)
	}
	s.advanceLocked()
	s.notifyLocked()
	return nil
}

func (s *Store) advanceLocked() {
	st := &s.st
	from := st.Phase
	switch from {
	case combat.PhaseMulligan:
		s.enterSetupLocked()
		return
	case combat.PhaseSetup:
		st.Phase = combat.PhaseOpeningBet
		s.revealLocked()
		s.postBlindsLocked()
		s.startRoundLocked()
	case combat.PhaseOpeningBet, combat.PhaseMiddleBet:
		s.returnUncalledLocked()
		st.Phase = from.Next()
		s.revealLocked()
		st.CurrentBet = 0
		st.Human.HPCommitted = 0
		st.AI.HPCommitted = 0
		s.startRoundLocked()
	case combat.PhaseLateBet:
		s.returnUncalledLocked()
		st.Phase = combat.PhaseSettlement
		s.revealLocked()
		s.showdownLocked()
		return
	default:
		return
	}
	s.logger.Debug("Phase advanced", "from", from, "to", st.Phase, "pot", st.Pot, "all_in", st.IsAllInShowdown)
	s.notef("%s: %s (pot %d)", st.Phase, combat.FormatCards(st.Community), st.Pot)
}

func (s *Store) revealLocked() {
	n := min(s.st.Phase.CommunityCount(), len(s.board))
	s.st.Community = append([]combat.Card(nil), s.board[:n]...)
}

// postBlindsLocked makes the opener post the small blind and the other agent
// the big blind, as live bets of the opening round.
func (s *Store) postBlindsLocked() {
	first, last := combat.SideHuman, combat.SideAI
	if !s.st.OpenerIsHuman {
		first, last = combat.SideAI, combat.SideHuman
	}
	for _, b := range []struct {
		side   combat.Side
		amount int
	}{{first, s.cfg.SmallBlind}, {last, s.cfg.BigBlind}} {
		a := s.agentLocked(b.side)
		posted := max(0, min(b.amount, a.Pet.CurrentHealth))
		a.HPCommitted += posted
		a.BlindPosted = posted
		a.Pet.CurrentHealth -= posted
		s.st.Pot += posted
		s.invested[slot(b.side)] += posted
		s.st.CurrentBet = max(s.st.CurrentBet, a.HPCommitted)
	}
}

// startRoundLocked opens a betting round with the first-position agent to
// act. When either agent has nothing left to spend no one acts and the board
// is run out.
func (s *Store) startRoundLocked() {
	st := &s.st
	st.Human.IsReady = false
	st.AI.IsReady = false
	st.TurnTimer = st.MaxTurnTime

	if st.Human.AvailableHP() == 0 || st.AI.AvailableHP() == 0 {
		st.IsAllInShowdown = true
	}
	if st.IsAllInShowdown {
		st.ActiveAgentID = ""
		return
	}
	if st.HumanPosition == combat.PositionFirst {
		st.ActiveAgentID = st.Human.AgentID
	} else {
		st.ActiveAgentID = st.AI.AgentID
	}
}

func (s *Store) settledLocked() bool {
	for _, a := range []combat.AgentState{s.st.Human, s.st.AI} {
		if a.HPCommitted < s.st.CurrentBet && a.AvailableHP() > 0 {
			return false
		}
	}
	return true
}

// returnUncalledLocked gives back the part of a bet the opponent could not
// match.
func (s *Store) returnUncalledLocked() {
	h, a := s.st.Human.HPCommitted, s.st.AI.HPCommitted
	switch {
	case h > a:
		s.refundLocked(combat.SideHuman, h-a)
		s.st.Human.HPCommitted = a
	case a > h:
		s.refundLocked(combat.SideAI, a-h)
		s.st.AI.HPCommitted = h
	default:
		return
	}
	s.st.CurrentBet = min(h, a)
}

// showdownLocked ranks both hands on the full board. The winner recovers
// what it put in; a draw refunds both.
func (s *Store) showdownLocked() {
	st := &s.st
	cmp, err := equity.Compare(st.Human.HoleCards, st.AI.HoleCards, s.board)
	if err != nil {
		s.logger.Error("Failed to rank hands, settling as a draw", "hand", st.HandNumber, "err", err)
		cmp = 0
	}

	humanLoss, aiLoss := s.invested[0], s.invested[1]
	switch {
	case cmp > 0:
		st.Winner = st.Human.AgentID
		s.refundLocked(combat.SideHuman, humanLoss)
		humanLoss = 0
	case cmp < 0:
		st.Winner = st.AI.AgentID
		s.refundLocked(combat.SideAI, aiLoss)
		aiLoss = 0
	default:
		st.Draw = true
		s.refundLocked(combat.SideHuman, humanLoss)
		s.refundLocked(combat.SideAI, aiLoss)
		humanLoss, aiLoss = 0, 0
	}
	st.ActiveAgentID = ""
	s.finishLocked()

	humanDesc, _ := equity.Describe(st.Human.HoleCards, s.board)
	aiDesc, _ := equity.Describe(st.AI.HoleCards, s.board)
	s.logger.Info("Showdown", "hand", st.HandNumber, "winner", st.Winner, "draw", st.Draw,
		"human", humanDesc, "ai", aiDesc, "human_loss", humanLoss, "ai_loss", aiLoss)
	switch {
	case st.Draw:
		s.notef("showdown: draw (%s vs %s)", humanDesc, aiDesc)
	default:
		s.notef("showdown: %s wins (%s vs %s), damage %d/%d", st.Winner, humanDesc, aiDesc, humanLoss, aiLoss)
	}
}

// finishLocked ends the hand. HP left in the pot is damage already taken.
func (s *Store) finishLocked() {
	s.st.Phase = combat.PhaseSettlement
	s.st.Pot = 0
	s.st.CurrentBet = 0
	s.st.Human.HPCommitted = 0
	s.st.AI.HPCommitted = 0
}
