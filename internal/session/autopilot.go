package session

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
)

// Autopilot plays the human seat with a decider, for simulations and demos.
// It keeps its hand at the mulligan and readies at once during setup.
type Autopilot struct {
	session *Session
	decider scheduler.Decider
	logger  *log.Logger

	acted    combat.TurnKey
	hasActed bool
}

func NewAutopilot(s *Session, decider scheduler.Decider, logger *log.Logger) *Autopilot {
	return &Autopilot{session: s, decider: decider, logger: logger.WithPrefix("autopilot")}
}

// Run acts whenever the session changes until ctx is done.
func (a *Autopilot) Run(ctx context.Context) error {
	changes, unsubscribe := a.session.Subscribe()
	defer unsubscribe()
	for {
		a.step()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
		}
	}
}

func (a *Autopilot) step() {
	st := a.session.State()
	switch {
	case st.Phase == combat.PhaseMulligan:
		if err := a.session.Mulligan(nil); err != nil {
			a.logger.Debug("Mulligan skipped", "err", err)
		}
		return
	case st.Phase == combat.PhaseSetup && !st.Human.IsReady:
		if err := a.session.Ready(); err != nil {
			a.logger.Debug("Ready skipped", "err", err)
		}
		return
	}

	perms := combat.ResolvePermissions(st, combat.SideHuman)
	if !perms.IsMyTurnToAct {
		return
	}
	key := st.TurnKey()
	if a.hasActed && a.acted == key {
		return
	}

	d, err := a.decider.Decide(st, combat.SideHuman)
	if err != nil {
		a.logger.Warn("Decider failed, using fallback", "err", err)
		d = policy.Fallback(st, combat.SideHuman)
	}
	d = policy.Conform(d, perms)

	a.acted, a.hasActed = key, true
	if err := a.session.Act(d.Action, d.Amount); err != nil {
		a.logger.Debug("Action rejected", "decision", d, "err", err)
		return
	}
	a.logger.Debug("Acted", "decision", d)
}
