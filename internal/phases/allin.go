package phases

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
)

// AllInAdvancer reveals the rest of the board at a steady pace once neither
// agent can make another decision.
type AllInAdvancer struct {
	store  combat.Store
	clock  quartz.Clock
	logger *log.Logger
	pacing time.Duration

	mu         sync.Mutex
	inProgress bool
	phase      combat.Phase
	hand       int
	timer      *quartz.Timer
	// finished is the last hand whose board has been fully run out.
	finished int
	stopped  bool
}

func NewAllInAdvancer(store combat.Store, clock quartz.Clock, logger *log.Logger, pacing time.Duration) *AllInAdvancer {
	if pacing <= 0 {
		pacing = DefaultAllInPacing
	}
	return &AllInAdvancer{
		store:  store,
		clock:  clock,
		logger: logger.WithPrefix("allin"),
		pacing: pacing,
	}
}

func allInPending(st combat.State) bool {
	return st.IsAllInShowdown &&
		st.FoldWinner == "" &&
		st.Phase != combat.PhaseMulligan &&
		st.Phase != combat.PhaseSettlement
}

// Sync schedules the next advance when the all-in condition holds.
func (a *AllInAdvancer) Sync() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncLocked(a.store.State())
}

func (a *AllInAdvancer) syncLocked(st combat.State) {
	if a.stopped {
		return
	}
	if st.Phase == combat.PhaseSettlement {
		if a.finished != st.HandNumber {
			a.logger.Debug("Showdown reached", "hand", st.HandNumber)
			a.cancelLocked()
			a.finished = st.HandNumber
		}
		return
	}
	if a.inProgress && (a.phase != st.Phase || a.hand != st.HandNumber) {
		a.cancelLocked()
	}
	if a.inProgress || !allInPending(st) {
		return
	}

	a.inProgress = true
	a.phase = st.Phase
	a.hand = st.HandNumber
	phase, hand := st.Phase, st.HandNumber
	a.logger.Debug("Advancing after pause", "phase", phase, "pacing", a.pacing)
	a.timer = a.clock.AfterFunc(a.pacing, func() { a.fire(phase, hand) }, "phases", "allin")
}

func (a *AllInAdvancer) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.inProgress = false
}

func (a *AllInAdvancer) fire(phase combat.Phase, hand int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || !a.inProgress || a.phase != phase || a.hand != hand {
		return
	}
	a.timer = nil
	a.inProgress = false

	st := a.store.State()
	if st.Phase != phase || st.HandNumber != hand || !allInPending(st) {
		a.logger.Debug("All-in advance no longer needed", "scheduled", phase, "now", st.Phase)
		a.syncLocked(st)
		return
	}
	if err := a.store.AdvancePhase(); err != nil {
		a.logger.Warn("Failed to advance all-in phase", "phase", phase, "err", err)
		return
	}
	a.syncLocked(a.store.State())
}

// Stop cancels any pending advance. The advancer cannot be restarted.
func (a *AllInAdvancer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
	a.stopped = true
}
