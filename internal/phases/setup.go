// Package phases drives phase progression that needs no betting decision: the
// timed setup window, closing a finished betting round, and running out the
// board once both agents are all-in.
package phases

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
)

const (
	DefaultSetupDuration = 2500 * time.Millisecond
	DefaultAllInPacing   = 1500 * time.Millisecond
)

// SetupTimer ends the simultaneous setup phase after a fixed window measured
// from the phase's start time, so a late observer waits only for the remainder.
type SetupTimer struct {
	store    combat.Store
	gate     combat.Gate
	clock    quartz.Clock
	logger   *log.Logger
	duration time.Duration

	mu      sync.Mutex
	timer   *quartz.Timer
	key     setupKey
	armed   bool
	stopped bool
}

type setupKey struct {
	hand    int
	started time.Time
}

func NewSetupTimer(store combat.Store, gate combat.Gate, clock quartz.Clock, logger *log.Logger, duration time.Duration) *SetupTimer {
	if gate == nil {
		gate = combat.Open
	}
	if duration <= 0 {
		duration = DefaultSetupDuration
	}
	return &SetupTimer{
		store:    store,
		gate:     gate,
		clock:    clock,
		logger:   logger.WithPrefix("setup"),
		duration: duration,
	}
}

// Sync arms the timer when the setup phase is active and disarms it otherwise.
func (t *SetupTimer) Sync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	st := t.store.State()
	if st.Phase != combat.PhaseSetup || t.gate.Held() {
		t.disarmLocked()
		return
	}

	key := setupKey{hand: st.HandNumber, started: st.SetupStartedAt}
	if t.armed && t.key == key {
		return
	}
	t.disarmLocked()

	remaining := t.duration
	if !st.SetupStartedAt.IsZero() {
		remaining -= t.clock.Since(st.SetupStartedAt)
	}
	remaining = max(0, remaining)

	t.key = key
	t.armed = true
	if remaining == 0 {
		t.logger.Debug("Setup window already elapsed")
		t.fireLocked(key)
		return
	}
	t.logger.Debug("Setup window armed", "remaining", remaining)
	t.timer = t.clock.AfterFunc(remaining, func() { t.fire(key) }, "phases", "setup")
}

func (t *SetupTimer) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
}

func (t *SetupTimer) fire(key setupKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || !t.armed || t.key != key {
		return
	}
	t.timer = nil
	t.fireLocked(key)
}

func (t *SetupTimer) fireLocked(key setupKey) {
	if t.gate.Held() {
		t.logger.Debug("Setup window elapsed while gate held, waiting")
		t.armed = false
		return
	}
	st := t.store.State()
	if st.Phase != combat.PhaseSetup || st.HandNumber != key.hand {
		t.armed = false
		return
	}

	for _, id := range []string{st.Human.AgentID, st.AI.AgentID} {
		if err := t.store.SetReady(id); err != nil {
			t.logger.Warn("Failed to mark agent ready", "agent", id, "err", err)
		}
	}
	closed, err := t.store.CloseBettingRoundIfReady()
	if err != nil {
		t.logger.Warn("Failed to end setup phase", "err", err)
		return
	}
	t.logger.Debug("Setup window complete", "closed", closed)
}

// Stop cancels the pending timer.
func (t *SetupTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.disarmLocked()
}
