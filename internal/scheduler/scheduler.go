// Package scheduler runs everything in a hand that happens without explicit
// player input: the human turn countdown, the opponent's delayed response, and
// the two watchdogs that recover a lost response or a stuck turn.
//
// Every timer callback reads a fresh snapshot from the store and re-validates
// its preconditions before acting. Values captured when a timer was scheduled
// are never trusted at fire time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
)

// Decider chooses the opponent's action.
type Decider interface {
	Decide(st combat.State, side combat.Side) (policy.Decision, error)
}

type Scheduler struct {
	store    combat.Store
	decider  Decider
	gate     combat.Gate
	clock    quartz.Clock
	logger   *log.Logger
	timing   Timing
	observer Observer

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	guard      GuardState
	guardSince time.Time
	// epoch changes on every guard transition so a late completion can tell it
	// has been superseded.
	epoch uint64

	aiTimer  *quartz.Timer
	aiTurn   combat.TurnKey
	followUp *quartz.Timer

	lastActed combat.TurnKey
	hasActed  bool

	countdown     *quartz.Timer
	countdownTurn combat.TurnKey
	countdownLeft int
	countdownGen  uint64

	// seenTurn is the turn opportunity last observed and seenAt when it was
	// first observed; the stuck clock never starts before either it or the
	// guard's last return to idle.
	seenTurn   combat.TurnKey
	seenAt     time.Time
	hasSeen    bool
	stuckSince time.Time
	stuckCheck *quartz.Timer

	lastDecision policy.Decision
	hasDecision  bool
}

type Option func(*Scheduler)

func WithTiming(t Timing) Option {
	return func(s *Scheduler) {
		s.timing = t
	}
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithGate suppresses the opponent response and the countdown while the gate
// is held.
func WithGate(g combat.Gate) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.gate = g
		}
	}
}

func New(store combat.Store, decider Decider, clock quartz.Clock, logger *log.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		decider: decider,
		gate:    combat.Open,
		clock:   clock,
		logger:  logger.WithPrefix("scheduler"),
		timing:  DefaultTiming(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guardSince = clock.Now()
	return s
}

// Start launches the watchdogs. They run until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.observeTurnLocked(s.store.State())

	ctx, s.cancel = context.WithCancel(ctx)
	s.clock.TickerFunc(ctx, s.timing.GuardPoll, s.checkGuard, "scheduler", "guard-watchdog")
	s.clock.TickerFunc(ctx, s.timing.StuckPoll, s.checkStuck, "scheduler", "stuck-watchdog")
}

// Stop cancels every timer and leaves the guard idle. The scheduler cannot be
// restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.stopAITimerLocked()
	s.stopCountdownLocked()
	if s.followUp != nil {
		s.followUp.Stop()
		s.followUp = nil
	}
	s.setGuardLocked(GuardIdle)
	s.resetStuckLocked()
}

// Sync is called whenever the store's state may have changed. It starts or
// cancels the countdown and schedules the opponent's response.
func (s *Scheduler) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	st := s.store.State()
	s.observeTurnLocked(st)
	s.syncCountdownLocked(st)
	s.syncAILocked(st)
}

// Guard returns the current guard state.
func (s *Scheduler) Guard() GuardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard
}

// LastDecision returns the opponent's most recent committed decision.
func (s *Scheduler) LastDecision() (policy.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDecision, s.hasDecision
}

func (s *Scheduler) setGuardLocked(g GuardState) uint64 {
	s.guard = g
	s.guardSince = s.clock.Now()
	s.epoch++
	return s.epoch
}

func (s *Scheduler) emitLocked(e Event) {
	e.At = s.clock.Now()
	if s.observer != nil {
		s.observer(e)
	}
}

// aiBlockedLocked returns why the opponent may not act on st, or "" if it may.
func (s *Scheduler) aiBlockedLocked(st combat.State) string {
	switch {
	case s.gate.Held():
		return "gate held"
	case st.AI.AgentID == "" || st.ActiveAgentID != st.AI.AgentID:
		return "not opponent's turn"
	case !st.Phase.IsBetting():
		return "not a betting phase"
	case st.FoldWinner != "":
		return "hand folded"
	case st.IsAllInShowdown:
		return "all-in showdown"
	case s.hasActed && s.lastActed == st.TurnKey():
		return "already acted this turn"
	}
	return ""
}

func (s *Scheduler) syncAILocked(st combat.State) {
	if s.guard == GuardScheduled && s.aiTurn != st.TurnKey() {
		s.logger.Debug("Turn moved on, cancelling pending response", "from", s.aiTurn, "to", st.TurnKey())
		s.stopAITimerLocked()
		s.setGuardLocked(GuardIdle)
	}
	if s.guard != GuardIdle {
		return
	}
	if reason := s.aiBlockedLocked(st); reason != "" {
		return
	}

	s.setGuardLocked(GuardScheduled)
	s.aiTurn = st.TurnKey()
	s.aiTimer = s.clock.AfterFunc(s.timing.ResponseDelay, s.fireAI, "scheduler", "ai-response")
	s.logger.Debug("Opponent response scheduled", "phase", st.Phase, "delay", s.timing.ResponseDelay)
}

func (s *Scheduler) stopAITimerLocked() {
	if s.aiTimer != nil {
		s.aiTimer.Stop()
		s.aiTimer = nil
	}
}

func (s *Scheduler) fireAI() {
	s.mu.Lock()
	if s.stopped || s.guard != GuardScheduled {
		s.mu.Unlock()
		return
	}
	s.aiTimer = nil

	st := s.store.State()
	if reason := s.aiBlockedLocked(st); reason != "" {
		s.logger.Debug("Opponent response aborted", "reason", reason)
		s.setGuardLocked(GuardIdle)
		s.syncAILocked(st)
		s.mu.Unlock()
		return
	}
	epoch := s.setGuardLocked(GuardExecuting)
	s.mu.Unlock()

	d, err := s.decide(st)
	s.commit(st, epoch, d, err, false)
}

func (s *Scheduler) decide(st combat.State) (d policy.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy panicked: %v", r)
		}
	}()
	return s.decider.Decide(st, combat.SideAI)
}

// commit submits d for the turn observed in st. The store is read again right
// before acting; if the turn has moved on the decision is dropped.
func (s *Scheduler) commit(st combat.State, epoch uint64, d policy.Decision, decideErr error, forced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.guard != GuardExecuting || s.epoch != epoch {
		s.logger.Warn("Discarding opponent decision, guard was reset", "decision", d)
		return
	}
	if decideErr != nil && !forced {
		s.logger.Warn("Opponent policy failed, leaving turn for the watchdog", "err", decideErr)
		s.setGuardLocked(GuardIdle)
		return
	}

	fresh := s.store.State()
	if reason := s.aiBlockedLocked(fresh); reason != "" || fresh.TurnKey() != st.TurnKey() {
		if reason == "" {
			reason = "turn changed while deciding"
		}
		s.logger.Debug("Opponent decision dropped", "reason", reason)
		s.setGuardLocked(GuardIdle)
		s.syncAILocked(fresh)
		return
	}

	if decideErr != nil {
		s.logger.Warn("Opponent policy failed, using fallback", "err", decideErr)
		d = policy.Fallback(fresh, combat.SideAI)
	}
	d = policy.Conform(d, combat.ResolvePermissions(fresh, combat.SideAI))

	amount := d.Amount
	if d.Action == combat.Call {
		amount = 0
	}
	if err := s.store.PerformAction(fresh.AI.AgentID, d.Action, amount); err != nil {
		s.logger.Warn("Store rejected opponent action", "action", d.Action, "amount", amount, "err", err)
		s.setGuardLocked(GuardIdle)
		return
	}

	key := fresh.TurnKey()
	s.lastActed, s.hasActed = key, true
	s.lastDecision, s.hasDecision = d, true

	kind := EventAIDecision
	if forced {
		kind = EventStuckRecovered
	}
	s.logger.Info("Opponent acted", "action", d.Action, "amount", d.Amount, "reasoning", d.Reasoning, "forced", forced)
	s.emitLocked(Event{Kind: kind, Turn: key, Decision: d})

	s.followUp = s.clock.AfterFunc(s.timing.FollowUpDelay, func() { s.fireFollowUp(epoch) }, "scheduler", "follow-up")
}

// fireFollowUp closes the betting round if the opponent's action left both
// agents ready, then releases the guard.
func (s *Scheduler) fireFollowUp(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followUp = nil
	if s.stopped {
		return
	}

	st := s.store.State()
	if st.Human.IsReady && st.AI.IsReady && st.Phase != combat.PhaseSettlement {
		if _, err := s.store.CloseBettingRoundIfReady(); err != nil {
			s.logger.Warn("Failed to close betting round", "err", err)
		}
		st = s.store.State()
	}

	if s.guard == GuardExecuting && s.epoch == epoch {
		s.setGuardLocked(GuardIdle)
	}
	s.syncCountdownLocked(st)
	s.syncAILocked(st)
}

func (s *Scheduler) checkGuard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.guard == GuardIdle {
		return nil
	}

	held := s.clock.Since(s.guardSince)
	if held < s.timing.GuardTimeout {
		return nil
	}

	s.logger.Warn("Opponent response guard stuck, resetting", "state", s.guard, "held", held)
	s.stopAITimerLocked()
	s.setGuardLocked(GuardIdle)
	s.emitLocked(Event{Kind: EventGuardReset, Turn: s.aiTurn, Held: held})
	s.syncAILocked(s.store.State())
	return nil
}

// stuckLocked reports a turn nobody is progressing: the human has acted, the
// opponent owes a response and nothing is scheduled to give it.
func (s *Scheduler) stuckLocked(st combat.State) bool {
	return st.Human.IsReady &&
		!st.AI.IsReady &&
		st.AI.AgentID != "" &&
		st.ActiveAgentID == st.AI.AgentID &&
		st.Phase.IsBetting() &&
		st.FoldWinner == "" &&
		!st.IsAllInShowdown &&
		s.guard == GuardIdle &&
		!s.gate.Held() &&
		!(s.hasActed && s.lastActed == st.TurnKey())
}

func (s *Scheduler) observeTurnLocked(st combat.State) {
	if key := st.TurnKey(); !s.hasSeen || key != s.seenTurn {
		s.seenTurn, s.seenAt, s.hasSeen = key, s.clock.Now(), true
	}
}

func (s *Scheduler) resetStuckLocked() {
	s.stuckSince = time.Time{}
	if s.stuckCheck != nil {
		s.stuckCheck.Stop()
		s.stuckCheck = nil
	}
}

func (s *Scheduler) checkStuck() error {
	s.pollStuck(false)
	return nil
}

func (s *Scheduler) recheckStuck() {
	s.pollStuck(true)
}

// pollStuck forces a decision once the stuck condition has held for
// StuckThreshold. A poll that sees it early arms a one-shot recheck for the
// moment the threshold is reached.
func (s *Scheduler) pollStuck(recheck bool) {
	s.mu.Lock()
	if recheck {
		s.stuckCheck = nil
	}
	if s.stopped {
		s.mu.Unlock()
		return
	}

	st := s.store.State()
	s.observeTurnLocked(st)
	if !s.stuckLocked(st) {
		s.resetStuckLocked()
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	if s.stuckSince.IsZero() {
		s.stuckSince = s.seenAt
		if s.guardSince.After(s.stuckSince) {
			s.stuckSince = s.guardSince
		}
	}
	if held := now.Sub(s.stuckSince); held < s.timing.StuckThreshold {
		if s.stuckCheck == nil {
			s.stuckCheck = s.clock.AfterFunc(s.timing.StuckThreshold-held, s.recheckStuck, "scheduler", "stuck-recheck")
		}
		s.mu.Unlock()
		return
	}

	s.logger.Warn("Opponent turn stuck, forcing a decision", "phase", st.Phase, "stuckFor", now.Sub(s.stuckSince))
	s.resetStuckLocked()
	epoch := s.setGuardLocked(GuardExecuting)
	s.mu.Unlock()

	d, err := s.decide(st)
	s.commit(st, epoch, d, err, true)
}
