// Package session wires one combat together: the store, the scheduler, and
// the phase drivers, with a loop that keeps every component in sync with the
// store. The human seat is driven through Act.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/phases"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
	"github.com/lox/petpoker/internal/store"
)

var ErrNotYourTurn = errors.New("not your turn")

// maxEvents bounds the scheduler event log kept for display.
const maxEvents = 50

// Table is the store surface a session drives.
type Table interface {
	combat.Store
	Subscribe() (<-chan struct{}, func())
	NewHand() error
	Mulligan(agentID string, indexes []int) error
	CompleteMulligan() error
	History() []store.Entry
}

type Session struct {
	table  Table
	clock  quartz.Clock
	logger *log.Logger

	sched  *scheduler.Scheduler
	setup  *phases.SetupTimer
	allIn  *phases.AllInAdvancer
	closer *phases.RoundCloser
	gate   *combat.Latch

	kick chan struct{}

	mu      sync.Mutex
	events  []scheduler.Event
	subs    map[int]chan struct{}
	nextSub int
}

type settings struct {
	timing      scheduler.Timing
	setupWindow time.Duration
	allInPacing time.Duration
	setupGate   *combat.Latch
}

type Option func(*settings)

func WithTiming(t scheduler.Timing) Option {
	return func(s *settings) { s.timing = t }
}

func WithSetupWindow(d time.Duration) Option {
	return func(s *settings) { s.setupWindow = d }
}

func WithAllInPacing(d time.Duration) Option {
	return func(s *settings) { s.allInPacing = d }
}

// WithSetupGate lets another subsystem, such as an ability picker, hold the
// setup window and the opponent's response. The session resyncs when it is
// released.
func WithSetupGate(l *combat.Latch) Option {
	return func(s *settings) { s.setupGate = l }
}

// New creates a session. decider plays the opponent seat.
func New(table Table, decider scheduler.Decider, clock quartz.Clock, logger *log.Logger, opts ...Option) *Session {
	cfg := settings{
		timing:      scheduler.DefaultTiming(),
		setupWindow: phases.DefaultSetupDuration,
		allInPacing: phases.DefaultAllInPacing,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		table:  table,
		clock:  clock,
		logger: logger.WithPrefix("session"),
		gate:   combat.NewLatch(false),
		kick:   make(chan struct{}, 1),
		subs:   make(map[int]chan struct{}),
	}
	var gate combat.Gate = s.gate
	if cfg.setupGate != nil {
		gate = combat.AnyOf(s.gate, cfg.setupGate)
		cfg.setupGate.OnRelease(s.wake)
	}
	s.sched = scheduler.New(table, decider, clock, logger,
		scheduler.WithTiming(cfg.timing),
		scheduler.WithGate(gate),
		scheduler.WithObserver(s.observe),
	)
	s.setup = phases.NewSetupTimer(table, gate, clock, logger, cfg.setupWindow)
	s.allIn = phases.NewAllInAdvancer(table, clock, logger, cfg.allInPacing)
	s.closer = phases.NewRoundCloser(table, logger)
	s.gate.OnRelease(s.wake)
	return s
}

// Run keeps the components in sync with the store until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	changes, unsubscribe := s.table.Subscribe()
	defer unsubscribe()

	s.sched.Start(ctx)
	defer s.stop()

	s.sync()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			s.sync()
		case <-s.kick:
			s.sync()
		}
	}
}

func (s *Session) stop() {
	s.sched.Stop()
	s.setup.Stop()
	s.allIn.Stop()
}

func (s *Session) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// sync runs every component against the current state. The session's own gate
// is held for the whole mulligan phase; a setup gate may hold it longer.
func (s *Session) sync() {
	if s.table.State().Phase == combat.PhaseMulligan {
		s.gate.Hold()
	} else {
		s.gate.Release()
	}
	s.sched.Sync()
	s.setup.Sync()
	s.allIn.Sync()
	s.closer.Sync()
	s.notify()
}

func (s *Session) observe(e scheduler.Event) {
	switch e.Kind {
	case scheduler.EventGuardReset, scheduler.EventStuckRecovered:
		s.logger.Warn("Scheduler recovered", "event", e.Kind, "turn", e.Turn, "held", e.Held)
	default:
		s.logger.Debug("Scheduler event", "event", e.Kind, "decision", e.Decision)
	}

	s.mu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	s.mu.Unlock()
	s.notify()
}

// Subscribe returns a coalescing channel signalled after the session has
// processed a change.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// State returns a fresh snapshot.
func (s *Session) State() combat.State {
	return s.table.State()
}

// Permissions returns what the human may do right now.
func (s *Session) Permissions() combat.Permissions {
	return combat.ResolvePermissions(s.table.State(), combat.SideHuman)
}

// LastDecision returns the opponent's most recent action.
func (s *Session) LastDecision() (policy.Decision, bool) {
	return s.sched.LastDecision()
}

// Events returns the most recent scheduler events, oldest first.
func (s *Session) Events() []scheduler.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduler.Event(nil), s.events...)
}

func (s *Session) History() []store.Entry {
	return s.table.History()
}

// Act performs a human action. It is rejected unless it is the human's turn.
func (s *Session) Act(action combat.Action, amount int) error {
	st := s.table.State()
	if !combat.ResolvePermissions(st, combat.SideHuman).IsMyTurnToAct {
		return fmt.Errorf("%s: %w", action, ErrNotYourTurn)
	}
	if err := s.table.PerformAction(st.Human.AgentID, action, amount); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// Ready marks the human ready during the setup phase.
func (s *Session) Ready() error {
	return s.table.SetReady(s.table.State().Human.AgentID)
}

// Mulligan replaces the human's hole cards at indexes and ends the mulligan
// phase.
func (s *Session) Mulligan(indexes []int) error {
	if len(indexes) > 0 {
		if err := s.table.Mulligan(s.table.State().Human.AgentID, indexes); err != nil {
			return err
		}
	}
	return s.table.CompleteMulligan()
}

// NextHand deals the next hand.
func (s *Session) NextHand() error {
	return s.table.NewHand()
}
