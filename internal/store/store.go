// Package store is an in-memory implementation of combat.Store. It deals the
// cards, validates and applies actions, closes betting rounds, and settles each
// hand by moving HP between the two pets.
package store

import (
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/randutil"
)

// Config holds the table rules of a combat.
type Config struct {
	HumanID      string
	AIID         string
	MinBet       int
	SmallBlind   int
	BigBlind     int
	MaxTurnTime  int // seconds
	SkipMulligan bool
}

func DefaultConfig() Config {
	return Config{
		HumanID:     "human",
		AIID:        "ai",
		MinBet:      combat.DefaultMinBet,
		SmallBlind:  combat.DefaultMinBet,
		BigBlind:    2 * combat.DefaultMinBet,
		MaxTurnTime: 30,
	}
}

func (c Config) Validate() error {
	if c.HumanID == "" || c.AIID == "" {
		return fmt.Errorf("agent ids must be set")
	}
	if c.HumanID == c.AIID {
		return fmt.Errorf("agent ids must differ, both are %q", c.HumanID)
	}
	if c.MinBet <= 0 {
		return fmt.Errorf("min bet must be positive, got %d", c.MinBet)
	}
	if c.SmallBlind < 0 || c.BigBlind < c.SmallBlind {
		return fmt.Errorf("invalid blinds %d/%d", c.SmallBlind, c.BigBlind)
	}
	if c.MaxTurnTime <= 0 {
		return fmt.Errorf("max turn time must be positive, got %d", c.MaxTurnTime)
	}
	return nil
}

// Entry is one line of the combat history.
type Entry struct {
	At      time.Time
	Hand    int
	Phase   combat.Phase
	AgentID string
	Action  combat.Action
	Amount  int
	Note    string
}

func (e Entry) String() string {
	if e.AgentID == "" {
		return e.Note
	}
	switch e.Action {
	case combat.Bet, combat.Raise, combat.Call:
		return fmt.Sprintf("%s %s %d", e.AgentID, e.Action, e.Amount)
	}
	return fmt.Sprintf("%s %s", e.AgentID, e.Action)
}

// Store owns the canonical state of a combat between two pets. It is safe for
// concurrent use.
type Store struct {
	cfg    Config
	clock  quartz.Clock
	logger *log.Logger
	rng    *rand.Rand

	mu        sync.Mutex
	st        combat.State
	deck      *Deck
	board     []combat.Card
	invested  [2]int // HP put in by each side this hand
	stacked   []combat.Card
	mulligans map[string]bool
	history   []Entry
	subs      map[int]chan struct{}
	nextSub   int
}

type Option func(*Store)

// WithRand sets the source used to shuffle the deck.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// New creates a store for a combat between the two pets. No hand is in
// progress until NewHand is called.
func New(cfg Config, human, ai combat.PetStats, clock quartz.Clock, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		clock:  clock,
		logger: logger.WithPrefix("store"),
		subs:   make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = randutil.New(clock.Now().UnixNano())
	}
	s.st = combat.State{
		Phase:       combat.PhaseSettlement,
		MinBet:      cfg.MinBet,
		MaxTurnTime: cfg.MaxTurnTime,
		Human:       combat.AgentState{AgentID: cfg.HumanID, Pet: human},
		AI:          combat.AgentState{AgentID: cfg.AIID, Pet: ai},
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() combat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce: a slow reader sees one pending signal, not one per change.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
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

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// History returns the combat log so far.
func (s *Store) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.history...)
}

func (s *Store) recordLocked(e Entry) {
	e.At = s.clock.Now()
	e.Hand = s.st.HandNumber
	e.Phase = s.st.Phase
	s.history = append(s.history, e)
}

func (s *Store) notef(format string, args ...any) {
	s.recordLocked(Entry{Note: fmt.Sprintf(format, args...)})
}

// StackDeck fixes the order of the next hand's deck: two hole cards for the
// human, two for the opponent, then the five board cards. Remaining cards are
// shuffled.
func (s *Store) StackDeck(cards []combat.Card) error {
	seen := make(map[combat.Card]bool, len(cards))
	for _, c := range cards {
		if !c.Valid() {
			return fmt.Errorf("stack deck: invalid card %v", c)
		}
		if seen[c] {
			return fmt.Errorf("stack deck: duplicate card %s", c)
		}
		seen[c] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stacked = append([]combat.Card(nil), cards...)
	return nil
}

// NewHand deals a new hand. The opener alternates, starting with the human.
func (s *Store) NewHand() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.st.IsTerminal() {
		return fmt.Errorf("new hand: hand %d still in progress", s.st.HandNumber)
	}
	if s.st.Human.Pet.CurrentHealth <= 0 || s.st.AI.Pet.CurrentHealth <= 0 {
		return ErrCombatOver
	}

	if len(s.stacked) > 0 {
		s.deck = newStackedDeck(s.rng, s.stacked)
		s.stacked = nil
	} else {
		s.deck = NewDeck(s.rng)
		s.deck.Shuffle()
	}

	hand := s.st.HandNumber + 1
	openerIsHuman := hand%2 == 1
	humanPos, aiPos := combat.PositionFirst, combat.PositionLast
	if !openerIsHuman {
		humanPos, aiPos = combat.PositionLast, combat.PositionFirst
	}

	s.st = combat.State{
		HandNumber:    hand,
		Phase:         combat.PhaseMulligan,
		MinBet:        s.cfg.MinBet,
		MaxTurnTime:   s.cfg.MaxTurnTime,
		TurnTimer:     s.cfg.MaxTurnTime,
		OpenerIsHuman: openerIsHuman,
		HumanPosition: humanPos,
		AIPosition:    aiPos,
		Human: combat.AgentState{
			AgentID:   s.cfg.HumanID,
			Pet:       s.st.Human.Pet,
			HoleCards: s.deck.DealN(2),
		},
		AI: combat.AgentState{
			AgentID:   s.cfg.AIID,
			Pet:       s.st.AI.Pet,
			HoleCards: s.deck.DealN(2),
		},
	}
	s.board = s.deck.DealN(5)
	s.invested = [2]int{}
	s.mulligans = make(map[string]bool)

	s.logger.Debug("Dealt hand", "hand", hand, "human", combat.FormatCards(s.st.Human.HoleCards), "opener_is_human", openerIsHuman)
	s.notef("hand %d dealt", hand)

	if s.cfg.SkipMulligan {
		s.enterSetupLocked()
	}
	s.notifyLocked()
	return nil
}

// Mulligan replaces the hole cards at the given indexes. Each agent may
// mulligan once per hand.
func (s *Store) Mulligan(agentID string, indexes []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Phase != combat.PhaseMulligan {
		return fmt.Errorf("mulligan in %s: %w", s.st.Phase, ErrIllegalAction)
	}
	side, ok := s.st.SideOf(agentID)
	if !ok {
		return fmt.Errorf("mulligan %q: %w", agentID, ErrUnknownAgent)
	}
	if s.mulligans[agentID] {
		return fmt.Errorf("second mulligan by %s: %w", agentID, ErrIllegalAction)
	}

	a := s.agentLocked(side)
	seen := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(a.HoleCards) || seen[i] {
			return fmt.Errorf("mulligan index %d: %w", i, ErrIllegalAction)
		}
		seen[i] = true
	}
	for _, i := range indexes {
		c, ok := s.deck.Deal()
		if !ok {
			return fmt.Errorf("mulligan: deck exhausted")
		}
		a.HoleCards[i] = c
	}
	s.mulligans[agentID] = true
	s.notef("%s replaced %d cards", agentID, len(indexes))
	s.notifyLocked()
	return nil
}

// CompleteMulligan ends the mulligan phase and starts the setup window.
func (s *Store) CompleteMulligan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Phase != combat.PhaseMulligan {
		return fmt.Errorf("complete mulligan in %s: %w", s.st.Phase, ErrIllegalAction)
	}
	s.enterSetupLocked()
	s.notifyLocked()
	return nil
}

func (s *Store) enterSetupLocked() {
	s.st.Phase = combat.PhaseSetup
	s.st.SetupStartedAt = s.clock.Now()
	s.st.Human.IsReady = false
	s.st.AI.IsReady = false
	s.notef("setup")
}

// SetReady marks an agent ready during the setup phase.
func (s *Store) SetReady(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Phase != combat.PhaseSetup {
		return fmt.Errorf("ready in %s: %w", s.st.Phase, ErrIllegalAction)
	}
	side, ok := s.st.SideOf(agentID)
	if !ok {
		return fmt.Errorf("ready %q: %w", agentID, ErrUnknownAgent)
	}
	s.agentLocked(side).IsReady = true
	s.notifyLocked()
	return nil
}

// UpdateTurnTimer publishes the countdown of the active agent.
func (s *Store) UpdateTurnTimer(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.TurnTimer = max(0, seconds)
	s.notifyLocked()
}

func (s *Store) agentLocked(side combat.Side) *combat.AgentState {
	if side == combat.SideAI {
		return &s.st.AI
	}
	return &s.st.Human
}

func slot(side combat.Side) int {
	if side == combat.SideAI {
		return 1
	}
	return 0
}
