// Package policy implements the heuristic opponent that plays the AI seat.
package policy

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/randutil"
)

// Evaluator scores hole cards against the revealed community cards.
// The result is a strength in [0,1].
type Evaluator interface {
	Evaluate(hole, community []combat.Card) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(hole, community []combat.Card) (float64, error)

func (f EvaluatorFunc) Evaluate(hole, community []combat.Card) (float64, error) {
	return f(hole, community)
}

// Rand is the random source used for bluff draws.
type Rand interface {
	Float64() float64
}

// Decision is the action chosen for a turn.
type Decision struct {
	Action combat.Action
	// Amount is the bet size for Bet and the increment over the call for Raise.
	// Calls, checks and folds carry zero.
	Amount    int
	Reasoning string
}

func (d Decision) String() string {
	if d.Amount > 0 {
		return fmt.Sprintf("%s %d", d.Action, d.Amount)
	}
	return d.Action.String()
}

const (
	positionBonus     = 0.05
	semiBluffFreq     = 0.1
	bluffCeiling      = 0.3
	valueRaiseShare   = 0.4
	bluffRaiseShare   = 0.3
	openSizing        = 0.15
	bluffBetSizing    = 0.1
	smallValueSizing  = 0.08
	strongThreshold   = 0.6
	raiseThreshold    = 0.7
	mediumThreshold   = 0.3
	smallBetThreshold = 0.35
	veryWeak          = 0.15
	weakBluffRaise    = 0.2
)

// Engine decides actions for one seat.
type Engine struct {
	cfg       Config
	evaluator Evaluator
	logger    *log.Logger

	mu  sync.Mutex
	rng Rand
}

type Option func(*Engine)

// WithRand makes bluff draws reproducible.
func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.WithPrefix("policy")
		}
	}
}

func New(cfg Config, evaluator Evaluator, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		evaluator: evaluator,
		logger:    log.NewWithOptions(io.Discard, log.Options{}),
		rng:       randutil.New(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's tuning.
func (e *Engine) Config() Config {
	return e.cfg
}

// situation is everything the decision trees read.
type situation struct {
	strength     float64
	potOdds      float64
	toCall       int
	available    int
	maxHealth    int
	minBet       int
	mustBetOrOut bool
}

// Decide picks an action for side. The call math is measured from the blind
// posted this hand, not from HPCommitted.
func (e *Engine) Decide(st combat.State, side combat.Side) (Decision, error) {
	self := st.Agent(side)

	s := situation{
		toCall:    max(0, st.CurrentBet-self.BlindPosted),
		available: self.AvailableHP(),
		maxHealth: self.Pet.MaxHealth,
		minBet:    st.MinBet,
	}
	if s.minBet <= 0 {
		s.minBet = combat.DefaultMinBet
	}
	s.mustBetOrOut = st.Phase.MustBetOrFold() && s.toCall == 0
	s.potOdds = 1
	if s.toCall > 0 {
		s.potOdds = float64(st.Pot) / float64(st.Pot+s.toCall)
	}

	if s.available <= 0 {
		if s.toCall > 0 {
			return Decision{Action: combat.Call, Reasoning: "already all-in, calling to see cards"}, nil
		}
		return Decision{Action: combat.Check, Reasoning: "already all-in, checking"}, nil
	}

	strength, err := e.evaluator.Evaluate(self.HoleCards, st.Community)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate hand: %w", err)
	}
	if st.Position(side) == combat.PositionLast {
		strength += positionBonus
	}
	s.strength = strength

	var d Decision
	if s.toCall > 0 {
		d = e.withBetToCall(s)
	} else {
		d = e.withoutBet(s)
	}
	d = s.sanitize(d)

	e.logger.Debug("Decision",
		"side", side,
		"phase", st.Phase,
		"strength", fmt.Sprintf("%.2f", s.strength),
		"potOdds", fmt.Sprintf("%.2f", s.potOdds),
		"toCall", s.toCall,
		"available", s.available,
		"action", d.Action,
		"amount", d.Amount,
		"reasoning", d.Reasoning)
	return d, nil
}

func (e *Engine) withBetToCall(s situation) Decision {
	canCall := s.available >= s.toCall
	canRaise := s.available >= s.toCall+s.minBet
	room := s.available - s.toCall

	if s.strength >= raiseThreshold && canRaise {
		return Decision{
			Action:    combat.Raise,
			Amount:    max(s.minBet, min(floor(float64(s.available)*valueRaiseShare), room)),
			Reasoning: fmt.Sprintf("strong hand (%.0f%%), raising for value", s.strength*100),
		}
	}

	if s.strength >= s.potOdds*0.8 && canCall {
		if e.bluff(semiBluffFreq, s.strength) && canRaise {
			return Decision{
				Action:    combat.Raise,
				Amount:    max(s.minBet, min(s.minBet*2, room)),
				Reasoning: "semi-bluff raise",
			}
		}
		return Decision{
			Action:    combat.Call,
			Reasoning: fmt.Sprintf("pot odds favourable (%.0f%% > %.0f%%), calling", s.strength*100, s.potOdds*80),
		}
	}

	if s.strength < weakBluffRaise && e.bluff(e.cfg.BluffFrequency, s.strength) && canRaise {
		return Decision{
			Action:    combat.Raise,
			Amount:    min(max(s.minBet, floor(float64(s.available)*bluffRaiseShare)), room),
			Reasoning: "bluff raise with weak hand",
		}
	}

	if s.strength < s.potOdds*0.5 {
		return Decision{
			Action:    combat.Fold,
			Reasoning: fmt.Sprintf("hand too weak (%.0f%% < %.0f%%), folding", s.strength*100, s.potOdds*50),
		}
	}

	if canCall {
		return Decision{Action: combat.Call, Reasoning: "marginal hand, calling to see more cards"}
	}
	return Decision{Action: combat.Fold, Reasoning: "cannot afford to call"}
}

func (e *Engine) withoutBet(s situation) Decision {
	valueSize := max(s.minBet, min(floor(float64(s.maxHealth)*openSizing*(s.strength+0.5)), s.available))
	bluffSize := max(s.minBet, min(floor(float64(s.maxHealth)*bluffBetSizing), s.available))

	if s.mustBetOrOut {
		if s.available < s.minBet {
			return Decision{Action: combat.Fold, Reasoning: "not enough HP to open, folding"}
		}
		if s.strength >= strongThreshold {
			return Decision{
				Action:    combat.Bet,
				Amount:    valueSize,
				Reasoning: fmt.Sprintf("strong hand (%.0f%%), opening for value", s.strength*100),
			}
		}
		if s.strength >= mediumThreshold {
			return Decision{
				Action:    combat.Bet,
				Amount:    s.minBet,
				Reasoning: fmt.Sprintf("medium hand (%.0f%%), minimum opening bet", s.strength*100),
			}
		}
		if e.bluff(e.cfg.BluffFrequency, s.strength) {
			return Decision{Action: combat.Bet, Amount: bluffSize, Reasoning: "opening bluff"}
		}
		if s.strength < veryWeak {
			return Decision{
				Action:    combat.Fold,
				Reasoning: fmt.Sprintf("very weak hand (%.0f%%), folding", s.strength*100),
			}
		}
		return Decision{Action: combat.Bet, Amount: s.minBet, Reasoning: "must open, minimum bet"}
	}

	canBet := s.available >= s.minBet
	if s.strength >= strongThreshold && canBet {
		return Decision{
			Action:    combat.Bet,
			Amount:    valueSize,
			Reasoning: fmt.Sprintf("strong hand (%.0f%%), betting for value", s.strength*100),
		}
	}
	if s.strength < weakBluffRaise && canBet && e.bluff(e.cfg.BluffFrequency, s.strength) {
		return Decision{Action: combat.Bet, Amount: bluffSize, Reasoning: "bluff bet with weak hand"}
	}
	if s.strength >= smallBetThreshold && canBet {
		return Decision{
			Action:    combat.Bet,
			Amount:    max(s.minBet, min(floor(float64(s.maxHealth)*smallValueSizing), s.available)),
			Reasoning: fmt.Sprintf("medium hand (%.0f%%), small bet", s.strength*100),
		}
	}
	return Decision{Action: combat.Check, Reasoning: fmt.Sprintf("weak hand (%.0f%%), checking", s.strength*100)}
}

// bluff draws once, and only for hands weak enough to bluff with.
func (e *Engine) bluff(freq, strength float64) bool {
	if strength > bluffCeiling {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < freq*(1-strength)
}

// sanitize clamps sizes into the legal range. A size that cannot be made legal
// becomes a fold so the store never sees an illegal bet.
func (s situation) sanitize(d Decision) Decision {
	switch d.Action {
	case combat.Bet:
		d.Amount = min(d.Amount, s.available)
		if d.Amount < s.minBet {
			return Decision{Action: combat.Fold, Reasoning: "bet below minimum after clamping, folding"}
		}
	case combat.Raise:
		d.Amount = min(d.Amount, s.available-s.toCall)
		if d.Amount < s.minBet {
			return Decision{Action: combat.Fold, Reasoning: "raise below minimum after clamping, folding"}
		}
	default:
		d.Amount = 0
	}
	return d
}

func floor(v float64) int {
	return int(math.Floor(v))
}

// Fallback is the decision used when the policy cannot run: fold if the call
// is unaffordable, check when there is nothing to call, otherwise call.
func Fallback(st combat.State, side combat.Side) Decision {
	p := combat.ResolvePermissions(st, side)
	switch {
	case p.CanCheck:
		return Decision{Action: combat.Check, Reasoning: "fallback check"}
	case p.CanCall && !p.IsAllIn:
		return Decision{Action: combat.Call, Reasoning: "fallback call"}
	default:
		return Decision{Action: combat.Fold, Reasoning: "fallback fold"}
	}
}

// Conform maps d onto the actions p allows. The policy measures calls from the
// blind while the store measures them from HPCommitted, so a decision can name
// an action the store would reject.
func Conform(d Decision, p combat.Permissions) Decision {
	switch d.Action {
	case combat.Check:
		if !p.CanCheck {
			return conformCall(d, p)
		}
	case combat.Call:
		if !p.CanCall {
			if p.CanCheck {
				return Decision{Action: combat.Check, Reasoning: d.Reasoning}
			}
			return Decision{Action: combat.Fold, Reasoning: d.Reasoning}
		}
	case combat.Bet:
		if p.HasBetToCall {
			return conformRaise(Decision{Action: combat.Raise, Amount: d.Amount, Reasoning: d.Reasoning}, p)
		}
		if !p.CanBet {
			return Decision{Action: combat.Check, Reasoning: d.Reasoning}
		}
		d.Amount = max(p.MinBet, min(d.Amount, p.MaxBetAmount))
	case combat.Raise:
		if !p.HasBetToCall {
			if !p.CanBet {
				return Decision{Action: combat.Check, Reasoning: d.Reasoning}
			}
			return Decision{Action: combat.Bet, Amount: max(p.MinBet, min(d.Amount, p.MaxBetAmount)), Reasoning: d.Reasoning}
		}
		return conformRaise(d, p)
	}
	if d.Action == combat.Check || d.Action == combat.Call || d.Action == combat.Fold {
		d.Amount = 0
	}
	return d
}

func conformRaise(d Decision, p combat.Permissions) Decision {
	if !p.CanRaise {
		return conformCall(d, p)
	}
	d.Amount = max(p.MinBet, min(d.Amount, p.MaxBetAmount))
	return d
}

func conformCall(d Decision, p combat.Permissions) Decision {
	if p.CanCall {
		return Decision{Action: combat.Call, Reasoning: d.Reasoning}
	}
	return Decision{Action: combat.Fold, Reasoning: d.Reasoning}
}
