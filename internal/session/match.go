package session

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/matchid"
	"github.com/lox/petpoker/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultHandPause is the wait between a settled hand and the next deal.
const DefaultHandPause = 2 * time.Second

// HandResult summarizes one settled hand.
type HandResult struct {
	Hand        int
	Winner      string
	Draw        bool
	ByFold      bool
	AllIn       bool
	HumanOpened bool
	HumanHealth int
	AIHealth    int
	// HumanDelta is the human's health change over the hand.
	HumanDelta int
}

// Result summarizes a match.
type Result struct {
	MatchID     string
	Hands       []HandResult
	Winner      string
	HumanHealth int
	AIHealth    int
	Duration    time.Duration
}

// Match plays hands until a pet falls or the hand limit is reached.
type Match struct {
	session   *Session
	clock     quartz.Clock
	logger    *log.Logger
	ids       *matchid.Generator
	handLimit int
	pause     time.Duration
}

type MatchOption func(*Match)

// WithHandLimit stops the match after n hands. Zero means no limit.
func WithHandLimit(n int) MatchOption {
	return func(m *Match) { m.handLimit = n }
}

func WithHandPause(d time.Duration) MatchOption {
	return func(m *Match) { m.pause = d }
}

func WithIDs(g *matchid.Generator) MatchOption {
	return func(m *Match) { m.ids = g }
}

func NewMatch(s *Session, clock quartz.Clock, logger *log.Logger, opts ...MatchOption) *Match {
	m := &Match{
		session: s,
		clock:   clock,
		logger:  logger.WithPrefix("match"),
		pause:   DefaultHandPause,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ids == nil {
		m.ids = matchid.New(clock, nil)
	}
	return m
}

// Play runs the session and deals hands until the match ends.
func (m *Match) Play(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		res     Result
		playErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := m.session.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		res, playErr = m.loop(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, playErr
}

func (m *Match) loop(ctx context.Context) (Result, error) {
	changes, unsubscribe := m.session.Subscribe()
	defer unsubscribe()

	start := m.clock.Now()
	res := Result{MatchID: m.ids.Next()}
	finish := func(st combat.State) Result {
		res.HumanHealth = st.Human.Pet.CurrentHealth
		res.AIHealth = st.AI.Pet.CurrentHealth
		switch {
		case res.HumanHealth > res.AIHealth:
			res.Winner = st.Human.AgentID
		case res.AIHealth > res.HumanHealth:
			res.Winner = st.AI.AgentID
		}
		res.Duration = m.clock.Since(start)
		m.logger.Info("Match over", "id", res.MatchID, "hands", len(res.Hands), "winner", res.Winner,
			"human_hp", res.HumanHealth, "ai_hp", res.AIHealth)
		return res
	}

	m.logger.Info("Match started", "id", res.MatchID, "hand_limit", m.handLimit)
	if err := m.session.NextHand(); err != nil {
		return res, err
	}
	first := m.session.State()
	hand, startHP := first.HandNumber, first.Human.Pet.CurrentHealth

	for {
		st := m.session.State()
		if st.HandNumber == hand && st.Phase == combat.PhaseSettlement {
			hr := HandResult{
				Hand:        st.HandNumber,
				Winner:      st.Winner,
				Draw:        st.Draw,
				ByFold:      st.FoldWinner != "",
				AllIn:       st.IsAllInShowdown,
				HumanOpened: st.OpenerIsHuman,
				HumanHealth: st.Human.Pet.CurrentHealth,
				AIHealth:    st.AI.Pet.CurrentHealth,
				HumanDelta:  st.Human.Pet.CurrentHealth - startHP,
			}
			res.Hands = append(res.Hands, hr)
			m.logger.Debug("Hand settled", "hand", hr.Hand, "winner", hr.Winner, "draw", hr.Draw, "fold", hr.ByFold)

			if m.handLimit > 0 && len(res.Hands) >= m.handLimit {
				return finish(st), nil
			}
			if err := m.wait(ctx); err != nil {
				return res, err
			}
			if err := m.session.NextHand(); err != nil {
				if errors.Is(err, store.ErrCombatOver) {
					return finish(m.session.State()), nil
				}
				return res, err
			}
			next := m.session.State()
			hand, startHP = next.HandNumber, next.Human.Pet.CurrentHealth
			continue
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-changes:
		}
	}
}

func (m *Match) wait(ctx context.Context) error {
	if m.pause <= 0 {
		return ctx.Err()
	}
	t := m.clock.NewTimer(m.pause, "match", "pause")
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
