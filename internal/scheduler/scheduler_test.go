package scheduler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deciderFunc func(st combat.State, side combat.Side) (policy.Decision, error)

func (f deciderFunc) Decide(st combat.State, side combat.Side) (policy.Decision, error) {
	return f(st, side)
}

type countingDecider struct {
	calls    atomic.Int32
	decision policy.Decision
	err      error
	panics   bool
}

func (c *countingDecider) Decide(st combat.State, side combat.Side) (policy.Decision, error) {
	c.calls.Add(1)
	if c.panics {
		panic("evaluator exploded")
	}
	return c.decision, c.err
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) observe(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []EventKind
	for _, e := range l.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// advance moves the mock clock forward by d, firing every event on the way.
func advance(ctx context.Context, t *testing.T, clk *quartz.Mock, d time.Duration) {
	t.Helper()
	for d > 0 {
		next, ok := clk.Peek()
		if !ok || next > d {
			clk.Advance(d).MustWait(ctx)
			return
		}
		_, w := clk.AdvanceNext()
		w.MustWait(ctx)
		d -= next
	}
}

func aiTurnState() combat.State {
	return combat.State{
		HandNumber:    1,
		Phase:         combat.PhaseMiddleBet,
		MinBet:        combat.DefaultMinBet,
		ActiveAgentID: "ai",
		TurnTimer:     30,
		MaxTurnTime:   30,
		Human: combat.AgentState{
			AgentID: "human",
			Pet:     combat.PetStats{CurrentHealth: 100, MaxHealth: 100, CurrentStamina: 10},
			IsReady: true,
		},
		AI: combat.AgentState{
			AgentID: "ai",
			Pet:     combat.PetStats{CurrentHealth: 100, MaxHealth: 100, CurrentStamina: 10},
		},
	}
}

func humanTurnState() combat.State {
	st := aiTurnState()
	st.ActiveAgentID = "human"
	st.Human.IsReady = false
	return st
}

type harness struct {
	ctx    context.Context
	clock  *quartz.Mock
	store  *fakeStore
	events *eventLog
	sched  *Scheduler
}

func newHarness(t *testing.T, st combat.State, decider Decider, opts ...Option) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		ctx:    ctx,
		clock:  quartz.NewMock(t),
		store:  newFakeStore(st),
		events: &eventLog{},
	}
	opts = append([]Option{WithObserver(h.events.observe)}, opts...)
	h.sched = New(h.store, decider, h.clock, testLogger(), opts...)
	t.Cleanup(h.sched.Stop)
	return h
}

func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	advance(h.ctx, t, h.clock, d)
}

func (h *harness) aiActions() []performed {
	var out []performed
	for _, a := range h.store.performedActions() {
		if a.AgentID == "ai" {
			out = append(out, a)
		}
	}
	return out
}

func TestScheduler_RespondsAfterDelay(t *testing.T) {
	decider := &countingDecider{decision: policy.Decision{Action: combat.Bet, Amount: 19}}
	h := newHarness(t, aiTurnState(), decider)

	h.sched.Sync()
	assert.Equal(t, GuardScheduled, h.sched.Guard())

	h.advance(t, 599*time.Millisecond)
	assert.Empty(t, h.aiActions(), "must not act before the response delay")

	h.advance(t, time.Millisecond)
	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Bet, actions[0].Action)
	assert.Equal(t, 19, actions[0].Amount)
	assert.Equal(t, GuardExecuting, h.sched.Guard())
	assert.Equal(t, []EventKind{EventAIDecision}, h.events.kinds())

	d, ok := h.sched.LastDecision()
	require.True(t, ok)
	assert.Equal(t, combat.Bet, d.Action)

	h.advance(t, 100*time.Millisecond)
	assert.Equal(t, GuardIdle, h.sched.Guard())
	assert.Equal(t, 1, h.store.closeCount(), "both agents ready after the response")
}

func TestScheduler_FollowUpSkipsCloseWhenHumanNotReady(t *testing.T) {
	st := aiTurnState()
	st.Human.IsReady = false
	h := newHarness(t, st, &countingDecider{decision: policy.Decision{Action: combat.Bet, Amount: 5}})

	h.sched.Sync()
	h.advance(t, 700*time.Millisecond)

	assert.Len(t, h.aiActions(), 1)
	assert.Equal(t, 0, h.store.closeCount())
	assert.Equal(t, GuardIdle, h.sched.Guard())
}

func TestScheduler_CallsCarryNoAmount(t *testing.T) {
	st := aiTurnState()
	st.CurrentBet = 10
	h := newHarness(t, st, &countingDecider{decision: policy.Decision{Action: combat.Call, Amount: 99}})

	h.sched.Sync()
	h.advance(t, 600*time.Millisecond)

	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Call, actions[0].Action)
	assert.Equal(t, 0, actions[0].Amount)
}

func TestScheduler_HumanActsWhileResponsePending(t *testing.T) {
	decider := &countingDecider{decision: policy.Decision{Action: combat.Check}}
	h := newHarness(t, aiTurnState(), decider)

	h.sched.Sync()
	// the turn moves on without the scheduler hearing about it
	h.store.mutate(func(s *combat.State) {
		s.ActiveAgentID = "human"
		s.ActionCount++
	})

	h.advance(t, time.Second)

	assert.Empty(t, h.aiActions())
	assert.Zero(t, decider.calls.Load(), "stale timer must abort before deciding")
	assert.Equal(t, GuardIdle, h.sched.Guard())
}

func TestScheduler_SyncCancelsResponseForOldTurn(t *testing.T) {
	decider := &countingDecider{decision: policy.Decision{Action: combat.Check}}
	h := newHarness(t, aiTurnState(), decider)

	h.sched.Sync()
	h.advance(t, 300*time.Millisecond)

	// a new opportunity for the opponent in the next phase
	h.store.mutate(func(s *combat.State) {
		s.Phase = combat.PhaseLateBet
		s.ActionCount += 2
		s.Human.IsReady = false
	})
	h.sched.Sync()

	h.advance(t, 300*time.Millisecond)
	assert.Empty(t, h.aiActions(), "delay restarts for the new turn")

	h.advance(t, 300*time.Millisecond)
	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.PhaseLateBet, actions[0].Turn.Phase)
}

func TestScheduler_DropsDecisionWhenTurnChangesWhileDeciding(t *testing.T) {
	var store *fakeStore
	decider := deciderFunc(func(st combat.State, side combat.Side) (policy.Decision, error) {
		store.mutate(func(s *combat.State) {
			s.ActiveAgentID = "human"
			s.ActionCount++
		})
		return policy.Decision{Action: combat.Bet, Amount: 10}, nil
	})
	h := newHarness(t, aiTurnState(), decider)
	store = h.store

	h.sched.Sync()
	h.advance(t, time.Second)

	assert.Empty(t, h.aiActions())
	assert.Equal(t, GuardIdle, h.sched.Guard())
}

func TestScheduler_NoResponseOutsideBetting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*combat.State)
	}{
		{"setup phase", func(s *combat.State) { s.Phase = combat.PhaseSetup }},
		{"settlement", func(s *combat.State) { s.Phase = combat.PhaseSettlement }},
		{"fold winner", func(s *combat.State) { s.FoldWinner = "human" }},
		{"all-in showdown", func(s *combat.State) { s.IsAllInShowdown = true }},
		{"human turn", func(s *combat.State) { s.ActiveAgentID = "human" }},
		{"nobody's turn", func(s *combat.State) { s.ActiveAgentID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := aiTurnState()
			tt.mutate(&st)
			h := newHarness(t, st, &countingDecider{decision: policy.Decision{Action: combat.Check}})

			h.sched.Sync()
			assert.Equal(t, GuardIdle, h.sched.Guard())
			h.advance(t, time.Second)
			assert.Empty(t, h.aiActions())
		})
	}
}

func TestScheduler_GateSuppressesResponse(t *testing.T) {
	gate := combat.NewLatch(true)
	h := newHarness(t, aiTurnState(), &countingDecider{decision: policy.Decision{Action: combat.Check}}, WithGate(gate))

	h.sched.Sync()
	assert.Equal(t, GuardIdle, h.sched.Guard(), "held gate blocks scheduling")

	gate.Release()
	h.sched.Sync()
	assert.Equal(t, GuardScheduled, h.sched.Guard())

	gate.Hold()
	h.advance(t, time.Second)
	assert.Empty(t, h.aiActions(), "gate is checked again at fire time")
	assert.Equal(t, GuardIdle, h.sched.Guard())
}

func TestScheduler_TimeoutCallsForCappedAmount(t *testing.T) {
	st := humanTurnState()
	st.CurrentBet = 10
	st.TurnTimer = 3
	st.Human.Pet.CurrentHealth = 3
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.advance(t, 2*time.Second)
	assert.Empty(t, h.store.performedActions())
	assert.Equal(t, []int{2, 1}, h.store.turnTimers())

	h.advance(t, time.Second)
	actions := h.store.performedActions()
	require.Len(t, actions, 1)
	assert.Equal(t, performed{AgentID: "human", Action: combat.Call, Amount: 3, Turn: st.TurnKey()}, actions[0])

	ev := h.events.last()
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, 10, ev.Permissions.ToCall)
	assert.Equal(t, 3, ev.Permissions.CallAmount)
	assert.True(t, ev.Permissions.IsAllIn)
	assert.Equal(t, ev.Decision.Amount, actions[0].Amount, "announcement and action agree")
}

func TestScheduler_TimeoutChecksWithoutBet(t *testing.T) {
	st := humanTurnState()
	st.TurnTimer = 1
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.advance(t, time.Second)

	actions := h.store.performedActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Check, actions[0].Action)
}

func TestScheduler_TimeoutFoldsWhenNothingLeftToCall(t *testing.T) {
	st := humanTurnState()
	st.CurrentBet = 10
	st.TurnTimer = 1
	st.Human.Pet.CurrentHealth = 0
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.advance(t, time.Second)

	actions := h.store.performedActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Fold, actions[0].Action)
	assert.False(t, h.events.last().Permissions.CanCheck)
}

func TestScheduler_TimeoutReadsFreshState(t *testing.T) {
	st := humanTurnState()
	st.TurnTimer = 2
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.advance(t, time.Second)

	// the opponent's bet lands in the same turn opportunity without a sync
	h.store.mutate(func(s *combat.State) {
		s.CurrentBet = 20
	})
	h.advance(t, time.Second)

	actions := h.store.performedActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Call, actions[0].Action)
	assert.Equal(t, 20, actions[0].Amount)
}

func TestScheduler_CountdownRestartsForNewTurn(t *testing.T) {
	st := humanTurnState()
	st.TurnTimer = 5
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.advance(t, 2*time.Second)

	h.store.mutate(func(s *combat.State) {
		s.ActionCount += 2
		s.TurnTimer = 5
	})
	h.sched.Sync()
	h.advance(t, time.Second)

	assert.Equal(t, []int{4, 3, 4}, h.store.turnTimers())
}

func TestScheduler_CountdownStopsWhenTurnPasses(t *testing.T) {
	st := humanTurnState()
	st.TurnTimer = 2
	h := newHarness(t, st, &countingDecider{})

	h.sched.Sync()
	h.store.mutate(func(s *combat.State) {
		s.ActiveAgentID = "ai"
		s.ActionCount++
	})
	h.advance(t, 5*time.Second)

	assert.Empty(t, h.store.turnTimers())
	assert.Empty(t, h.store.performedActions())
}

func TestScheduler_StuckTurnForcesOneDecision(t *testing.T) {
	decider := &countingDecider{decision: policy.Decision{Action: combat.Call}}
	st := aiTurnState()
	st.CurrentBet = 10
	h := newHarness(t, st, decider)

	// no Sync: the primary response path never scheduled anything
	h.sched.Start(h.ctx)

	// the 1.5s poll sees the turn stuck since 0s and rechecks at 2s
	h.advance(t, 1999*time.Millisecond)
	assert.Empty(t, h.aiActions())

	h.advance(t, 501*time.Millisecond)
	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Call, actions[0].Action)
	assert.Equal(t, EventStuckRecovered, h.events.last().Kind)

	calls := h.store.callLog()
	idx := -1
	for i, c := range calls {
		if strings.HasPrefix(c, "perform:ai") {
			idx = i
		}
	}
	require.Greater(t, idx, 0)
	assert.Equal(t, "state", calls[idx-1], "fresh read right before acting")

	h.advance(t, 10*time.Second)
	assert.Len(t, h.aiActions(), 1)
}

func TestScheduler_StuckWatchdogQuietWhenHealthy(t *testing.T) {
	h := newHarness(t, aiTurnState(), &countingDecider{decision: policy.Decision{Action: combat.Check}})
	h.sched.Start(h.ctx)
	h.sched.Sync()

	h.advance(t, 10*time.Second)

	assert.Len(t, h.aiActions(), 1)
	assert.NotContains(t, h.events.kinds(), EventStuckRecovered)
}

func TestScheduler_StuckTimestampResets(t *testing.T) {
	h := newHarness(t, aiTurnState(), &countingDecider{decision: policy.Decision{Action: combat.Check}})
	h.sched.Start(h.ctx)

	h.advance(t, time.Second)
	h.store.mutate(func(s *combat.State) { s.ActiveAgentID = "human" })
	// 1.5s sees the condition cleared
	h.advance(t, time.Second)
	h.store.mutate(func(s *combat.State) { s.ActiveAgentID = "ai" })

	// observed again at 3.0s, so the clock restarts there rather than at 0s
	h.advance(t, 2900*time.Millisecond)
	assert.Empty(t, h.aiActions())

	h.advance(t, 200*time.Millisecond)
	require.Len(t, h.aiActions(), 1)
	assert.Equal(t, EventStuckRecovered, h.events.last().Kind)

	h.advance(t, 5*time.Second)
	assert.Len(t, h.aiActions(), 1)
}

func TestScheduler_StuckClockStartsWhenGuardIdles(t *testing.T) {
	st := aiTurnState()
	st.CurrentBet = 10
	decider := &countingDecider{err: errors.New("evaluator offline")}
	h := newHarness(t, st, decider)
	h.sched.Start(h.ctx)
	h.sched.Sync()

	// the response fails at 0.6s, so the turn counts as stuck from then
	h.advance(t, 2500*time.Millisecond)
	assert.Empty(t, h.aiActions())

	h.advance(t, 200*time.Millisecond)
	require.Len(t, h.aiActions(), 1)
	assert.Equal(t, EventStuckRecovered, h.events.last().Kind)
}

func TestScheduler_PolicyFailureLeavesTurnForWatchdog(t *testing.T) {
	st := aiTurnState()
	st.CurrentBet = 10
	decider := &countingDecider{err: errors.New("evaluator offline")}
	h := newHarness(t, st, decider)
	h.sched.Start(h.ctx)
	h.sched.Sync()

	h.advance(t, time.Second)
	assert.Empty(t, h.aiActions())
	assert.Equal(t, GuardIdle, h.sched.Guard())

	h.advance(t, 4*time.Second)
	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Call, actions[0].Action, "fallback calls an affordable bet")
	assert.Equal(t, EventStuckRecovered, h.events.last().Kind)
}

func TestScheduler_PolicyPanicIsContained(t *testing.T) {
	decider := &countingDecider{panics: true}
	h := newHarness(t, aiTurnState(), decider)
	h.sched.Start(h.ctx)
	h.sched.Sync()

	h.advance(t, 5*time.Second)

	actions := h.aiActions()
	require.Len(t, actions, 1)
	assert.Equal(t, combat.Check, actions[0].Action)
	assert.GreaterOrEqual(t, decider.calls.Load(), int32(2))
}

func TestScheduler_GuardWatchdogResetsStuckGuard(t *testing.T) {
	st := humanTurnState()
	st.MaxTurnTime, st.TurnTimer = 0, 0
	h := newHarness(t, st, &countingDecider{})

	// a scheduled response whose timer was lost
	h.sched.mu.Lock()
	h.sched.setGuardLocked(GuardScheduled)
	h.sched.mu.Unlock()
	h.sched.Start(h.ctx)

	h.advance(t, 4*time.Second)
	assert.Equal(t, GuardScheduled, h.sched.Guard())

	h.advance(t, time.Second)
	assert.Equal(t, GuardIdle, h.sched.Guard())
	ev := h.events.last()
	assert.Equal(t, EventGuardReset, ev.Kind)
	assert.Equal(t, 5*time.Second, ev.Held)
}

func TestScheduler_AtMostOneActionPerTurn(t *testing.T) {
	h := newHarness(t, aiTurnState(), &countingDecider{decision: policy.Decision{Action: combat.Check}})
	// the store accepts actions but never moves the turn on
	h.store.swallow = true
	h.sched.Start(h.ctx)

	for i := 0; i < 40; i++ {
		h.sched.Sync()
		h.advance(t, 500*time.Millisecond)
	}

	assert.Len(t, h.aiActions(), 1)
}

func TestScheduler_RejectedActionClearsGuard(t *testing.T) {
	h := newHarness(t, aiTurnState(), &countingDecider{decision: policy.Decision{Action: combat.Check}})
	h.store.rejectAI = errors.New("not your turn")

	h.sched.Sync()
	h.advance(t, time.Second)

	assert.Equal(t, GuardIdle, h.sched.Guard())
	assert.Empty(t, h.aiActions())
}

func TestScheduler_StopCancelsEverything(t *testing.T) {
	decider := &countingDecider{decision: policy.Decision{Action: combat.Check}}
	h := newHarness(t, aiTurnState(), decider)
	h.sched.Start(h.ctx)
	h.sched.Sync()
	require.Equal(t, GuardScheduled, h.sched.Guard())

	h.sched.Stop()
	assert.Equal(t, GuardIdle, h.sched.Guard())

	h.advance(t, 10*time.Second)
	assert.Empty(t, h.aiActions())
	assert.Zero(t, decider.calls.Load())

	h.sched.Sync()
	assert.Equal(t, GuardIdle, h.sched.Guard(), "stopped scheduler ignores syncs")
}

func TestTiming_Validate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())

	bad := DefaultTiming()
	bad.GuardTimeout = 500 * time.Millisecond
	assert.Error(t, bad.Validate())

	bad = DefaultTiming()
	bad.StuckPoll = 0
	assert.Error(t, bad.Validate())
}

func TestTiming_Scale(t *testing.T) {
	fast := DefaultTiming().Scale(0.1)
	assert.Equal(t, 60*time.Millisecond, fast.ResponseDelay)
	assert.Equal(t, 10*time.Millisecond, fast.FollowUpDelay)
	assert.Equal(t, 500*time.Millisecond, fast.GuardTimeout)
	assert.NoError(t, fast.Validate())

	tiny := DefaultTiming().Scale(0.0001)
	assert.Equal(t, time.Millisecond, tiny.FollowUpDelay, "delays never drop below a millisecond")
}
