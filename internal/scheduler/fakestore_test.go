package scheduler

import (
	"fmt"
	"sync"

	"github.com/lox/petpoker/internal/combat"
)

type performed struct {
	AgentID string
	Action  combat.Action
	Amount  int
	Turn    combat.TurnKey
}

// fakeStore is a scripted combat.Store. By default an action hands the turn
// to the other agent and marks the actor ready.
type fakeStore struct {
	mu       sync.Mutex
	st       combat.State
	calls    []string
	actions  []performed
	timers   []int
	closes   int
	swallow  bool // accept actions without changing state
	rejectAI error
}

func newFakeStore(st combat.State) *fakeStore {
	return &fakeStore{st: st}
}

func (f *fakeStore) State() combat.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "state")
	return f.st.Clone()
}

func (f *fakeStore) PerformAction(agentID string, action combat.Action, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("perform:%s:%s", agentID, action))
	if agentID == f.st.AI.AgentID && f.rejectAI != nil {
		return f.rejectAI
	}
	f.actions = append(f.actions, performed{agentID, action, amount, f.st.TurnKey()})
	if f.swallow {
		return nil
	}
	f.st.ActionCount++
	if agentID == f.st.AI.AgentID {
		f.st.AI.IsReady = true
		f.st.ActiveAgentID = f.st.Human.AgentID
	} else {
		f.st.Human.IsReady = true
		f.st.ActiveAgentID = f.st.AI.AgentID
	}
	return nil
}

func (f *fakeStore) AdvancePhase() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Phase = f.st.Phase.Next()
	return nil
}

func (f *fakeStore) CloseBettingRoundIfReady() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "close")
	f.closes++
	return true, nil
}

func (f *fakeStore) SetReady(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if agentID == f.st.AI.AgentID {
		f.st.AI.IsReady = true
	} else {
		f.st.Human.IsReady = true
	}
	return nil
}

func (f *fakeStore) UpdateTurnTimer(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.TurnTimer = seconds
	f.timers = append(f.timers, seconds)
}

func (f *fakeStore) mutate(fn func(*combat.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.st)
}

func (f *fakeStore) performedActions() []performed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]performed(nil), f.actions...)
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) turnTimers() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.timers...)
}

func (f *fakeStore) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
