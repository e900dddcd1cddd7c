package tui

import (
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name    string
	action  combat.Action
	amount  int
	indexes []int
}

type fakeDriver struct {
	st      combat.State
	perms   combat.Permissions
	history []store.Entry
	err     error
	calls   []call
}

func (f *fakeDriver) State() combat.State             { return f.st }
func (f *fakeDriver) Permissions() combat.Permissions { return f.perms }
func (f *fakeDriver) History() []store.Entry          { return f.history }

func (f *fakeDriver) LastDecision() (policy.Decision, bool) {
	return policy.Decision{Action: combat.Raise, Amount: 10, Reasoning: "strong hand"}, true
}

func (f *fakeDriver) Act(a combat.Action, amount int) error {
	f.calls = append(f.calls, call{name: "act", action: a, amount: amount})
	return f.err
}

func (f *fakeDriver) Ready() error {
	f.calls = append(f.calls, call{name: "ready"})
	return f.err
}

func (f *fakeDriver) Mulligan(idx []int) error {
	f.calls = append(f.calls, call{name: "mulligan", indexes: idx})
	return f.err
}

func (f *fakeDriver) NextHand() error {
	f.calls = append(f.calls, call{name: "next"})
	return f.err
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"check", Command{Kind: CmdAction, Action: combat.Check}},
		{"  CALL ", Command{Kind: CmdAction, Action: combat.Call}},
		{"f", Command{Kind: CmdAction, Action: combat.Fold}},
		{"bet 15", Command{Kind: CmdAction, Action: combat.Bet, Amount: 15}},
		{"b 5", Command{Kind: CmdAction, Action: combat.Bet, Amount: 5}},
		{"raise 20", Command{Kind: CmdAction, Action: combat.Raise, Amount: 20}},
		{"ready", Command{Kind: CmdReady}},
		{"keep", Command{Kind: CmdKeep}},
		{"mulligan 1 2", Command{Kind: CmdMulligan, Indexes: []int{0, 1}}},
		{"m 2", Command{Kind: CmdMulligan, Indexes: []int{1}}},
		{"next", Command{Kind: CmdNext}},
		{"?", Command{Kind: CmdHelp}},
		{"quit", Command{Kind: CmdQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"dance",
		"bet",
		"bet lots",
		"raise -5",
		"call 5",
		"mulligan",
		"mulligan 3",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCommand(input)
			assert.Error(t, err)
		})
	}
}

func typeLine(m *Model, line string) {
	m.input.SetValue(line)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestEnterDispatchesCommands(t *testing.T) {
	d := &fakeDriver{}
	m := NewModel(d, nil, testLogger())

	typeLine(m, "raise 15")
	typeLine(m, "ready")
	typeLine(m, "mulligan 2")
	typeLine(m, "keep")
	typeLine(m, "next")

	assert.Equal(t, []call{
		{name: "act", action: combat.Raise, amount: 15},
		{name: "ready"},
		{name: "mulligan", indexes: []int{1}},
		{name: "mulligan"},
		{name: "next"},
	}, d.calls)
	assert.Empty(t, m.input.Value())
	assert.False(t, m.statusErr)
}

func TestRejectedCommandShowsError(t *testing.T) {
	d := &fakeDriver{err: errors.New("not your turn")}
	m := NewModel(d, nil, testLogger())

	typeLine(m, "check")
	assert.True(t, m.statusErr)
	assert.Equal(t, "not your turn", m.status)

	typeLine(m, "juggle")
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "unknown command")
	assert.Len(t, d.calls, 1)
}

func TestQuitCommand(t *testing.T) {
	m := NewModel(&fakeDriver{}, nil, testLogger())
	m.input.SetValue("quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestChangeRefreshesState(t *testing.T) {
	d := &fakeDriver{}
	changes := make(chan struct{}, 1)
	m := NewModel(d, changes, testLogger())
	assert.Equal(t, 0, m.state.HandNumber)

	d.st = combat.State{HandNumber: 4, Phase: combat.PhaseMiddleBet, Pot: 30}
	d.history = []store.Entry{{Hand: 4, Phase: combat.PhaseMiddleBet, AgentID: "ai", Action: combat.Check}}
	m.Update(changedMsg{})

	assert.Equal(t, 4, m.state.HandNumber)
	require.Len(t, m.logLines, 1)
	assert.Contains(t, m.logLines[0], "ai check")
}

func TestViewRendersTable(t *testing.T) {
	DisableColor()
	d := &fakeDriver{
		st: combat.State{
			HandNumber:    2,
			Phase:         combat.PhaseOpeningBet,
			Pot:           15,
			CurrentBet:    10,
			ActiveAgentID: "human",
			TurnTimer:     27,
			Human: combat.AgentState{
				AgentID:   "human",
				Pet:       combat.PetStats{CurrentHealth: 95, MaxHealth: 100, CurrentStamina: 10},
				HoleCards: combat.MustParseCards("AsKd"),
			},
			AI: combat.AgentState{
				AgentID:   "ai",
				Pet:       combat.PetStats{CurrentHealth: 90, MaxHealth: 100, CurrentStamina: 10},
				HoleCards: combat.MustParseCards("7c2d"),
			},
			Community: combat.MustParseCards("Kh9s4c"),
		},
		perms: combat.Permissions{
			IsMyTurnToAct: true, CanCall: true, CallAmount: 5, CanRaise: true, CanFold: true,
			MinBet: 5, MaxBetAmount: 90,
		},
	}
	m := NewModel(d, nil, testLogger())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	view := m.View()
	assert.Contains(t, view, "Hand 2")
	assert.Contains(t, view, "human to act (27s)")
	assert.Contains(t, view, "[As Kd]")
	assert.Contains(t, view, "[?? ??]", "opponent cards hidden before showdown")
	assert.NotContains(t, view, "7c")
	assert.Contains(t, view, "[Kh 9s 4c]")
	assert.Contains(t, view, "[call 5]")
	assert.Contains(t, view, "[raise 5-90]")
	assert.Contains(t, view, "Opponent: raise 10")
}

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		name  string
		st    combat.State
		perms combat.Permissions
		want  string
	}{
		{"mulligan", combat.State{Phase: combat.PhaseMulligan}, combat.Permissions{}, "[keep] [mulligan 1 2]"},
		{"setup", combat.State{Phase: combat.PhaseSetup}, combat.Permissions{}, "[ready]"},
		{"setup ready", combat.State{Phase: combat.PhaseSetup, Human: combat.AgentState{IsReady: true}}, combat.Permissions{}, "waiting for the setup window"},
		{"settled", combat.State{Phase: combat.PhaseSettlement}, combat.Permissions{}, "[next]"},
		{"opponent turn", combat.State{Phase: combat.PhaseLateBet}, combat.Permissions{}, "waiting for opponent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, availableActions(tt.st, tt.perms))
		})
	}
}
