// Package tui is the terminal front end for the human seat.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/store"
)

// Driver is the session surface the UI plays through.
type Driver interface {
	State() combat.State
	Permissions() combat.Permissions
	LastDecision() (policy.Decision, bool)
	History() []store.Entry
	Act(action combat.Action, amount int) error
	Ready() error
	Mulligan(indexes []int) error
	NextHand() error
}

// changedMsg is delivered when the session reports a change.
type changedMsg struct{}

// Model is the bubbletea model for one combat.
type Model struct {
	driver  Driver
	changes <-chan struct{}
	logger  *log.Logger

	logViewport viewport.Model
	input       textinput.Model
	focusedPane int // 0 = log, 1 = input

	state    combat.State
	perms    combat.Permissions
	decision policy.Decision
	decided  bool
	logLines []string

	status    string
	statusErr bool

	width    int
	height   int
	quitting bool
}

// NewModel creates a model. changes is the session's notification channel.
func NewModel(driver Driver, changes <-chan struct{}, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)

	ti := textinput.New()
	ti.Placeholder = "check, call, bet 10, raise 10, fold"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 64
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)

	m := &Model{
		driver:      driver,
		changes:     changes,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		input:       ti,
		focusedPane: 1,
	}
	m.refresh()
	return m
}

// Run runs the program until the user quits or ctx is done.
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

func (m *Model) listen() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-m.changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case changedMsg:
		m.refresh()
		cmds = append(cmds, m.listen())

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.input.Focus()
			} else {
				m.focusedPane = 0
				m.input.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				line := strings.TrimSpace(m.input.Value())
				m.input.SetValue("")
				if m.execute(line) {
					m.quitting = true
					return m, tea.Quit
				}
				m.refresh()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// execute runs one input line and reports whether the user asked to quit.
func (m *Model) execute(line string) bool {
	if line == "" {
		return false
	}
	cmd, err := ParseCommand(line)
	if err != nil {
		m.setStatus(err.Error(), true)
		return false
	}

	switch cmd.Kind {
	case CmdQuit:
		return true
	case CmdHelp:
		m.setStatus(helpText, false)
		return false
	case CmdReady:
		err = m.driver.Ready()
	case CmdKeep:
		err = m.driver.Mulligan(nil)
	case CmdMulligan:
		err = m.driver.Mulligan(cmd.Indexes)
	case CmdNext:
		err = m.driver.NextHand()
	case CmdAction:
		err = m.driver.Act(cmd.Action, cmd.Amount)
	}
	if err != nil {
		m.logger.Debug("Command rejected", "input", line, "err", err)
		m.setStatus(err.Error(), true)
		return false
	}
	m.setStatus("ok: "+line, false)
	return false
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

// refresh pulls a fresh snapshot from the driver.
func (m *Model) refresh() {
	m.state = m.driver.State()
	m.perms = m.driver.Permissions()
	m.decision, m.decided = m.driver.LastDecision()

	history := m.driver.History()
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, fmt.Sprintf("#%d %-10s %s", e.Hand, e.Phase, e))
	}
	atBottom := m.logViewport.AtBottom()
	m.logLines = lines
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	if atBottom {
		m.logViewport.GotoBottom()
	}
}

func (m *Model) resize() {
	w := max(1, m.width-2)
	h := max(1, m.height-lipgloss.Height(m.renderTable())-lipgloss.Height(m.renderInput())-6)
	m.logViewport.Width = w
	m.logViewport.Height = h
	m.logViewport.GotoBottom()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	w := max(1, m.width-2)

	logStyle, inputStyle := paneStyle, focusedPaneStyle
	if m.focusedPane == 0 {
		logStyle, inputStyle = focusedPaneStyle, paneStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		paneStyle.Width(w).Render(m.renderTable()),
		logStyle.Width(w).Render(m.logViewport.View()),
		inputStyle.Width(w).Render(m.renderInput()),
	)
}

func (m *Model) renderTable() string {
	st := m.state
	var b strings.Builder

	header := fmt.Sprintf("Hand %d  %s", st.HandNumber, st.Phase)
	if st.Phase.IsBetting() && st.ActiveAgentID != "" {
		header += fmt.Sprintf("  %s to act (%ds)", st.ActiveAgentID, st.TurnTimer)
	}
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n\n")

	b.WriteString(renderAgent("You", st.Human, formatCards(st.Human.HoleCards)))
	b.WriteString("\n")
	opp := "[?? ??]"
	if st.Phase == combat.PhaseSettlement && st.FoldWinner == "" && len(st.AI.HoleCards) > 0 {
		opp = formatCards(st.AI.HoleCards)
	}
	b.WriteString(renderAgent("Opponent", st.AI, opp))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Board: %s  ", formatCards(st.Community))
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: %d", st.Pot)))
	if st.CurrentBet > 0 {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("  Bet: %d", st.CurrentBet)))
	}
	if st.IsAllInShowdown && st.Phase != combat.PhaseSettlement {
		b.WriteString(ErrorStyle.Render("  ALL IN"))
	}
	if m.decided {
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("Opponent: " + m.decision.String()))
	}
	if st.Phase == combat.PhaseSettlement && st.HandNumber > 0 {
		b.WriteString("\n")
		b.WriteString(SuccessStyle.Render(settlementLine(st)))
	}
	return b.String()
}

func renderAgent(label string, a combat.AgentState, cards string) string {
	ready := ""
	if a.IsReady {
		ready = SuccessStyle.Render(" ready")
	}
	return fmt.Sprintf("%s %s  %s  %s  committed %d%s",
		PetNameStyle.Render(label),
		cards,
		HealthStyle.Render(fmt.Sprintf("HP %d/%d", a.Pet.CurrentHealth, a.Pet.MaxHealth)),
		StaminaStyle.Render(fmt.Sprintf("ST %d", a.Pet.CurrentStamina)),
		a.HPCommitted, ready)
}

func settlementLine(st combat.State) string {
	switch {
	case st.Draw:
		return "Draw. Type next to deal again."
	case st.FoldWinner != "":
		return fmt.Sprintf("%s wins by fold. Type next to deal again.", st.FoldWinner)
	case st.Winner != "":
		return fmt.Sprintf("%s wins the showdown. Type next to deal again.", st.Winner)
	}
	return "Type next to deal."
}

func (m *Model) renderInput() string {
	var b strings.Builder
	b.WriteString(ActionsStyle.Render("Actions: " + availableActions(m.state, m.perms)))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(ErrorStyle.Render(m.status))
		} else {
			b.WriteString(InfoStyle.Render(m.status))
		}
	}
	return b.String()
}

// availableActions lists what the human can type right now.
func availableActions(st combat.State, p combat.Permissions) string {
	switch st.Phase {
	case combat.PhaseMulligan:
		return "[keep] [mulligan 1 2]"
	case combat.PhaseSetup:
		if st.Human.IsReady {
			return "waiting for the setup window"
		}
		return "[ready]"
	case combat.PhaseSettlement:
		return "[next]"
	}
	if !p.IsMyTurnToAct {
		return "waiting for opponent"
	}

	var actions []string
	if p.CanCheck {
		actions = append(actions, SuccessStyle.Render("[check]"))
	}
	if p.CanCall {
		label := fmt.Sprintf("[call %d]", p.CallAmount)
		if p.IsAllIn {
			label = fmt.Sprintf("[call %d all in]", p.CallAmount)
		}
		actions = append(actions, SuccessStyle.Render(label))
	}
	if p.CanBet {
		actions = append(actions, WarningStyle.Render(fmt.Sprintf("[bet %d-%d]", p.MinBet, p.MaxBetAmount)))
	}
	if p.CanRaise {
		actions = append(actions, WarningStyle.Render(fmt.Sprintf("[raise %d-%d]", p.MinBet, p.MaxBetAmount)))
	}
	if p.CanFold {
		actions = append(actions, ErrorStyle.Render("[fold]"))
	}
	if len(actions) == 0 {
		return ErrorStyle.Render("[fold]")
	}
	return strings.Join(actions, " ")
}

func formatCards(cards []combat.Card) string {
	if len(cards) == 0 {
		return "[]"
	}
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		if c.Suit == combat.Hearts || c.Suit == combat.Diamonds {
			out = append(out, RedCardStyle.Render(c.String()))
		} else {
			out = append(out, BlackCardStyle.Render(c.String()))
		}
	}
	return "[" + strings.Join(out, " ") + "]"
}
