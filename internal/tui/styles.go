package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// palette
var (
	colorInk    = lipgloss.Color("#FAFAFA")
	colorAccent = lipgloss.Color("#7D56F4")
	colorBlood  = lipgloss.Color("#FF6B6B")
	colorLeaf   = lipgloss.Color("#96CEB4")
	colorTeal   = lipgloss.Color("#4ECDC4")
	colorGold   = lipgloss.Color("#FFD700")
	colorSand   = lipgloss.Color("#FFEAA7")
	colorMuted  = lipgloss.Color("#626262")
	colorFocus  = lipgloss.Color("#04B575")
)

var (
	bold = lipgloss.NewStyle().Bold(true)

	HeaderStyle = bold.
			Foreground(colorInk).
			Background(colorAccent).
			Padding(0, 1)

	PetNameStyle   = bold.Foreground(colorLeaf)
	HealthStyle    = lipgloss.NewStyle().Foreground(colorBlood)
	StaminaStyle   = lipgloss.NewStyle().Foreground(colorTeal)
	ActionsStyle   = bold.Foreground(colorGold)
	RedCardStyle   = bold.Foreground(colorBlood)
	BlackCardStyle = bold.Foreground(colorInk)

	SuccessStyle = bold.Foreground(colorLeaf)
	ErrorStyle   = bold.Foreground(colorBlood)
	WarningStyle = bold.Foreground(colorSand)
	InfoStyle    = lipgloss.NewStyle().Foreground(colorMuted)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted)
	focusedPaneStyle = paneStyle.BorderForeground(colorFocus)
)

// DisableColor renders every style without colour, for --no-color and dumb
// terminals.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
