package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 5, c.Combat.MinBet)
	assert.Equal(t, 10, c.Combat.BigBlind)
	assert.Equal(t, "medium", c.Opponent.Difficulty)
	assert.Equal(t, 100, c.PetStats("human").CurrentHealth)
	assert.Equal(t, 10, c.PetStats("ai").CurrentStamina)
	assert.Equal(t, "localhost:8080", c.ServerAddress())
	assert.Equal(t, log.InfoLevel, c.LogLevel())

	timing, err := c.SchedulerTiming()
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultTiming(), timing)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petpoker.hcl")
	src := `
combat {
  min_bet       = 10
  max_turn_time = 20
  hand_limit    = 12
}

pet "ai" {
  name    = "Grumble"
  health  = 150
  stamina = 4
}

timing {
  response_delay = "250ms"
  setup_window   = "1s"
}

opponent {
  difficulty      = "hard"
  bluff_frequency = 0.3
}

log {
  level = "debug"
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	sc := c.Store()
	assert.Equal(t, 10, sc.MinBet)
	assert.Equal(t, 10, sc.SmallBlind, "small blind defaults to min bet")
	assert.Equal(t, 20, sc.BigBlind)
	assert.Equal(t, 20, sc.MaxTurnTime)
	assert.Equal(t, 12, c.Combat.HandLimit)

	ai := c.PetStats("ai")
	assert.Equal(t, 150, ai.CurrentHealth)
	assert.Equal(t, 150, ai.MaxHealth)
	assert.Equal(t, 4, ai.CurrentStamina)
	assert.Equal(t, 100, c.PetStats("human").CurrentHealth)

	timing, err := c.SchedulerTiming()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, timing.ResponseDelay)
	assert.Equal(t, 100*time.Millisecond, timing.FollowUpDelay)

	setup, allIn, err := c.PhaseTiming()
	require.NoError(t, err)
	assert.Equal(t, time.Second, setup)
	assert.Equal(t, 1500*time.Millisecond, allIn)

	pc, err := c.Policy()
	require.NoError(t, err)
	hard := policy.Preset(policy.Hard)
	assert.Equal(t, hard.Aggressiveness, pc.Aggressiveness)
	assert.Equal(t, 0.3, pc.BluffFrequency)

	assert.Equal(t, log.DebugLevel, c.LogLevel())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`combat {`), "broken.hcl")
	assert.Error(t, err)

	_, err = Parse([]byte(`combat { min_bet = "lots" }`), "typed.hcl")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad duration", `timing { stuck_poll = "soon" }`},
		{"guard shorter than response", `timing {
  response_delay = "5s"
  guard_timeout  = "2s"
}`},
		{"unknown difficulty", `opponent { difficulty = "nightmare" }`},
		{"bluff out of range", `opponent { bluff_frequency = 2 }`},
		{"unknown pet side", `pet "referee" {}`},
		{"duplicate pet", `
pet "ai" {}
pet "ai" {}
`},
		{"same agent ids", `combat {
  human_id = "x"
  ai_id    = "x"
}`},
		{"bad log level", `log { level = "chatty" }`},
		{"bad port", `server { port = 70000 }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.src), "test.hcl")
			require.NoError(t, err)
			assert.Error(t, c.Validate())
		})
	}
}
