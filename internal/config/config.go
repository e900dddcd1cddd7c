// Package config loads petpoker settings from an HCL file.
//
// Every block is optional. A missing file yields the defaults.
//
//	combat {
//	  min_bet       = 5
//	  small_blind   = 5
//	  big_blind     = 10
//	  max_turn_time = 30
//	  hand_limit    = 50
//	}
//
//	pet "human" {
//	  health  = 100
//	  stamina = 10
//	}
//
//	timing {
//	  response_delay = "600ms"
//	  setup_window   = "2.5s"
//	}
//
//	opponent {
//	  difficulty      = "hard"
//	  bluff_frequency = 0.25
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/petpoker/internal/combat"
	"github.com/lox/petpoker/internal/equity"
	"github.com/lox/petpoker/internal/phases"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/scheduler"
	"github.com/lox/petpoker/internal/store"
)

// Config is the complete petpoker configuration.
type Config struct {
	Combat   *CombatSettings   `hcl:"combat,block"`
	Pets     []PetConfig       `hcl:"pet,block"`
	Timing   *TimingSettings   `hcl:"timing,block"`
	Opponent *OpponentSettings `hcl:"opponent,block"`
	Equity   *EquitySettings   `hcl:"equity,block"`
	Log      *LogSettings      `hcl:"log,block"`
	Server   *ServerSettings   `hcl:"server,block"`
}

// CombatSettings are the table rules.
type CombatSettings struct {
	HumanID      string `hcl:"human_id,optional"`
	AIID         string `hcl:"ai_id,optional"`
	MinBet       int    `hcl:"min_bet,optional"`
	SmallBlind   int    `hcl:"small_blind,optional"`
	BigBlind     int    `hcl:"big_blind,optional"`
	MaxTurnTime  int    `hcl:"max_turn_time,optional"`
	SkipMulligan bool   `hcl:"skip_mulligan,optional"`
	HandLimit    int    `hcl:"hand_limit,optional"`
}

// PetConfig describes the pet on one side, labelled "human" or "ai".
type PetConfig struct {
	Side    string `hcl:"side,label"`
	Name    string `hcl:"name,optional"`
	Health  int    `hcl:"health,optional"`
	Stamina int    `hcl:"stamina,optional"`
}

// TimingSettings are durations in time.ParseDuration syntax.
type TimingSettings struct {
	ResponseDelay  string `hcl:"response_delay,optional"`
	FollowUpDelay  string `hcl:"follow_up_delay,optional"`
	GuardTimeout   string `hcl:"guard_timeout,optional"`
	GuardPoll      string `hcl:"guard_poll,optional"`
	StuckThreshold string `hcl:"stuck_threshold,optional"`
	StuckPoll      string `hcl:"stuck_poll,optional"`
	CountdownTick  string `hcl:"countdown_tick,optional"`
	SetupWindow    string `hcl:"setup_window,optional"`
	AllInPacing    string `hcl:"all_in_pacing,optional"`
}

// OpponentSettings pick a difficulty preset and optionally override its knobs.
type OpponentSettings struct {
	Difficulty     string   `hcl:"difficulty,optional"`
	Aggressiveness *float64 `hcl:"aggressiveness,optional"`
	BluffFrequency *float64 `hcl:"bluff_frequency,optional"`
	Tightness      *float64 `hcl:"tightness,optional"`
}

type EquitySettings struct {
	Samples int   `hcl:"samples,optional"`
	Workers int   `hcl:"workers,optional"`
	Seed    int64 `hcl:"seed,optional"`
}

type LogSettings struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
}

type ServerSettings struct {
	Address string `hcl:"address,optional"`
	Port    int    `hcl:"port,optional"`
}

const (
	defaultHealth  = 100
	defaultStamina = 10
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from filename. A missing file is not an error.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	return decode(file.Body)
}

// Parse reads configuration from HCL source.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (*Config, error) {
	var c Config
	if diags := gohcl.DecodeBody(body, nil, &c); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	sc := store.DefaultConfig()
	if c.Combat == nil {
		c.Combat = &CombatSettings{}
	}
	cb := c.Combat
	if cb.HumanID == "" {
		cb.HumanID = sc.HumanID
	}
	if cb.AIID == "" {
		cb.AIID = sc.AIID
	}
	if cb.MinBet == 0 {
		cb.MinBet = sc.MinBet
	}
	if cb.SmallBlind == 0 {
		cb.SmallBlind = cb.MinBet
	}
	if cb.BigBlind == 0 {
		cb.BigBlind = 2 * cb.SmallBlind
	}
	if cb.MaxTurnTime == 0 {
		cb.MaxTurnTime = sc.MaxTurnTime
	}

	for _, side := range []string{"human", "ai"} {
		if c.pet(side) == nil {
			c.Pets = append(c.Pets, PetConfig{Side: side})
		}
	}
	for i := range c.Pets {
		p := &c.Pets[i]
		if p.Name == "" {
			p.Name = p.Side
		}
		if p.Health == 0 {
			p.Health = defaultHealth
		}
		if p.Stamina == 0 {
			p.Stamina = defaultStamina
		}
	}

	if c.Timing == nil {
		c.Timing = &TimingSettings{}
	}
	if c.Opponent == nil {
		c.Opponent = &OpponentSettings{}
	}
	if c.Opponent.Difficulty == "" {
		c.Opponent.Difficulty = policy.Medium.String()
	}
	if c.Equity == nil {
		c.Equity = &EquitySettings{}
	}
	if c.Equity.Samples == 0 {
		c.Equity.Samples = equity.DefaultSamples
	}
	if c.Log == nil {
		c.Log = &LogSettings{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

func (c *Config) pet(side string) *PetConfig {
	for i := range c.Pets {
		if c.Pets[i].Side == side {
			return &c.Pets[i]
		}
	}
	return nil
}

// Validate checks the configuration is playable.
func (c *Config) Validate() error {
	if err := c.Store().Validate(); err != nil {
		return fmt.Errorf("combat: %w", err)
	}
	if c.Combat.HandLimit < 0 {
		return fmt.Errorf("combat: hand_limit must not be negative, got %d", c.Combat.HandLimit)
	}

	seen := make(map[string]bool)
	for _, p := range c.Pets {
		if p.Side != "human" && p.Side != "ai" {
			return fmt.Errorf("pet %q: side must be human or ai", p.Side)
		}
		if seen[p.Side] {
			return fmt.Errorf("pet %q: defined twice", p.Side)
		}
		seen[p.Side] = true
		if p.Health <= 0 || p.Stamina <= 0 {
			return fmt.Errorf("pet %q: health and stamina must be positive", p.Side)
		}
	}

	t, err := c.SchedulerTiming()
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	if _, _, err := c.PhaseTiming(); err != nil {
		return err
	}

	pc, err := c.Policy()
	if err != nil {
		return err
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("opponent: %w", err)
	}

	if c.Equity.Samples < 0 || c.Equity.Workers < 0 {
		return fmt.Errorf("equity: samples and workers must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port: %d", c.Server.Port)
	}
	return nil
}

// Store returns the table rules for the reference store.
func (c *Config) Store() store.Config {
	return store.Config{
		HumanID:      c.Combat.HumanID,
		AIID:         c.Combat.AIID,
		MinBet:       c.Combat.MinBet,
		SmallBlind:   c.Combat.SmallBlind,
		BigBlind:     c.Combat.BigBlind,
		MaxTurnTime:  c.Combat.MaxTurnTime,
		SkipMulligan: c.Combat.SkipMulligan,
	}
}

// PetStats returns the starting stats of the pet on side ("human" or "ai").
func (c *Config) PetStats(side string) combat.PetStats {
	p := c.pet(side)
	if p == nil {
		return combat.PetStats{CurrentHealth: defaultHealth, MaxHealth: defaultHealth, CurrentStamina: defaultStamina}
	}
	return combat.PetStats{CurrentHealth: p.Health, MaxHealth: p.Health, CurrentStamina: p.Stamina}
}

// SchedulerTiming overlays the configured durations on the scheduler defaults.
func (c *Config) SchedulerTiming() (scheduler.Timing, error) {
	t := scheduler.DefaultTiming()
	ts := c.Timing
	for _, f := range []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"response_delay", ts.ResponseDelay, &t.ResponseDelay},
		{"follow_up_delay", ts.FollowUpDelay, &t.FollowUpDelay},
		{"guard_timeout", ts.GuardTimeout, &t.GuardTimeout},
		{"guard_poll", ts.GuardPoll, &t.GuardPoll},
		{"stuck_threshold", ts.StuckThreshold, &t.StuckThreshold},
		{"stuck_poll", ts.StuckPoll, &t.StuckPoll},
		{"countdown_tick", ts.CountdownTick, &t.CountdownTick},
	} {
		if err := parseDuration(f.name, f.src, f.dst); err != nil {
			return t, err
		}
	}
	return t, nil
}

// PhaseTiming returns the setup window and the all-in reveal pacing.
func (c *Config) PhaseTiming() (setup, allIn time.Duration, err error) {
	setup, allIn = phases.DefaultSetupDuration, phases.DefaultAllInPacing
	if err := parseDuration("setup_window", c.Timing.SetupWindow, &setup); err != nil {
		return 0, 0, err
	}
	if err := parseDuration("all_in_pacing", c.Timing.AllInPacing, &allIn); err != nil {
		return 0, 0, err
	}
	if setup <= 0 || allIn <= 0 {
		return 0, 0, fmt.Errorf("timing: setup_window and all_in_pacing must be positive")
	}
	return setup, allIn, nil
}

func parseDuration(name, src string, dst *time.Duration) error {
	if src == "" {
		return nil
	}
	d, err := time.ParseDuration(src)
	if err != nil {
		return fmt.Errorf("timing: %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Policy resolves the opponent preset and applies overrides.
func (c *Config) Policy() (policy.Config, error) {
	d, err := policy.ParseDifficulty(c.Opponent.Difficulty)
	if err != nil {
		return policy.Config{}, fmt.Errorf("opponent: %w", err)
	}
	pc := policy.Preset(d)
	if v := c.Opponent.Aggressiveness; v != nil {
		pc.Aggressiveness = *v
	}
	if v := c.Opponent.BluffFrequency; v != nil {
		pc.BluffFrequency = *v
	}
	if v := c.Opponent.Tightness; v != nil {
		pc.Tightness = *v
	}
	return pc, nil
}

// LogLevel parses the configured level, falling back to info.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// ServerAddress returns host:port for the websocket host.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
