package policy

import (
	"fmt"
	"strings"
)

// Config tunes the heuristic opponent. All values are in [0,1].
//
// Aggressiveness and Tightness are carried with the difficulty presets but the
// decision tree only reads BluffFrequency.
type Config struct {
	Aggressiveness float64 `hcl:"aggressiveness,optional"`
	BluffFrequency float64 `hcl:"bluff_frequency,optional"`
	Tightness      float64 `hcl:"tightness,optional"`
}

// DefaultConfig is the medium difficulty opponent.
func DefaultConfig() Config {
	return Config{
		Aggressiveness: 0.5,
		BluffFrequency: 0.15,
		Tightness:      0.6,
	}
}

// Difficulty selects a preset Config.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

func (d Difficulty) String() string {
	if d < Easy || d > Hard {
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
	return [...]string{"easy", "medium", "hard"}[d]
}

// ParseDifficulty accepts "easy", "medium" or "hard".
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium", "":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return Medium, fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
}

// Preset returns the config for a difficulty level.
func Preset(d Difficulty) Config {
	switch d {
	case Easy:
		return Config{Aggressiveness: 0.3, BluffFrequency: 0.05, Tightness: 0.7}
	case Hard:
		return Config{Aggressiveness: 0.7, BluffFrequency: 0.2, Tightness: 0.5}
	default:
		return DefaultConfig()
	}
}

// Validate checks every knob is a probability.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"aggressiveness":  c.Aggressiveness,
		"bluff_frequency": c.BluffFrequency,
		"tightness":       c.Tightness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	return nil
}
