package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/config"
	"github.com/lox/petpoker/internal/equity"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/randutil"
	"github.com/lox/petpoker/internal/session"
	"github.com/lox/petpoker/internal/store"
	"github.com/lox/petpoker/internal/tui"
)

// load reads and validates the config file and applies the global flags.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", g.Config, err)
	}
	if g.NoColor {
		tui.DisableColor()
	}
	return cfg, nil
}

// seed picks the flag, then the config, then the wall clock.
func (g *Globals) seed(cfg *config.Config) int64 {
	switch {
	case g.Seed != nil:
		return *g.Seed
	case cfg.Equity.Seed != 0:
		return cfg.Equity.Seed
	}
	return time.Now().UnixNano()
}

func (g *Globals) logger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           cfg.LogLevel(),
	})
	if g.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// sessionParts are the pieces of one combat built from config.
type sessionParts struct {
	store    *store.Store
	session  *session.Session
	opponent *policy.Engine
}

type buildOptions struct {
	timingScale float64
	stream      string
}

// newEngine builds a policy engine for one seat. stream separates the random
// sources of different seats and matches.
func newEngine(cfg *config.Config, pc policy.Config, seed int64, stream string, logger *log.Logger) *policy.Engine {
	evaluator := equity.NewMonteCarlo(
		equity.WithSamples(cfg.Equity.Samples),
		equity.WithWorkers(cfg.Equity.Workers),
		equity.WithRand(randutil.Derive(seed, stream+"/equity")),
	)
	return policy.New(pc, evaluator,
		policy.WithRand(randutil.Derive(seed, stream+"/bluff")),
		policy.WithLogger(logger),
	)
}

func buildSession(cfg *config.Config, clock quartz.Clock, logger *log.Logger, seed int64, opts buildOptions) (*sessionParts, error) {
	pc, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	timing, err := cfg.SchedulerTiming()
	if err != nil {
		return nil, err
	}
	setup, allIn, err := cfg.PhaseTiming()
	if err != nil {
		return nil, err
	}
	if opts.timingScale > 0 && opts.timingScale != 1 {
		timing = timing.Scale(opts.timingScale)
		setup = scaleDuration(setup, opts.timingScale)
		allIn = scaleDuration(allIn, opts.timingScale)
	}
	stream := opts.stream
	if stream == "" {
		stream = "combat"
	}

	st := store.New(cfg.Store(), cfg.PetStats("human"), cfg.PetStats("ai"), clock, logger,
		store.WithRand(randutil.Derive(seed, stream+"/deck")))
	opponent := newEngine(cfg, pc, seed, stream+"/opponent", logger)
	sess := session.New(st, opponent, clock, logger,
		session.WithTiming(timing),
		session.WithSetupWindow(setup),
		session.WithAllInPacing(allIn),
	)
	return &sessionParts{store: st, session: sess, opponent: opponent}, nil
}

func scaleDuration(d time.Duration, f float64) time.Duration {
	return max(time.Millisecond, time.Duration(float64(d)*f))
}

// ignoreCanceled treats a cancelled context as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
