package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/config"
	"github.com/lox/petpoker/internal/fileutil"
	"github.com/lox/petpoker/internal/matchid"
	"github.com/lox/petpoker/internal/policy"
	"github.com/lox/petpoker/internal/randutil"
	"github.com/lox/petpoker/internal/session"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

// SimulateCmd plays the human seat with a policy engine over many matches.
type SimulateCmd struct {
	Matches    int     `short:"n" default:"20" help:"Number of matches"`
	Hands      int     `default:"50" help:"Hand limit per match (0 plays until a pet falls)"`
	Speed      float64 `default:"0.01" help:"Timing scale, 0.01 runs a hundred times faster than real time"`
	Parallel   int     `short:"p" help:"Matches to run at once (default: number of CPUs)"`
	Autopilot  string  `default:"medium" enum:"easy,medium,hard" help:"Difficulty of the human autopilot"`
	Output     string  `short:"o" type:"path" help:"Write a JSON summary to this file"`
	NoProgress bool    `help:"Hide the progress bar"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Matches <= 0 {
		return fmt.Errorf("matches must be positive, got %d", c.Matches)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", c.Speed)
	}
	difficulty, err := policy.ParseDifficulty(c.Autopilot)
	if err != nil {
		return err
	}

	logger := g.logger(cfg, os.Stderr)
	if !g.Debug {
		logger.SetLevel(max(cfg.LogLevel(), log.WarnLevel))
	}
	seed := g.seed(cfg)
	parallel := c.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.DefaultSection.Println("Simulating")
	pterm.Info.Printfln("%d matches, hand limit %d, opponent %s, autopilot %s, seed %d",
		c.Matches, c.Hands, cfg.Opponent.Difficulty, difficulty, seed)

	var bar *pterm.ProgressbarPrinter
	if !c.NoProgress {
		bar, _ = pterm.DefaultProgressbar.WithTotal(c.Matches).WithTitle("Matches").Start()
	}

	results := make([]session.Result, c.Matches)
	var mu sync.Mutex
	start := time.Now()

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i := range c.Matches {
		eg.Go(func() error {
			res, err := c.playMatch(egctx, cfg, logger, seed, i, difficulty)
			if err != nil {
				return fmt.Errorf("match %d: %w", i+1, err)
			}
			mu.Lock()
			results[i] = res
			if bar != nil {
				bar.Increment()
			}
			mu.Unlock()
			return nil
		})
	}
	err = eg.Wait()
	if bar != nil {
		_, _ = bar.Stop()
	}
	if err != nil {
		return err
	}

	sum := summarize(results, cfg.Combat.HumanID, cfg.Combat.AIID)
	sum.Seed = seed
	sum.Elapsed = time.Since(start).Round(time.Millisecond).String()
	if err := printSummary(sum); err != nil {
		return err
	}
	if c.Output != "" {
		if err := fileutil.WriteJSON(c.Output, sum); err != nil {
			return err
		}
		pterm.Success.Printfln("Summary written to %s", c.Output)
	}
	return nil
}

func (c *SimulateCmd) playMatch(ctx context.Context, cfg *config.Config, logger *log.Logger, seed int64, i int, d policy.Difficulty) (session.Result, error) {
	clock := quartz.NewReal()
	stream := fmt.Sprintf("match-%d", i)
	parts, err := buildSession(cfg, clock, logger.With("match", i+1), seed,
		buildOptions{timingScale: c.Speed, stream: stream})
	if err != nil {
		return session.Result{}, err
	}

	pilot := session.NewAutopilot(parts.session, newEngine(cfg, policy.Preset(d), seed, stream+"/autopilot", logger), logger)
	match := session.NewMatch(parts.session, clock, logger,
		session.WithHandLimit(c.Hands),
		session.WithHandPause(scaleDuration(session.DefaultHandPause, c.Speed)),
		session.WithIDs(matchid.New(clock, randutil.Derive(seed, stream+"/ids"))),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = pilot.Run(ctx) }()
	return match.Play(ctx)
}
