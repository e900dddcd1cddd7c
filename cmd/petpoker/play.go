package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/tui"
	"golang.org/x/sync/errgroup"
)

// PlayCmd runs an interactive combat in the terminal.
type PlayCmd struct {
	LogFile string `default:"petpoker.log" help:"Write logs here while the terminal UI is running (overrides log.file)"`
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	path := c.LogFile
	if cfg.Log.File != "" && path == "petpoker.log" {
		path = cfg.Log.File
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := g.logger(cfg, logFile)
	seed := g.seed(cfg)
	logger.Info("Starting combat", "seed", seed, "difficulty", cfg.Opponent.Difficulty)

	parts, err := buildSession(cfg, quartz.NewReal(), logger, seed, buildOptions{})
	if err != nil {
		return err
	}
	sess := parts.session
	if err := sess.NextHand(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	model := tui.NewModel(sess, changes, logger)

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return ignoreCanceled(sess.Run(egctx))
	})
	eg.Go(func() error {
		defer cancel()
		return ignoreCanceled(tui.Run(egctx, model))
	})
	return eg.Wait()
}
