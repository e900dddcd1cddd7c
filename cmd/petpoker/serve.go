package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/lox/petpoker/internal/host"
	"github.com/lox/petpoker/internal/matchid"
	"github.com/lox/petpoker/internal/randutil"
	"github.com/lox/petpoker/internal/session"
	"golang.org/x/sync/errgroup"
)

// ServeCmd hosts one match for a remote UI. Hands are dealt automatically.
type ServeCmd struct {
	Addr      string `help:"Listen address (overrides server.address and server.port)"`
	HandLimit *int   `help:"Stop after this many hands (overrides combat.hand_limit, 0 for no limit)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger := g.logger(cfg, os.Stderr)
	seed := g.seed(cfg)
	clock := quartz.NewReal()

	parts, err := buildSession(cfg, clock, logger, seed, buildOptions{})
	if err != nil {
		return err
	}

	addr := cfg.ServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}
	limit := cfg.Combat.HandLimit
	if c.HandLimit != nil {
		limit = *c.HandLimit
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.New(parts.session, clock, logger)
	match := session.NewMatch(parts.session, clock, logger,
		session.WithHandLimit(limit),
		session.WithIDs(matchid.New(clock, randutil.Derive(seed, "ids"))),
	)
	logger.Info("Hosting match", "addr", addr, "seed", seed, "hand_limit", limit)

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return ignoreCanceled(h.ListenAndServe(egctx, addr))
	})
	eg.Go(func() error {
		res, err := match.Play(egctx)
		if err != nil {
			return ignoreCanceled(err)
		}
		logger.Info("Match finished, still serving the final state", "id", res.MatchID, "winner", res.Winner,
			"hands", len(res.Hands))
		return nil
	})
	return eg.Wait()
}
