package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/journal"
	"github.com/lox/ostrobot/internal/ledger"
)

type StatusCmd struct {
	Battles int `default:"5" help:"Number of recent battles to list"`
}

func (c *StatusCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	clock := quartz.NewReal()
	lg, err := ledger.Open(clock, logger, cfg.LedgerConfig())
	if err != nil {
		return fmt.Errorf("opening energy ledger: %w", err)
	}

	p := g.printer()
	now := clock.Now()
	snap := lg.Snapshot()
	p.Ledger(snap, now)

	if !cfg.JournalEnabled() {
		return nil
	}
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("No journal at %s yet.\n", cfg.Journal.Path)
		return nil
	}

	ctx := context.Background()
	jr, err := journal.Open(ctx, cfg.Journal.Path, clock, logger)
	if err != nil {
		return err
	}
	defer func() { _ = jr.Close() }()

	// The journal day follows the ledger's reset hour.
	sum, err := jr.Summarize(ctx, snap.NextReset.Add(-24*time.Hour))
	if err != nil {
		return err
	}
	p.Summary(sum)

	if c.Battles > 0 {
		battles, err := jr.RecentBattles(ctx, c.Battles)
		if err != nil {
			return err
		}
		p.Battles(battles)
	}
	return nil
}
