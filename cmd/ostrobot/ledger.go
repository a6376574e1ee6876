package main

import (
	"fmt"

	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/ledger"
)

type LedgerCmd struct {
	Reset LedgerResetCmd `cmd:"" help:"Zero today's energy usage"`
}

type LedgerResetCmd struct{}

func (c *LedgerResetCmd) Run(g *Globals) error {
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
	before := lg.Used()
	if err := lg.Reset(); err != nil {
		return err
	}
	logger.Info("Energy ledger reset", "path", cfg.Energy.LedgerFile, "was", before)

	g.printer().Ledger(lg.Snapshot(), clock.Now())
	return nil
}
