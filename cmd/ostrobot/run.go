package main

import (
	"golang.org/x/sync/errgroup"
)

type RunCmd struct {
	Chat            string `help:"Game chat (overrides config)"`
	URL             string `help:"Chat bridge WebSocket URL (overrides config)"`
	MaxExplorations *int   `short:"n" help:"Stop after this many explorations, 0 for no limit (overrides config)"`
	Cadence         string `help:"Cadence level: off, basic, enhanced or human (overrides config)"`
}

func (c *RunCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Chat != "" {
		cfg.Game.Chat = c.Chat
	}
	if c.URL != "" {
		cfg.Transport.URL = c.URL
	}
	if c.MaxExplorations != nil {
		cfg.Game.MaxExplorations = *c.MaxExplorations
	}
	if c.Cadence != "" {
		cfg.Cadence.Level = c.Cadence
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := signalContext(logger)
	defer cancel()

	logger.Info("Starting ostrobot",
		"version", version,
		"chat", cfg.Game.Chat,
		"bridge", cfg.Transport.URL,
		"config", g.Config)

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return s.bridge.Run(gctx)
	})
	grp.Go(func() error {
		// Finishing the loop stops the bridge too.
		defer cancel()
		defer s.driver.Close()
		return s.orchestrator.Run(gctx)
	})
	err = grp.Wait()

	p := g.printer()
	now := s.clock.Now()
	p.Counters(s.tracker.Counters(), now)
	p.Character(s.tracker.Snapshot(), now)
	p.Ledger(s.ledger.Snapshot(), now)

	if err != nil {
		logger.Error("Stopped with error", "error", err)
		return err
	}
	logger.Info("Stopped", "run", s.orchestrator.RunID())
	return nil
}
