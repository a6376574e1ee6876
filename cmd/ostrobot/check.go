package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/explore"
)

type CheckCmd struct {
	Chat  string `help:"Game chat (overrides config)"`
	URL   string `help:"Chat bridge WebSocket URL (overrides config)"`
	Limit int    `default:"5" help:"Number of recent messages to show"`
}

func (c *CheckCmd) Run(g *Globals) error {
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
	// Diagnostics should not be paced or journaled.
	cfg.Cadence.Level = "off"
	disabled := false
	cfg.Journal.Enabled = &disabled
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

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	bridgeErr := make(chan error, 1)
	go func() { bridgeErr <- s.bridge.Run(ctx) }()

	err = c.check(ctx, g, s)
	cancel()
	if runErr := <-bridgeErr; err == nil && runErr != nil {
		err = runErr
	}
	return err
}

func (c *CheckCmd) check(ctx context.Context, g *Globals, s *session) error {
	p := g.printer()

	profile, err := s.orchestrator.CheckStatus(ctx)
	switch {
	case err == nil:
		p.Profile(profile)
	case errors.Is(err, explore.ErrProfileUnavailable):
		fmt.Println("No status report found in the recent messages.")
	default:
		return fmt.Errorf("status check: %w", err)
	}

	msgs, err := s.driver.FetchN(ctx, c.Limit)
	if err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}
	p.Events(classify.Batch(msgs))

	now := s.clock.Now()
	p.Character(s.tracker.Snapshot(), now)
	p.Ledger(s.ledger.Snapshot(), now)
	return nil
}
