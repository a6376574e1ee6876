package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/act"
	"github.com/lox/ostrobot/internal/battle"
	"github.com/lox/ostrobot/internal/cadence"
	"github.com/lox/ostrobot/internal/chat/wsbridge"
	"github.com/lox/ostrobot/internal/config"
	"github.com/lox/ostrobot/internal/explore"
	"github.com/lox/ostrobot/internal/journal"
	"github.com/lox/ostrobot/internal/ledger"
	"github.com/lox/ostrobot/internal/status"
)

// session is a connected bot: bridge, driver and the components on top.
type session struct {
	clock        quartz.Clock
	bridge       *wsbridge.Client
	driver       *act.Driver
	tracker      *status.Tracker
	ledger       *ledger.Ledger
	journal      *journal.Journal
	orchestrator *explore.Orchestrator
}

func openSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session, error) {
	clock := quartz.NewReal()

	lg, err := ledger.Open(clock, logger, cfg.LedgerConfig())
	if err != nil {
		return nil, fmt.Errorf("opening energy ledger: %w", err)
	}

	var jr *journal.Journal
	if cfg.JournalEnabled() {
		jr, err = journal.Open(ctx, cfg.Journal.Path, clock, logger)
		if err != nil {
			return nil, err
		}
	}

	bridge, err := wsbridge.Dial(ctx, cfg.Transport.URL, logger, wsbridge.Options{
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		_ = jr.Close()
		return nil, err
	}

	pacer := cadence.New(clock, logger, cfg.CadenceConfig())
	driver := act.New(bridge, act.ClockSleeper{Clock: clock}, pacer, logger, cfg.ActConfig())
	tracker := status.New(clock, logger, status.Options{
		MaxHP:     cfg.Game.MaxHP,
		MaxEnergy: cfg.Game.MaxEnergy,
	})
	resolver := battle.NewResolver(driver, tracker, clock, logger, cfg.BattleConfig())

	deps := explore.Deps{
		Actor:   driver,
		Fighter: resolver,
		Tracker: tracker,
		Ledger:  lg,
		Clock:   clock,
		Logger:  logger,
		Breaker: pacer,
	}
	if jr != nil {
		deps.Recorder = jr
	}

	return &session{
		clock:        clock,
		bridge:       bridge,
		driver:       driver,
		tracker:      tracker,
		ledger:       lg,
		journal:      jr,
		orchestrator: explore.New(deps, cfg.ExploreConfig()),
	}, nil
}

// Close drains in-flight clicks, then closes the bridge and the journal.
func (s *session) Close() {
	s.driver.Close()
	_ = s.bridge.Close()
	_ = s.journal.Close()
}
