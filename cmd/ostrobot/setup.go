package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/lox/ostrobot/internal/config"
	"github.com/lox/ostrobot/internal/report"
)

// loadConfig reads the config file and applies the global overrides. Callers
// validate after applying their own flags.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.Log.File = g.LogFile
	}
	return cfg, nil
}

// setupLogger returns a logger writing to the configured file, or stderr.
func setupLogger(cfg *config.Config) (*log.Logger, io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	logger := log.NewWithOptions(out, log.Options{ReportTimestamp: true})
	switch cfg.Log.Level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger, closer, nil
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func (g *Globals) printer() *report.Printer {
	return report.New(os.Stdout, report.Options{NoColor: g.NoColor})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
