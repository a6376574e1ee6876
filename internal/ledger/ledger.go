// Package ledger persists daily energy consumption across restarts and gates
// exploration on a daily cap and a time-of-day window.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/fileutil"
)

// ErrDailyCapReached is returned by RecordUse when the cap is already spent.
var ErrDailyCapReached = errors.New("ledger: daily energy cap reached")

// NoWindow disables the exploration window.
const NoWindow = -1

const rolloverPeriod = 24 * time.Hour

// Config controls the cap, the reset hour and the window.
type Config struct {
	Path string
	// DailyLimit of zero means unlimited.
	DailyLimit int
	// ResetHour is the hour (0-23, local to the clock) at which usage resets
	// and at which the exploration window closes.
	ResetHour int
	// StartHour opens the exploration window; NoWindow disables it.
	StartHour int
}

// DefaultConfig returns an unlimited ledger resetting at noon with no window.
func DefaultConfig() Config {
	return Config{
		Path:       "energy_usage.json",
		DailyLimit: 0,
		ResetHour:  12,
		StartHour:  NoWindow,
	}
}

// Validate checks the hour fields.
func (c Config) Validate() error {
	if c.DailyLimit < 0 {
		return fmt.Errorf("daily limit must be >= 0, got %d", c.DailyLimit)
	}
	if c.ResetHour < 0 || c.ResetHour > 23 {
		return fmt.Errorf("reset hour must be 0-23, got %d", c.ResetHour)
	}
	if c.StartHour != NoWindow && (c.StartHour < 0 || c.StartHour > 23) {
		return fmt.Errorf("start hour must be 0-23 or %d, got %d", NoWindow, c.StartHour)
	}
	return nil
}

type record struct {
	EnergyUsedToday    int       `json:"energy_used_today"`
	LastResetTimestamp time.Time `json:"last_reset_timestamp"`
}

// Snapshot is a read-only view for reporting.
type Snapshot struct {
	Used       int
	Limit      int
	LastReset  time.Time
	NextReset  time.Time
	InWindow   bool
	StartHour  int
	ResetHour  int
	Unlimited  bool
	CanExplore bool
}

// Ledger is the energy budget. Every mutation is written to disk before the
// call returns.
type Ledger struct {
	mu     sync.Mutex
	clock  quartz.Clock
	logger *log.Logger
	cfg    Config
	rec    record
}

// Open loads the ledger file, creating it when missing, and applies any reset
// that happened while the process was offline.
func Open(clock quartz.Clock, logger *log.Logger, cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		clock:  clock,
		logger: logger.WithPrefix("ledger"),
		cfg:    cfg,
	}

	found, err := fileutil.ReadJSON(cfg.Path, &l.rec)
	if err != nil {
		return nil, err
	}
	if !found {
		l.rec = record{LastResetTimestamp: clock.Now()}
		if err := l.persist(); err != nil {
			return nil, err
		}
	}
	if l.rec.EnergyUsedToday < 0 {
		l.rec.EnergyUsedToday = 0
	}

	if _, err := l.CheckDailyReset(); err != nil {
		return nil, err
	}
	l.logger.Debug("Ledger loaded", "path", cfg.Path, "used", l.rec.EnergyUsedToday, "limit", cfg.DailyLimit)
	return l, nil
}

// CheckDailyReset zeroes usage if a reset boundary has passed since the last
// reset. It reports whether a reset happened.
func (l *Ledger) CheckDailyReset() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkReset()
}

func (l *Ledger) checkReset() (bool, error) {
	now := l.clock.Now()
	boundary := l.lastBoundary(now)
	last := l.rec.LastResetTimestamp

	if !last.Before(boundary) && now.Sub(last) < rolloverPeriod {
		return false, nil
	}

	prev := l.rec.EnergyUsedToday
	l.rec = record{LastResetTimestamp: now}
	if err := l.persist(); err != nil {
		return true, err
	}
	l.logger.Info("Daily energy reset", "previous_used", prev, "last_reset", last.Format(time.RFC3339))
	return true, nil
}

// CanUseEnergy reports whether the daily cap leaves room for another use.
func (l *Ledger) CanUseEnergy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetOrLog()
	return l.underCap()
}

// RecordUse adds amount to today's usage, never past the cap.
func (l *Ledger) RecordUse(amount int) error {
	if amount <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetOrLog()

	if !l.underCap() {
		return ErrDailyCapReached
	}
	l.rec.EnergyUsedToday += amount
	if l.cfg.DailyLimit > 0 {
		l.rec.EnergyUsedToday = min(l.rec.EnergyUsedToday, l.cfg.DailyLimit)
	}
	if err := l.persist(); err != nil {
		return err
	}
	l.logger.Debug("Energy recorded", "amount", amount, "used", l.rec.EnergyUsedToday, "limit", l.cfg.DailyLimit)
	return nil
}

// Remaining returns the energy left today; unlimited is true when no cap is set.
func (l *Ledger) Remaining() (left int, unlimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetOrLog()
	if l.cfg.DailyLimit == 0 {
		return 0, true
	}
	return max(l.cfg.DailyLimit-l.rec.EnergyUsedToday, 0), false
}

// Used returns today's recorded usage.
func (l *Ledger) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.EnergyUsedToday
}

// TimeUntilReset returns the time until the next reset boundary.
func (l *Ledger) TimeUntilReset() time.Duration {
	now := l.clock.Now()
	return l.lastBoundary(now).Add(rolloverPeriod).Sub(now)
}

// IsInWindow reports whether the current hour is inside the exploration window.
func (l *Ledger) IsInWindow() bool {
	return l.inWindow(l.clock.Now().Hour())
}

// TimeUntilWindow returns zero inside the window, else the time until it opens.
func (l *Ledger) TimeUntilWindow() time.Duration {
	now := l.clock.Now()
	if l.inWindow(now.Hour()) {
		return 0
	}
	open := time.Date(now.Year(), now.Month(), now.Day(), l.cfg.StartHour, 0, 0, 0, now.Location())
	if !open.After(now) {
		open = open.AddDate(0, 0, 1)
	}
	return open.Sub(now)
}

// CanExploreNow is IsInWindow and CanUseEnergy together.
func (l *Ledger) CanExploreNow() bool {
	return l.IsInWindow() && l.CanUseEnergy()
}

// Reset forces usage back to zero.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec = record{LastResetTimestamp: l.clock.Now()}
	return l.persist()
}

// Snapshot returns the ledger state for reporting.
func (l *Ledger) Snapshot() Snapshot {
	inWindow := l.IsInWindow()
	canUse := l.CanUseEnergy()

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	return Snapshot{
		Used:       l.rec.EnergyUsedToday,
		Limit:      l.cfg.DailyLimit,
		LastReset:  l.rec.LastResetTimestamp,
		NextReset:  l.lastBoundary(now).Add(rolloverPeriod),
		InWindow:   inWindow,
		StartHour:  l.cfg.StartHour,
		ResetHour:  l.cfg.ResetHour,
		Unlimited:  l.cfg.DailyLimit == 0,
		CanExplore: inWindow && canUse,
	}
}

func (l *Ledger) underCap() bool {
	return l.cfg.DailyLimit == 0 || l.rec.EnergyUsedToday < l.cfg.DailyLimit
}

func (l *Ledger) resetOrLog() {
	if _, err := l.checkReset(); err != nil {
		l.logger.Error("Failed to persist daily reset", "error", err)
	}
}

// lastBoundary returns the most recent reset instant at or before now.
func (l *Ledger) lastBoundary(now time.Time) time.Time {
	b := time.Date(now.Year(), now.Month(), now.Day(), l.cfg.ResetHour, 0, 0, 0, now.Location())
	if b.After(now) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// The window runs from StartHour up to ResetHour and may wrap past midnight.
func (l *Ledger) inWindow(hour int) bool {
	start, end := l.cfg.StartHour, l.cfg.ResetHour
	switch {
	case start == NoWindow, start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

func (l *Ledger) persist() error {
	if err := fileutil.WriteJSONAtomic(l.cfg.Path, l.rec, 0o600); err != nil {
		return fmt.Errorf("persist energy ledger: %w", err)
	}
	return nil
}
