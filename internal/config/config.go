// Package config loads the bot configuration from an HCL file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/ostrobot/internal/act"
	"github.com/lox/ostrobot/internal/battle"
	"github.com/lox/ostrobot/internal/cadence"
	"github.com/lox/ostrobot/internal/explore"
	"github.com/lox/ostrobot/internal/ledger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete bot configuration.
type Config struct {
	Game      GameSettings
	Transport TransportSettings
	Health    HealthSettings
	Energy    EnergySettings
	Battle    BattleSettings
	Timing    TimingSettings
	Cadence   CadenceSettings
	Journal   JournalSettings
	Log       LogSettings
}

// GameSettings names the game chat and its commands.
type GameSettings struct {
	Chat            string `hcl:"chat,optional"`
	ExploreCommand  string `hcl:"explore_command,optional"`
	StatusCommand   string `hcl:"status_command,optional"`
	StartCommand    string `hcl:"start_command,optional"`
	HealCommand     string `hcl:"heal_command,optional"`
	MaxExplorations int    `hcl:"max_explorations,optional"`
	MaxHP           int    `hcl:"max_hp,optional"`
	MaxEnergy       int    `hcl:"max_energy,optional"`
}

// TransportSettings configures the chat-bridge connection and retries.
type TransportSettings struct {
	URL                      string `hcl:"url,optional"`
	RequestTimeoutSeconds    int    `hcl:"request_timeout_seconds,optional"`
	FetchLimit               int    `hcl:"fetch_limit,optional"`
	MaxRetries               int    `hcl:"max_retries,optional"`
	InitialBackoffMillis     int    `hcl:"initial_backoff_ms,optional"`
	MaxBackoffSeconds        int    `hcl:"max_backoff_seconds,optional"`
	ClickPolicy              string `hcl:"click_policy,optional"`
	RateLimitCooldownSeconds int    `hcl:"rate_limit_cooldown_seconds,optional"`
	MaxRateLimitHits         int    `hcl:"max_rate_limit_hits,optional"`
	RefreshDelaySeconds      int    `hcl:"refresh_delay_seconds,optional"`
}

// HealthSettings are the explore-safety and recovery thresholds.
type HealthSettings struct {
	MinHPPercent     float64 `hcl:"min_hp_percent,optional"`
	HealItemPercent  float64 `hcl:"heal_item_percent,optional"`
	HealRetryMinutes int     `hcl:"heal_retry_minutes,optional"`
	PollMinutes      int     `hcl:"poll_minutes,optional"`
	MaxWaitMinutes   int     `hcl:"max_wait_minutes,optional"`
}

// EnergySettings configure the daily budget and regeneration waits.
type EnergySettings struct {
	DailyLimit         int    `hcl:"daily_limit,optional"`
	ResetHour          *int   `hcl:"reset_hour,optional"`
	StartHour          *int   `hcl:"start_hour,optional"`
	LedgerFile         string `hcl:"ledger_file,optional"`
	PollMinutes        int    `hcl:"poll_minutes,optional"`
	DefaultWaitMinutes int    `hcl:"default_wait_minutes,optional"`
	BudgetPollMinutes  int    `hcl:"budget_poll_minutes,optional"`
}

// BattleSettings are the per-round decision thresholds.
type BattleSettings struct {
	CriticalHP      int      `hcl:"critical_hp,optional"`
	LowHP           int      `hcl:"low_hp,optional"`
	PotionThreshold int      `hcl:"potion_threshold,optional"`
	EscapeCap       int      `hcl:"escape_cap,optional"`
	RoundCap        int      `hcl:"round_cap,optional"`
	UsePotions      *bool    `hcl:"use_potions,optional"`
	UseSkills       *bool    `hcl:"use_skills,optional"`
	SkillSlot       string   `hcl:"skill_slot,optional"`
	EscapeList      []string `hcl:"escape_list,optional"`
	PollMillis      int      `hcl:"poll_interval_ms,optional"`
}

// TimingSettings control response polling and error recovery.
type TimingSettings struct {
	ResponseDelayMillis    int `hcl:"response_delay_ms,optional"`
	ResponsePolls          int `hcl:"response_polls,optional"`
	MissThreshold          int `hcl:"miss_threshold,optional"`
	StatusRetries          int `hcl:"status_retries,optional"`
	StatusRetryDelayMillis int `hcl:"status_retry_delay_ms,optional"`
	MaxConsecutiveErrors   int `hcl:"max_consecutive_errors,optional"`
	ErrorCooldownMinutes   int `hcl:"error_cooldown_minutes,optional"`
}

// CadenceSettings configure human-like pacing.
type CadenceSettings struct {
	Level               string  `hcl:"level,optional"`
	MinDelayMillis      int     `hcl:"min_delay_ms,optional"`
	MaxDelayMillis      int     `hcl:"max_delay_ms,optional"`
	ReadMillisPerChar   int     `hcl:"read_ms_per_char,optional"`
	ReadMaxMillis       int     `hcl:"read_max_ms,optional"`
	FatigueAfterMinutes int     `hcl:"fatigue_after_minutes,optional"`
	FatiguePerHour      float64 `hcl:"fatigue_per_hour,optional"`
	FatigueMax          float64 `hcl:"fatigue_max,optional"`
	BreakAfterMin       int     `hcl:"break_after_min,optional"`
	BreakAfterMax       int     `hcl:"break_after_max,optional"`
	BreakMinMinutes     int     `hcl:"break_min_minutes,optional"`
	BreakMaxMinutes     int     `hcl:"break_max_minutes,optional"`
	Seed                int64   `hcl:"seed,optional"`
}

// JournalSettings configure the SQLite journal.
type JournalSettings struct {
	Enabled *bool  `hcl:"enabled,optional"`
	Path    string `hcl:"path,optional"`
}

// LogSettings configure logging.
type LogSettings struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
}

// file is the decode target; absent blocks stay nil.
type file struct {
	Game      *GameSettings      `hcl:"game,block"`
	Transport *TransportSettings `hcl:"transport,block"`
	Health    *HealthSettings    `hcl:"health,block"`
	Energy    *EnergySettings    `hcl:"energy,block"`
	Battle    *BattleSettings    `hcl:"battle,block"`
	Timing    *TimingSettings    `hcl:"timing,block"`
	Cadence   *CadenceSettings   `hcl:"cadence,block"`
	Journal   *JournalSettings   `hcl:"journal,block"`
	Log       *LogSettings       `hcl:"log,block"`
}

func ptr[T any](v T) *T { return &v }

// Default returns the configuration the bot ships with.
func Default() *Config {
	return &Config{
		Game: GameSettings{
			ExploreCommand: "🗺️ Досліджувати (⚡1)",
			StatusCommand:  "🧍 Персонаж",
			StartCommand:   "/start",
			MaxHP:          100,
			MaxEnergy:      10,
		},
		Transport: TransportSettings{
			URL:                      "ws://127.0.0.1:8765/ws",
			RequestTimeoutSeconds:    30,
			FetchLimit:               10,
			MaxRetries:               3,
			InitialBackoffMillis:     1000,
			MaxBackoffSeconds:        30,
			ClickPolicy:              "await",
			RateLimitCooldownSeconds: 10,
			MaxRateLimitHits:         3,
			RefreshDelaySeconds:      2,
		},
		Health: HealthSettings{
			MinHPPercent:     80,
			HealItemPercent:  50,
			HealRetryMinutes: 30,
			PollMinutes:      2,
			MaxWaitMinutes:   180,
		},
		Energy: EnergySettings{
			DailyLimit:         0,
			ResetHour:          ptr(12),
			StartHour:          ptr(ledger.NoWindow),
			LedgerFile:         "energy_usage.json",
			PollMinutes:        3,
			DefaultWaitMinutes: 10,
			BudgetPollMinutes:  10,
		},
		Battle: BattleSettings{
			CriticalHP:      5,
			LowHP:           10,
			PotionThreshold: 50,
			EscapeCap:       5,
			RoundCap:        30,
			UsePotions:      ptr(true),
			UseSkills:       ptr(true),
			SkillSlot:       "first",
			PollMillis:      1000,
		},
		Timing: TimingSettings{
			ResponseDelayMillis:    2000,
			ResponsePolls:          3,
			MissThreshold:          3,
			StatusRetries:          3,
			StatusRetryDelayMillis: 2000,
			MaxConsecutiveErrors:   5,
			ErrorCooldownMinutes:   5,
		},
		Cadence: CadenceSettings{
			Level:               "basic",
			MinDelayMillis:      1000,
			MaxDelayMillis:      3000,
			ReadMillisPerChar:   25,
			ReadMaxMillis:       6000,
			FatigueAfterMinutes: 60,
			FatiguePerHour:      0.25,
			FatigueMax:          2.0,
			BreakAfterMin:       15,
			BreakAfterMax:       30,
			BreakMinMinutes:     5,
			BreakMaxMinutes:     20,
		},
		Journal: JournalSettings{
			Enabled: ptr(true),
			Path:    "ostrobot.db",
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// Load reads filename. A missing file yields the defaults; values absent
// from the file keep their defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var decoded file
	diags = gohcl.DecodeBody(f.Body, nil, &decoded)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.merge(decoded)
	return cfg, nil
}

func (c *Config) merge(f file) {
	if g := f.Game; g != nil {
		setString(&c.Game.Chat, g.Chat)
		setString(&c.Game.ExploreCommand, g.ExploreCommand)
		setString(&c.Game.StatusCommand, g.StatusCommand)
		setString(&c.Game.StartCommand, g.StartCommand)
		setString(&c.Game.HealCommand, g.HealCommand)
		setInt(&c.Game.MaxExplorations, g.MaxExplorations)
		setInt(&c.Game.MaxHP, g.MaxHP)
		setInt(&c.Game.MaxEnergy, g.MaxEnergy)
	}
	if t := f.Transport; t != nil {
		setString(&c.Transport.URL, t.URL)
		setInt(&c.Transport.RequestTimeoutSeconds, t.RequestTimeoutSeconds)
		setInt(&c.Transport.FetchLimit, t.FetchLimit)
		setInt(&c.Transport.MaxRetries, t.MaxRetries)
		setInt(&c.Transport.InitialBackoffMillis, t.InitialBackoffMillis)
		setInt(&c.Transport.MaxBackoffSeconds, t.MaxBackoffSeconds)
		setString(&c.Transport.ClickPolicy, t.ClickPolicy)
		setInt(&c.Transport.RateLimitCooldownSeconds, t.RateLimitCooldownSeconds)
		setInt(&c.Transport.MaxRateLimitHits, t.MaxRateLimitHits)
		setInt(&c.Transport.RefreshDelaySeconds, t.RefreshDelaySeconds)
	}
	if h := f.Health; h != nil {
		setFloat(&c.Health.MinHPPercent, h.MinHPPercent)
		setFloat(&c.Health.HealItemPercent, h.HealItemPercent)
		setInt(&c.Health.HealRetryMinutes, h.HealRetryMinutes)
		setInt(&c.Health.PollMinutes, h.PollMinutes)
		setInt(&c.Health.MaxWaitMinutes, h.MaxWaitMinutes)
	}
	if e := f.Energy; e != nil {
		setInt(&c.Energy.DailyLimit, e.DailyLimit)
		setPtr(&c.Energy.ResetHour, e.ResetHour)
		setPtr(&c.Energy.StartHour, e.StartHour)
		setString(&c.Energy.LedgerFile, e.LedgerFile)
		setInt(&c.Energy.PollMinutes, e.PollMinutes)
		setInt(&c.Energy.DefaultWaitMinutes, e.DefaultWaitMinutes)
		setInt(&c.Energy.BudgetPollMinutes, e.BudgetPollMinutes)
	}
	if b := f.Battle; b != nil {
		setInt(&c.Battle.CriticalHP, b.CriticalHP)
		setInt(&c.Battle.LowHP, b.LowHP)
		setInt(&c.Battle.PotionThreshold, b.PotionThreshold)
		setInt(&c.Battle.EscapeCap, b.EscapeCap)
		setInt(&c.Battle.RoundCap, b.RoundCap)
		setPtr(&c.Battle.UsePotions, b.UsePotions)
		setPtr(&c.Battle.UseSkills, b.UseSkills)
		setString(&c.Battle.SkillSlot, b.SkillSlot)
		if b.EscapeList != nil {
			c.Battle.EscapeList = b.EscapeList
		}
		setInt(&c.Battle.PollMillis, b.PollMillis)
	}
	if t := f.Timing; t != nil {
		setInt(&c.Timing.ResponseDelayMillis, t.ResponseDelayMillis)
		setInt(&c.Timing.ResponsePolls, t.ResponsePolls)
		setInt(&c.Timing.MissThreshold, t.MissThreshold)
		setInt(&c.Timing.StatusRetries, t.StatusRetries)
		setInt(&c.Timing.StatusRetryDelayMillis, t.StatusRetryDelayMillis)
		setInt(&c.Timing.MaxConsecutiveErrors, t.MaxConsecutiveErrors)
		setInt(&c.Timing.ErrorCooldownMinutes, t.ErrorCooldownMinutes)
	}
	if cd := f.Cadence; cd != nil {
		setString(&c.Cadence.Level, cd.Level)
		setInt(&c.Cadence.MinDelayMillis, cd.MinDelayMillis)
		setInt(&c.Cadence.MaxDelayMillis, cd.MaxDelayMillis)
		setInt(&c.Cadence.ReadMillisPerChar, cd.ReadMillisPerChar)
		setInt(&c.Cadence.ReadMaxMillis, cd.ReadMaxMillis)
		setInt(&c.Cadence.FatigueAfterMinutes, cd.FatigueAfterMinutes)
		setFloat(&c.Cadence.FatiguePerHour, cd.FatiguePerHour)
		setFloat(&c.Cadence.FatigueMax, cd.FatigueMax)
		setInt(&c.Cadence.BreakAfterMin, cd.BreakAfterMin)
		setInt(&c.Cadence.BreakAfterMax, cd.BreakAfterMax)
		setInt(&c.Cadence.BreakMinMinutes, cd.BreakMinMinutes)
		setInt(&c.Cadence.BreakMaxMinutes, cd.BreakMaxMinutes)
		if cd.Seed != 0 {
			c.Cadence.Seed = cd.Seed
		}
	}
	if j := f.Journal; j != nil {
		setPtr(&c.Journal.Enabled, j.Enabled)
		setString(&c.Journal.Path, j.Path)
	}
	if l := f.Log; l != nil {
		setString(&c.Log.Level, l.Level)
		setString(&c.Log.File, l.File)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setPtr[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Game.Chat) != "", "game chat is required")
	check(c.Game.ExploreCommand != "", "explore command is required")
	check(c.Game.StatusCommand != "", "status command is required")
	check(c.Game.MaxExplorations >= 0, "max explorations cannot be negative")
	check(c.Game.MaxHP > 0, "max hp must be positive")
	check(c.Game.MaxEnergy > 0, "max energy must be positive")

	check(c.Transport.URL != "", "transport url is required")
	check(c.Transport.RequestTimeoutSeconds > 0, "request timeout must be positive")
	check(c.Transport.FetchLimit > 0, "fetch limit must be positive")
	check(c.Transport.MaxRetries >= 0, "max retries cannot be negative")
	check(c.Transport.InitialBackoffMillis > 0, "initial backoff must be positive")
	check(c.Transport.MaxBackoffSeconds > 0, "max backoff must be positive")
	if _, err := act.ParseClickPolicy(c.Transport.ClickPolicy); err != nil {
		errs = append(errs, err)
	}
	check(c.Transport.MaxRateLimitHits > 0, "max rate limit hits must be positive")
	check(c.Transport.RefreshDelaySeconds > 0, "refresh delay must be positive")

	check(c.Health.MinHPPercent > 0 && c.Health.MinHPPercent <= 100, "min hp percent must be in (0, 100], got %v", c.Health.MinHPPercent)
	check(c.Health.HealItemPercent >= 0 && c.Health.HealItemPercent <= 100, "heal item percent must be in [0, 100], got %v", c.Health.HealItemPercent)
	check(c.Health.PollMinutes > 0, "health poll interval must be positive")
	check(c.Health.MaxWaitMinutes > 0, "health max wait must be positive")

	if err := c.LedgerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	check(c.Energy.PollMinutes > 0, "energy poll interval must be positive")
	check(c.Energy.DefaultWaitMinutes > 0, "energy default wait must be positive")

	check(c.Battle.CriticalHP >= 0, "critical hp cannot be negative")
	check(c.Battle.LowHP >= c.Battle.CriticalHP, "low hp (%d) must be at least critical hp (%d)", c.Battle.LowHP, c.Battle.CriticalHP)
	check(c.Battle.PotionThreshold >= 0, "potion threshold cannot be negative")
	check(c.Battle.EscapeCap >= 0, "escape cap cannot be negative")
	check(c.Battle.RoundCap > 0, "round cap must be positive")
	if _, err := battle.ParseSkillSlot(c.Battle.SkillSlot); err != nil {
		errs = append(errs, err)
	}

	check(c.Timing.ResponsePolls > 0, "response polls must be positive")
	check(c.Timing.StatusRetries > 0, "status retries must be positive")
	check(c.Timing.MaxConsecutiveErrors > 0, "max consecutive errors must be positive")

	if _, err := cadence.ParseLevel(c.Cadence.Level); err != nil {
		errs = append(errs, err)
	}
	check(c.Cadence.MinDelayMillis >= 0 && c.Cadence.MaxDelayMillis >= c.Cadence.MinDelayMillis,
		"cadence delay range %d-%dms is invalid", c.Cadence.MinDelayMillis, c.Cadence.MaxDelayMillis)
	check(c.Cadence.BreakAfterMax >= c.Cadence.BreakAfterMin, "break after range is invalid")
	check(c.Cadence.BreakMaxMinutes >= c.Cadence.BreakMinMinutes, "break duration range is invalid")

	if c.JournalEnabled() {
		check(c.Journal.Path != "", "journal path is required when the journal is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	check(validLogLevels[c.Log.Level], "invalid log level: %s", c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// JournalEnabled reports whether battles should be journaled.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// ActConfig returns the action driver settings.
func (c *Config) ActConfig() act.Config {
	policy, _ := act.ParseClickPolicy(c.Transport.ClickPolicy)
	return act.Config{
		Chat:              c.Game.Chat,
		FetchLimit:        c.Transport.FetchLimit,
		MaxRetries:        c.Transport.MaxRetries,
		InitialBackoff:    millis(c.Transport.InitialBackoffMillis),
		MaxBackoff:        seconds(c.Transport.MaxBackoffSeconds),
		ClickPolicy:       policy,
		RateLimitCooldown: seconds(c.Transport.RateLimitCooldownSeconds),
		MaxRateLimitHits:  c.Transport.MaxRateLimitHits,
		StartCommand:      c.Game.StartCommand,
		RefreshDelay:      seconds(c.Transport.RefreshDelaySeconds),
	}
}

// LedgerConfig returns the energy ledger settings.
func (c *Config) LedgerConfig() ledger.Config {
	cfg := ledger.DefaultConfig()
	cfg.Path = c.Energy.LedgerFile
	cfg.DailyLimit = c.Energy.DailyLimit
	if c.Energy.ResetHour != nil {
		cfg.ResetHour = *c.Energy.ResetHour
	}
	if c.Energy.StartHour != nil {
		cfg.StartHour = *c.Energy.StartHour
	}
	return cfg
}

// BattleConfig returns the resolver settings.
func (c *Config) BattleConfig() battle.Config {
	slot, _ := battle.ParseSkillSlot(c.Battle.SkillSlot)
	cfg := battle.DefaultConfig()
	cfg.Policy = battle.Policy{
		CriticalHP:    c.Battle.CriticalHP,
		LowHP:         c.Battle.LowHP,
		HealThreshold: c.Battle.PotionThreshold,
		EscapeCap:     c.Battle.EscapeCap,
		UsePotions:    c.Battle.UsePotions == nil || *c.Battle.UsePotions,
		UseSkills:     c.Battle.UseSkills == nil || *c.Battle.UseSkills,
		SkillSlot:     slot,
	}
	cfg.RoundCap = c.Battle.RoundCap
	cfg.EscapeList = c.Battle.EscapeList
	cfg.PollInterval = millis(c.Battle.PollMillis)
	return cfg
}

// ExploreConfig returns the orchestrator settings.
func (c *Config) ExploreConfig() explore.Config {
	return explore.Config{
		ExploreCommand:       c.Game.ExploreCommand,
		StatusCommand:        c.Game.StatusCommand,
		StartCommand:         c.Game.StartCommand,
		HealCommand:          c.Game.HealCommand,
		MinHPPercent:         c.Health.MinHPPercent,
		HealItemPercent:      c.Health.HealItemPercent,
		HealRetryAfter:       minutes(c.Health.HealRetryMinutes),
		ResponseDelay:        millis(c.Timing.ResponseDelayMillis),
		ResponsePolls:        c.Timing.ResponsePolls,
		EnergyPollInterval:   minutes(c.Energy.PollMinutes),
		DefaultEnergyWait:    minutes(c.Energy.DefaultWaitMinutes),
		HPPollInterval:       minutes(c.Health.PollMinutes),
		MaxHPWait:            minutes(c.Health.MaxWaitMinutes),
		BudgetPollInterval:   minutes(c.Energy.BudgetPollMinutes),
		MissThreshold:        c.Timing.MissThreshold,
		StatusRetries:        c.Timing.StatusRetries,
		StatusRetryDelay:     millis(c.Timing.StatusRetryDelayMillis),
		MaxConsecutiveErrors: c.Timing.MaxConsecutiveErrors,
		ErrorCooldown:        minutes(c.Timing.ErrorCooldownMinutes),
		MaxExplorations:      c.Game.MaxExplorations,
	}
}

// CadenceConfig returns the pacing settings. A zero seed draws one from the
// current time.
func (c *Config) CadenceConfig() cadence.Config {
	level, _ := cadence.ParseLevel(c.Cadence.Level)
	cfg := cadence.DefaultConfig()
	cfg.Level = level
	cfg.MinDelay = millis(c.Cadence.MinDelayMillis)
	cfg.MaxDelay = millis(c.Cadence.MaxDelayMillis)
	cfg.ReadPerRune = millis(c.Cadence.ReadMillisPerChar)
	cfg.ReadMax = millis(c.Cadence.ReadMaxMillis)
	cfg.FatigueAfter = minutes(c.Cadence.FatigueAfterMinutes)
	cfg.FatiguePerHour = c.Cadence.FatiguePerHour
	cfg.FatigueMax = c.Cadence.FatigueMax
	cfg.BreakAfterMin = c.Cadence.BreakAfterMin
	cfg.BreakAfterMax = c.Cadence.BreakAfterMax
	cfg.BreakMin = minutes(c.Cadence.BreakMinMinutes)
	cfg.BreakMax = minutes(c.Cadence.BreakMaxMinutes)
	if c.Cadence.Seed != 0 {
		cfg.Seed = c.Cadence.Seed
	}
	return cfg
}

// RequestTimeout is the per-request deadline on the chat bridge.
func (c *Config) RequestTimeout() time.Duration {
	return seconds(c.Transport.RequestTimeoutSeconds)
}
