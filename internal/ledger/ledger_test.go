package ledger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func openLedger(t *testing.T, clock quartz.Clock, mutate func(*Config)) (*Ledger, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "energy_usage.json")
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := Open(clock, log.NewWithOptions(io.Discard, log.Options{}), cfg)
	require.NoError(t, err)
	return l, cfg.Path
}

func TestDailyCapScenario(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(14, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, func(c *Config) { c.DailyLimit = 10 })

	for i := range 10 {
		require.True(t, l.CanUseEnergy(), "use %d", i+1)
		require.NoError(t, l.RecordUse(1))
	}
	assert.False(t, l.CanUseEnergy())
	assert.Equal(t, 10, l.Used())

	err := l.RecordUse(1)
	assert.ErrorIs(t, err, ErrDailyCapReached)
	assert.Equal(t, 10, l.Used())
	assert.False(t, l.CanUseEnergy())

	left, unlimited := l.Remaining()
	assert.False(t, unlimited)
	assert.Zero(t, left)
}

func TestRecordUseClampsAtCap(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(14, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, func(c *Config) { c.DailyLimit = 5 })

	require.NoError(t, l.RecordUse(3))
	require.NoError(t, l.RecordUse(4))
	assert.Equal(t, 5, l.Used())
}

func TestUnlimited(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(14, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, nil)

	for range 500 {
		require.NoError(t, l.RecordUse(1))
	}
	assert.True(t, l.CanUseEnergy())
	_, unlimited := l.Remaining()
	assert.True(t, unlimited)
}

func TestResetFiresOnce(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(10, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, func(c *Config) { c.DailyLimit = 10 })
	require.NoError(t, l.RecordUse(7))

	reset, err := l.CheckDailyReset()
	require.NoError(t, err)
	assert.False(t, reset, "noon has not passed yet")

	clock.Set(at(12, 1)).MustWait(ctx)
	reset, err = l.CheckDailyReset()
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Zero(t, l.Used())

	reset, err = l.CheckDailyReset()
	require.NoError(t, err)
	assert.False(t, reset, "a second check on the same day must not reset again")
}

func TestOfflineAcrossRollover(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(15, 0)).MustWait(ctx)
	l, path := openLedger(t, clock, func(c *Config) { c.DailyLimit = 10 })
	require.NoError(t, l.RecordUse(10))

	// Process restarts three days later.
	clock.Set(at(15, 0).AddDate(0, 0, 3)).MustWait(ctx)
	cfg := DefaultConfig()
	cfg.Path = path
	cfg.DailyLimit = 10
	reopened, err := Open(clock, log.NewWithOptions(io.Discard, log.Options{}), cfg)
	require.NoError(t, err)

	assert.Zero(t, reopened.Used())
	reset, err := reopened.CheckDailyReset()
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestPersistsEveryMutation(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(14, 0)).MustWait(ctx)
	l, path := openLedger(t, clock, func(c *Config) { c.DailyLimit = 10 })
	require.NoError(t, l.RecordUse(3))

	cfg := DefaultConfig()
	cfg.Path = path
	cfg.DailyLimit = 10
	reopened, err := Open(clock, log.NewWithOptions(io.Discard, log.Options{}), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Used())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"energy_used_today": 3`)
	assert.Contains(t, string(data), `"last_reset_timestamp"`)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg := DefaultConfig()
	cfg.Path = path
	_, err := Open(quartz.NewMock(t), log.NewWithOptions(io.Discard, log.Options{}), cfg)
	assert.Error(t, err)
}

func TestWindowWithoutCap(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(3, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, func(c *Config) { c.StartHour = 6 })

	assert.False(t, l.IsInWindow())
	assert.False(t, l.CanExploreNow())
	assert.Equal(t, 3*time.Hour, l.TimeUntilWindow())

	clock.Set(at(7, 0)).MustWait(ctx)
	assert.True(t, l.IsInWindow())
	assert.True(t, l.CanExploreNow())
	assert.Zero(t, l.TimeUntilWindow())

	clock.Set(at(12, 0)).MustWait(ctx)
	assert.False(t, l.IsInWindow(), "the window closes at the reset hour")
	assert.Equal(t, 18*time.Hour, l.TimeUntilWindow())
}

func TestWindowWrapsMidnight(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{21, false},
		{22, true},
		{23, true},
		{0, true},
		{5, true},
		{6, false},
	}

	l := &Ledger{cfg: Config{StartHour: 22, ResetHour: 6}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.inWindow(tt.hour), "hour %d", tt.hour)
	}

	open := &Ledger{cfg: Config{StartHour: NoWindow, ResetHour: 6}}
	assert.True(t, open.inWindow(7))
}

func TestTimeUntilReset(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(9, 30)).MustWait(ctx)
	l, _ := openLedger(t, clock, nil)
	assert.Equal(t, 2*time.Hour+30*time.Minute, l.TimeUntilReset())

	clock.Set(at(12, 0)).MustWait(ctx)
	assert.Equal(t, 24*time.Hour, l.TimeUntilReset())
}

func TestManualReset(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(at(14, 0)).MustWait(ctx)
	l, _ := openLedger(t, clock, func(c *Config) { c.DailyLimit = 2 })
	require.NoError(t, l.RecordUse(2))
	require.False(t, l.CanUseEnergy())

	require.NoError(t, l.Reset())
	assert.True(t, l.CanUseEnergy())

	snap := l.Snapshot()
	assert.Equal(t, 0, snap.Used)
	assert.Equal(t, 2, snap.Limit)
	assert.True(t, snap.CanExplore)
	assert.Equal(t, at(12, 0).AddDate(0, 0, 1), snap.NextReset)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{ResetHour: 24, StartHour: NoWindow}.Validate())
	assert.Error(t, Config{ResetHour: 12, StartHour: -2}.Validate())
	assert.Error(t, Config{DailyLimit: -1, StartHour: NoWindow}.Validate())
}
