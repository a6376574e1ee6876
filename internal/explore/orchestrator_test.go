package explore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/ostrobot/internal/act"
	"github.com/lox/ostrobot/internal/act/acttest"
	"github.com/lox/ostrobot/internal/battle"
	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/chat/chattest"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/ledger"
	"github.com/lox/ostrobot/internal/parse"
	"github.com/lox/ostrobot/internal/status"
)

type post struct {
	text    string
	buttons [][]chat.Button
}

func profile(hp, maxHP, energy int) string {
	return fmt.Sprintf("⚔️ Karl - Рівень 5\n❤️ Здоров'я: %d/%d\n⚡ Енергія: %d/10\n💰 Золото: 100", hp, maxHP, energy)
}

func profileFields(hp, maxHP, energy int) parse.Profile {
	return parse.Profile{Name: "Karl", Level: 5, HP: hp, MaxHP: maxHP, Energy: energy, MaxEnergy: 10, Gold: 100}
}

// game scripts the bot side of the chat. Each status command pops the next
// profile (the last one repeats); each explore command posts the next reply.
type game struct {
	mu       sync.Mutex
	profiles []string
	explores [][]post
	heals    []post
}

func (g *game) onSend(f *chattest.Fake, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := DefaultConfig()
	switch text {
	case cfg.StartCommand:
		f.Post("Головне меню", nil)
	case cfg.StatusCommand:
		if len(g.profiles) == 0 {
			return
		}
		f.Post(g.profiles[0], nil)
		if len(g.profiles) > 1 {
			g.profiles = g.profiles[1:]
		}
	case cfg.ExploreCommand:
		if len(g.explores) == 0 {
			return
		}
		for _, p := range g.explores[0] {
			f.Post(p.text, p.buttons)
		}
		g.explores = g.explores[1:]
	default:
		for _, p := range g.heals {
			f.Post(p.text, p.buttons)
		}
	}
}

type memRecorder struct {
	battles      []*battle.Session
	explorations []classify.Kind
}

func (r *memRecorder) RecordBattle(_ context.Context, _ string, s *battle.Session) error {
	r.battles = append(r.battles, s)
	return nil
}

func (r *memRecorder) RecordExploration(_ context.Context, _ string, e classify.Event) error {
	r.explorations = append(r.explorations, e.Kind)
	return nil
}

type fixture struct {
	o        *Orchestrator
	game     *game
	fake     *chattest.Fake
	sleeper  *acttest.Sleeper
	clock    *quartz.Mock
	tracker  *status.Tracker
	ledger   *ledger.Ledger
	recorder *memRecorder
}

type options struct {
	explore func(*Config)
	ledger  func(*ledger.Config)
	start   time.Time
}

func newFixture(t *testing.T, opts options) *fixture {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	clock := quartz.NewMock(t)
	start := opts.start
	if start.IsZero() {
		start = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	clock.Set(start).MustWait(context.Background())

	g := &game{}
	fake := chattest.New("game")
	fake.OnSend = g.onSend
	sleeper := acttest.NewSleeper(clock)

	actCfg := act.DefaultConfig()
	actCfg.Chat = "game"
	driver := act.New(fake, sleeper, nil, logger, actCfg)

	tracker := status.New(clock, logger, status.Options{MaxHP: 100, MaxEnergy: 10})

	ledCfg := ledger.DefaultConfig()
	ledCfg.Path = filepath.Join(t.TempDir(), "energy_usage.json")
	if opts.ledger != nil {
		opts.ledger(&ledCfg)
	}
	led, err := ledger.Open(clock, logger, ledCfg)
	require.NoError(t, err)

	battleCfg := battle.DefaultConfig()
	battleCfg.Policy.UseSkills = false
	resolver := battle.NewResolver(driver, tracker, clock, logger, battleCfg)

	cfg := DefaultConfig()
	if opts.explore != nil {
		opts.explore(&cfg)
	}
	rec := &memRecorder{}
	o := New(Deps{
		Actor:    driver,
		Fighter:  resolver,
		Tracker:  tracker,
		Ledger:   led,
		Clock:    clock,
		Logger:   logger,
		Recorder: rec,
	}, cfg)

	return &fixture{o: o, game: g, fake: fake, sleeper: sleeper, clock: clock, tracker: tracker, ledger: led, recorder: rec}
}

func (f *fixture) sentCount(text string) int {
	n := 0
	for _, s := range f.fake.Sent() {
		if s == text {
			n++
		}
	}
	return n
}

var explore = DefaultConfig().ExploreCommand

func TestStepGenericResultSpendsEnergy(t *testing.T) {
	f := newFixture(t, options{})
	f.game.explores = [][]post{{{text: "Ви знайшли стару монету"}}}
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 4, f.tracker.Snapshot().Energy)
	assert.Equal(t, 1, f.ledger.Used())
	assert.Equal(t, []classify.Kind{classify.GenericExplorationResult}, f.recorder.explorations)
}

func TestStepWaitsPastEchoAndMenuForLateReply(t *testing.T) {
	f := newFixture(t, options{})
	f.fake.Echo = true
	f.game.explores = [][]post{{{text: "Головне меню"}}}
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	polls := 0
	f.sleeper.OnSleep = func(d time.Duration) {
		if d != DefaultConfig().ResponseDelay {
			return
		}
		if polls++; polls == 2 {
			f.fake.Post("Ви знайшли стару монету", nil)
		}
	}

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 1, f.ledger.Used())
	assert.Equal(t, 4, f.tracker.Snapshot().Energy)
	assert.Zero(t, f.tracker.Counters().Misses)
	assert.Equal(t, []classify.Kind{classify.GenericExplorationResult}, f.recorder.explorations)
}

func TestStepBeeStingAppliesDamage(t *testing.T) {
	f := newFixture(t, options{})
	f.game.explores = [][]post{{{text: "🐝 Під час пошуків вас боляче вжалив джміль (-4 ❤️ здоров'я)"}}}
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 96, f.tracker.Snapshot().HP)
}

func TestStepDispatchesBattle(t *testing.T) {
	f := newFixture(t, options{})
	f.game.explores = [][]post{{
		{text: "🐺 З'явився Вовк!\n\nВаші характеристики:\n❤️ Здоров'я: 90/100"},
		{text: "--- Раунд 1 ---\n👤 Ви (90/100)", buttons: chat.Grid(chat.Row("⚔️ Атака", "🏃 Втеча"))},
	}}
	f.fake.OnClick = func(fk *chattest.Fake, _ chat.Message, b chat.Button) {
		if strings.Contains(b.Label, "Атака") {
			fk.Post("🏆 Перемога!\nВи отримали:\n💰 7 золота", nil)
		}
	}
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	require.Len(t, f.recorder.battles, 1)
	assert.Equal(t, battle.Win, f.recorder.battles[0].Outcome)
	assert.Equal(t, "Вовк", f.recorder.battles[0].Enemy)
	assert.Equal(t, f.recorder.battles[0], f.o.LastBattle())
	assert.Equal(t, 4, f.tracker.Snapshot().Energy)
	assert.Equal(t, 1, f.ledger.Used())
	assert.Equal(t, 1, f.tracker.Counters().Victories)
}

func TestStepTakesOpportunity(t *testing.T) {
	f := newFixture(t, options{})
	f.game.explores = [][]post{{
		{text: "Ви натрапили на покинутий табір", buttons: chat.Grid(chat.Row("🚶 Піти далі"), chat.Row("🏕️ Обшукати табір"))},
	}}
	f.fake.OnClick = func(fk *chattest.Fake, _ chat.Message, b chat.Button) {
		fk.Post("Ви знайшли 3 золота (+5 ❤️ здоров'я)", nil)
	}
	f.tracker.ApplyProfile(profileFields(90, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, []string{"🏕️ Обшукати табір"}, f.fake.ClickedLabels())
	assert.Equal(t, 95, f.tracker.Snapshot().HP)
	assert.Equal(t, 1, f.tracker.Counters().Opportunities)
	assert.Equal(t, 1, f.ledger.Used())
}

func TestNoEnergyRefusalThenEarlyWake(t *testing.T) {
	f := newFixture(t, options{})
	f.game.explores = [][]post{{{text: "❌ Недостатньо енергії! Енергія відновиться через 12 хв"}}}
	f.game.profiles = []string{profile(100, 100, 3)}
	f.tracker.ApplyProfile(profileFields(100, 100, 1))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 0, f.tracker.Snapshot().Energy)
	assert.Zero(t, f.ledger.Used(), "a refusal does not consume energy")
	_, pending := f.tracker.EnergyRegenRemaining()
	require.True(t, pending)

	require.NoError(t, f.o.Step(context.Background()))
	_, pending = f.tracker.EnergyRegenRemaining()
	assert.False(t, pending)
	assert.Equal(t, 3, f.tracker.Snapshot().Energy)
	assert.Equal(t, 1, f.sleeper.Count(3*time.Minute), "woke on the first poll, not after 12 minutes")
	assert.Equal(t, 1, f.sentCount(explore))
}

func TestZeroEnergyDoesNotExplore(t *testing.T) {
	f := newFixture(t, options{})
	f.game.profiles = []string{profile(100, 100, 0), profile(100, 100, 0), profile(100, 100, 0), profile(100, 100, 0)}
	f.tracker.ApplyProfile(profileFields(100, 100, 0))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Zero(t, f.sentCount(explore))
	assert.Equal(t, 3, f.sleeper.Count(3*time.Minute))
	assert.Equal(t, 4, f.sentCount(DefaultConfig().StatusCommand))
	_, pending := f.tracker.EnergyRegenRemaining()
	assert.False(t, pending)
}

func TestLowHPWaitsUntilThreshold(t *testing.T) {
	f := newFixture(t, options{})
	f.game.profiles = []string{profile(50, 100, 5), profile(70, 100, 5), profile(85, 100, 5)}
	f.tracker.ApplyProfile(profileFields(30, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 85, f.tracker.Snapshot().HP)
	assert.Equal(t, 3, f.sleeper.Count(2*time.Minute))
	assert.Zero(t, f.sentCount(explore))
}

func TestLowHPWaitFollowsRegenCountdown(t *testing.T) {
	f := newFixture(t, options{})
	f.game.profiles = []string{profile(40, 100, 5)}
	p := profileFields(40, 100, 5)
	p.HPRegenMinutes = 5
	f.tracker.ApplyProfile(p)

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 3, f.sleeper.Count(2*time.Minute))
	assert.Equal(t, 4, f.sentCount(DefaultConfig().StatusCommand))
	assert.Less(t, f.sleeper.Total(), 10*time.Minute, "countdown plus one poll, not the full cap")
	assert.Zero(t, f.sentCount(explore))
}

func TestHealingItem(t *testing.T) {
	f := newFixture(t, options{explore: func(c *Config) { c.HealCommand = "💊 Аптечка" }})
	f.game.heals = []post{{text: "🧪 Відновлено 40 здоров'я!"}}
	f.game.profiles = []string{profile(70, 100, 5)}
	f.tracker.ApplyProfile(profileFields(30, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 1, f.sentCount("💊 Аптечка"))
	assert.Equal(t, 70, f.tracker.Snapshot().HP)
}

func TestHealingItemWithoutEffectIsBlocked(t *testing.T) {
	f := newFixture(t, options{explore: func(c *Config) { c.HealCommand = "💊 Аптечка" }})
	f.game.heals = []post{{text: "У вас немає аптечок"}}
	f.game.profiles = []string{profile(85, 100, 5)}
	f.tracker.ApplyProfile(profileFields(30, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	f.tracker.ApplyProfile(profileFields(30, 100, 5))
	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 1, f.sentCount("💊 Аптечка"))
}

func TestOutsideWindowWaits(t *testing.T) {
	f := newFixture(t, options{
		start:  time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
		ledger: func(c *ledger.Config) { c.StartHour = 6 },
	})
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Zero(t, f.sentCount(explore))
	assert.Equal(t, []time.Duration{10 * time.Minute}, f.sleeper.Slept())
}

func TestDailyCapWaits(t *testing.T) {
	f := newFixture(t, options{ledger: func(c *ledger.Config) { c.DailyLimit = 1 }})
	require.NoError(t, f.ledger.RecordUse(1))
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Zero(t, f.sentCount(explore))
}

func TestMissesForceResync(t *testing.T) {
	f := newFixture(t, options{})
	for range 4 {
		f.game.explores = append(f.game.explores, []post{{text: "..."}})
	}
	f.game.profiles = []string{profile(100, 100, 8)}
	f.tracker.ApplyProfile(profileFields(100, 100, 9))

	for range 3 {
		require.NoError(t, f.o.Step(context.Background()))
	}
	assert.Zero(t, f.sentCount(DefaultConfig().StatusCommand))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Equal(t, 1, f.sentCount(DefaultConfig().StatusCommand))
	assert.Equal(t, 8, f.tracker.Snapshot().Energy)
	assert.Zero(t, f.ledger.Used())
}

func TestStaleResultIsNotRecounted(t *testing.T) {
	f := newFixture(t, options{})
	f.fake.Post("Ви знайшли стару монету", nil)
	f.game.explores = [][]post{{}}
	f.tracker.ApplyProfile(profileFields(100, 100, 5))

	require.NoError(t, f.o.Step(context.Background()))
	assert.Zero(t, f.ledger.Used())
	assert.Equal(t, 1, f.tracker.Counters().Misses)
}

func TestCheckStatusRetriesWithGrowingDelay(t *testing.T) {
	f := newFixture(t, options{})

	_, err := f.o.CheckStatus(context.Background())
	require.ErrorIs(t, err, ErrProfileUnavailable)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, f.sleeper.Slept())
	assert.Equal(t, 3, f.sentCount(DefaultConfig().StatusCommand))
}

func TestCheckStatusIgnoresOldReport(t *testing.T) {
	f := newFixture(t, options{})
	f.fake.Post(profile(10, 100, 0), nil)

	_, err := f.o.CheckStatus(context.Background())
	assert.ErrorIs(t, err, ErrProfileUnavailable)
}

func TestRunStopsAtExplorationLimit(t *testing.T) {
	f := newFixture(t, options{explore: func(c *Config) { c.MaxExplorations = 3 }})
	f.game.profiles = []string{profile(100, 100, 10)}
	for range 3 {
		f.game.explores = append(f.game.explores, []post{{text: "Ви помітили слід"}})
	}

	require.NoError(t, f.o.Run(context.Background()))
	assert.Equal(t, 3, f.sentCount(explore))
	assert.Equal(t, 3, f.ledger.Used())
	assert.Equal(t, 7, f.tracker.Snapshot().Energy)
	assert.Equal(t, 1, f.sentCount("/start"))
}

func TestRunFailsWithoutProfile(t *testing.T) {
	f := newFixture(t, options{})
	err := f.o.Run(context.Background())
	assert.ErrorIs(t, err, ErrProfileUnavailable)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, options{})
	f.game.profiles = []string{profile(100, 100, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	explores := 0
	f.fake.OnSend = func(fk *chattest.Fake, text string) {
		f.game.onSend(fk, text)
		if text == explore {
			explores++
			fk.Post("Ви чуєте шурхіт", nil)
			if explores == 2 {
				cancel()
			}
		}
	}

	require.NoError(t, f.o.Run(ctx))
	assert.Equal(t, 2, explores)
}

func TestStartResolvesLeftoverBattle(t *testing.T) {
	f := newFixture(t, options{})
	f.fake.Post("--- Раунд 3 ---\n👤 Ви (60/100)", chat.Grid(chat.Row("⚔️ Атака")))
	f.game.profiles = []string{profile(60, 100, 4)}
	f.fake.OnClick = func(fk *chattest.Fake, _ chat.Message, b chat.Button) {
		fk.Post("Ви отримали:\n💰 2 золота", nil)
	}

	require.NoError(t, f.o.Start(context.Background()))
	require.Len(t, f.recorder.battles, 1)
	assert.Equal(t, battle.Win, f.recorder.battles[0].Outcome)
	assert.Equal(t, 4, f.tracker.Snapshot().Energy)
}

func TestPickPrimary(t *testing.T) {
	events := classify.Batch([]chat.Message{
		{ID: 3, Text: "Ви знайшли гриб"},
		{ID: 2, Text: "🐺 З'явився Вовк!"},
		{ID: 1, Text: "🎉 Рівень підвищено! 🎉\n5 → 6"},
	})
	e, ok := pickPrimary(events)
	require.True(t, ok)
	assert.Equal(t, classify.BattleAppeared, e.Kind)

	_, ok = pickPrimary(classify.Batch([]chat.Message{{ID: 1, Text: "..."}}))
	assert.False(t, ok)
}
