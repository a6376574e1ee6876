package battle

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/ostrobot/internal/act"
	"github.com/lox/ostrobot/internal/act/acttest"
	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/chat/chattest"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/status"
)

const appearText = "🐺 З'явився Вовк (Рівень 3)!\n\nВаші характеристики:\n❤️ Здоров'я: 80/100"

var roundButtons = chat.Grid(
	chat.Row("⚔️ Атака", "✨ Навички"),
	chat.Row("🧪 Зілля", "🏃 Втеча"),
)

func roundText(n, hp int) string {
	return fmt.Sprintf("--- Раунд %d ---\n👤 Ви (%d/100)\n🐺 Вовк (30/60)", n, hp)
}

type harness struct {
	fake     *chattest.Fake
	sleeper  *acttest.Sleeper
	tracker  *status.Tracker
	resolver *Resolver
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	return newHarnessWithPolicy(t, act.Await, mutate)
}

func newHarnessWithPolicy(t *testing.T, policy act.ClickPolicy, mutate func(*Config)) *harness {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	clock := quartz.NewMock(t)
	fake := chattest.New("game")
	sleeper := acttest.NewSleeper(clock)

	actCfg := act.DefaultConfig()
	actCfg.Chat = "game"
	actCfg.ClickPolicy = policy
	driver := act.New(fake, sleeper, nil, logger, actCfg)
	tracker := status.New(clock, logger, status.Options{MaxHP: 100, MaxEnergy: 10})

	cfg := DefaultConfig()
	cfg.Policy.UseSkills = false
	if mutate != nil {
		mutate(&cfg)
	}
	return &harness{
		fake:     fake,
		sleeper:  sleeper,
		tracker:  tracker,
		resolver: NewResolver(driver, tracker, clock, logger, cfg),
	}
}

func hasLabel(b chat.Button, substr string) bool {
	return strings.Contains(b.Label, substr)
}

func TestFightVictory(t *testing.T) {
	h := newHarness(t, nil)
	appear := h.fake.Post(appearText, nil)
	h.fake.Post(roundText(1, 80), roundButtons)
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		if hasLabel(b, "Атака") {
			f.Post("🏆 Перемога!\nВи отримали:\n💰 5 золота\n⭐ 12 досвіду", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(appear))
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Equal(t, "Вовк", s.Enemy)
	assert.False(t, s.ShouldEscape)
	assert.Equal(t, []string{"⚔️ Атака"}, h.fake.ClickedLabels())
	assert.Equal(t, 5, s.Rewards.Gold)
	assert.Equal(t, 80, s.FinalHP)
	assert.Equal(t, 1, s.Actions[Attack])

	c := h.tracker.Counters()
	assert.Equal(t, 1, c.Battles)
	assert.Equal(t, 1, c.Victories)
	assert.Equal(t, 5, h.tracker.Snapshot().Gold)
}

func TestFightUsesPotionAtThreshold(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Policy.HealThreshold = 50 })
	appear := h.fake.Post(appearText, nil)
	h.fake.Post(roundText(2, 40), roundButtons)
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		switch {
		case b.Label == "🧪 Зілля":
			f.Post("Оберіть зілля:", chat.Grid(chat.Row("🧪 Мале зілля (2)"), chat.Row("⬅️ Назад")))
		case hasLabel(b, "Мале зілля"):
			f.Post("🧪 Відновлено 30 здоров'я!", nil)
			f.Post("🏆 Перемога!\nВи отримали:\n💰 3 золота", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(appear))
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Equal(t, []string{"🧪 Зілля", "🧪 Мале зілля (2)"}, h.fake.ClickedLabels())
	assert.Equal(t, 1, s.Actions[UsePotion])
}

func TestFightSkillSlotLast(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Policy.UseSkills = true
		c.Policy.SkillSlot = SlotLast
	})
	round := h.fake.Post(roundText(1, 90), roundButtons)
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		switch {
		case hasLabel(b, "Навички"):
			f.Post("Оберіть навичку:", chat.Grid(chat.Row("🔥 Вогняна куля", "❄️ Крижана стріла"), chat.Row("⬅️ Назад")))
		case hasLabel(b, "Крижана"):
			f.Post("Вовк занудьгував і втік", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(round))
	require.NoError(t, err)
	assert.Equal(t, Fled, s.Outcome)
	assert.Equal(t, []string{"✨ Навички", "❄️ Крижана стріла"}, h.fake.ClickedLabels())
}

func TestEscapeListSetsShouldEscape(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.EscapeList = []string{"вовк"} })
	appear := h.fake.Post(appearText, nil)
	h.fake.Post(roundText(1, 80), roundButtons)
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		if hasLabel(b, "Втеча") {
			f.Post("🏃 Вам вдалося втекти!", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(appear))
	require.NoError(t, err)
	assert.True(t, s.ShouldEscape)
	assert.Equal(t, Escaped, s.Outcome)
	assert.Equal(t, 1, s.EscapeAttempts)
	assert.Equal(t, 1, h.tracker.Counters().Escapes)
}

func TestEscapeCapForcesAttack(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.EscapeList = []string{"Вовк"} })
	appear := h.fake.Post(appearText, nil)
	h.fake.Post(roundText(1, 80), roundButtons)

	round := 1
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		switch {
		case hasLabel(b, "Втеча"):
			round++
			f.Post("❌ Втеча не вдалася! Вовк завдав 3 шкоди", nil)
			f.Post(roundText(round, 80), roundButtons)
		case hasLabel(b, "Атака"):
			f.Post("🏆 Перемога!\nВи отримали:\n💰 1 золота", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(appear))
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Equal(t, 5, s.EscapeAttempts)

	labels := h.fake.ClickedLabels()
	require.Len(t, labels, 6)
	for _, l := range labels[:5] {
		assert.Equal(t, "🏃 Втеча", l)
	}
	assert.Equal(t, "⚔️ Атака", labels[5])
}

func TestRoundCapAborts(t *testing.T) {
	h := newHarness(t, nil)
	first := h.fake.Post(roundText(1, 90), roundButtons)

	round := 1
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, _ chat.Button) {
		round++
		f.Post(roundText(round, 90), roundButtons)
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(first))
	require.NoError(t, err)
	assert.Equal(t, Aborted, s.Outcome)
	assert.Equal(t, 30, s.Rounds)
	assert.LessOrEqual(t, len(h.fake.Clicks()), 30)
	assert.Equal(t, 1, h.tracker.Counters().Aborted)
}

func TestEmptyPollsAreRetried(t *testing.T) {
	h := newHarness(t, nil)
	first := h.fake.Post(roundText(1, 90), roundButtons)

	sleeps := 0
	h.sleeper.OnSleep = func(time.Duration) {
		sleeps++
		if sleeps == 4 {
			h.fake.Post("💀 Ви зазнали поразки!", nil)
		}
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(first))
	require.NoError(t, err)
	assert.Equal(t, Loss, s.Outcome)
	assert.Len(t, h.fake.Clicks(), 1, "the consumed round is never clicked twice")
	assert.Equal(t, 1, h.tracker.Snapshot().HP)
}

func TestOngoingBattleIgnoresOldOutcome(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.Post("🏆 Перемога!\nВи отримали:\n💰 9 золота", nil)
	h.fake.Post(roundText(4, 70), roundButtons)
	notice := h.fake.Post("⚠️ Ви в бою!", nil)
	h.fake.OnClick = func(f *chattest.Fake, _ chat.Message, b chat.Button) {
		if hasLabel(b, "Атака") {
			f.Post("🏆 Перемога!\nВи отримали:\n💰 2 золота", nil)
		}
	}

	start := classify.Classify(notice)
	require.True(t, start.Ongoing)

	s, err := h.resolver.Fight(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Equal(t, 2, s.Rewards.Gold)
	assert.Equal(t, []string{"⚔️ Атака"}, h.fake.ClickedLabels())
}

func TestVictoryWithStaleButtonsIsNotClicked(t *testing.T) {
	h := newHarness(t, nil)
	m := h.fake.Post("--- Раунд 5 ---\n👤 Ви (50/100)\nВи отримали:\n💰 4 золота", roundButtons)

	s, err := h.resolver.Fight(context.Background(), classify.Classify(m))
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Empty(t, h.fake.Clicks())
}

func TestTransportFailureAborts(t *testing.T) {
	h := newHarness(t, nil)
	appear := h.fake.Post(appearText, nil)
	h.fake.FailFetch(assert.AnError, assert.AnError, assert.AnError, assert.AnError)

	s, err := h.resolver.Fight(context.Background(), classify.Classify(appear))
	require.ErrorIs(t, err, act.ErrTransport)
	assert.Equal(t, Aborted, s.Outcome)
	assert.True(t, s.Done())
	assert.Equal(t, 1, h.tracker.Counters().Aborted)
}

func TestFireClicksWithLaggingEdits(t *testing.T) {
	h := newHarnessWithPolicy(t, act.Fire, nil)
	first := h.fake.Post(roundText(1, 90), roundButtons)

	clicked := make(chan chat.Button, 8)
	h.fake.OnClick = func(_ *chattest.Fake, _ chat.Message, b chat.Button) {
		clicked <- b
	}

	// The game edits the round message in place, but only after the resolver
	// has already read the old text once more.
	round := 1
	var pending func()
	h.sleeper.OnSleep = func(time.Duration) {
		if pending != nil {
			pending()
			pending = nil
			return
		}
		select {
		case <-clicked:
		case <-time.After(5 * time.Second):
			require.FailNow(t, "click never arrived")
		}
		round++
		text, buttons := roundText(round, 90), roundButtons
		if round > 3 {
			text, buttons = "🏆 Перемога!\nВи отримали:\n💰 5 золота", nil
		}
		pending = func() { h.fake.Edit(first.ID, text, buttons) }
	}

	s, err := h.resolver.Fight(context.Background(), classify.Classify(first))
	require.NoError(t, err)
	assert.Equal(t, Win, s.Outcome)
	assert.Equal(t, 5, s.Rewards.Gold)
	assert.Less(t, s.Rounds, DefaultConfig().RoundCap)
	assert.Equal(t, []string{"⚔️ Атака", "⚔️ Атака", "⚔️ Атака"}, h.fake.ClickedLabels(), "each round text is clicked once")
	assert.Equal(t, 3, s.Actions[Attack])
}

func TestCancelledBattleIsCountedAsAborted(t *testing.T) {
	h := newHarness(t, nil)
	first := h.fake.Post(roundText(1, 70), roundButtons)

	ctx, cancel := context.WithCancel(context.Background())
	h.sleeper.OnSleep = func(time.Duration) { cancel() }

	s, err := h.resolver.Fight(ctx, classify.Classify(first))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, s.Outcome)
	assert.True(t, s.Done())
	assert.Equal(t, 70, s.FinalHP)
	assert.Equal(t, 1, h.tracker.Counters().Aborted)
}
