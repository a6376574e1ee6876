// Package explore runs the top-level automation loop: decide whether to
// explore, send the explore command, classify the reply and dispatch to the
// battle resolver or a one-click opportunity handler.
package explore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/ostrobot/internal/battle"
	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/ledger"
	"github.com/lox/ostrobot/internal/parse"
	"github.com/lox/ostrobot/internal/status"
)

// ErrProfileUnavailable is returned when a status check never produced a
// parsable report.
var ErrProfileUnavailable = errors.New("explore: status report unavailable")

// Actor performs chat actions.
type Actor interface {
	Send(ctx context.Context, text string) error
	Fetch(ctx context.Context) ([]chat.Message, error)
	Click(ctx context.Context, msg chat.Message, b chat.Button) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Fighter resolves one battle.
type Fighter interface {
	Fight(ctx context.Context, start classify.Event) (*battle.Session, error)
}

// Recorder keeps a history of battles and exploration outcomes.
type Recorder interface {
	RecordBattle(ctx context.Context, runID string, s *battle.Session) error
	RecordExploration(ctx context.Context, runID string, e classify.Event) error
}

// Breaker returns a long pause after a battle when one is due.
type Breaker interface {
	BattleFinished() (time.Duration, bool)
}

// Config holds the commands and every loop threshold.
type Config struct {
	ExploreCommand string
	StatusCommand  string
	StartCommand   string
	// HealCommand uses a healing item; empty disables it.
	HealCommand string

	// MinHPPercent is the explore-safety threshold.
	MinHPPercent float64
	// HealItemPercent is the HP percentage below which the healing item is used.
	HealItemPercent float64
	HealRetryAfter  time.Duration

	ResponseDelay time.Duration
	ResponsePolls int

	EnergyPollInterval time.Duration
	DefaultEnergyWait  time.Duration
	HPPollInterval     time.Duration
	MaxHPWait          time.Duration
	BudgetPollInterval time.Duration

	MissThreshold        int
	StatusRetries        int
	StatusRetryDelay     time.Duration
	MaxConsecutiveErrors int
	ErrorCooldown        time.Duration

	// MaxExplorations stops Run after this many explorations; zero runs forever.
	MaxExplorations int
}

// DefaultConfig returns the commands and intervals of the live game.
func DefaultConfig() Config {
	return Config{
		ExploreCommand:       "🗺️ Досліджувати (⚡1)",
		StatusCommand:        "🧍 Персонаж",
		StartCommand:         "/start",
		MinHPPercent:         80,
		HealItemPercent:      50,
		HealRetryAfter:       30 * time.Minute,
		ResponseDelay:        2 * time.Second,
		ResponsePolls:        3,
		EnergyPollInterval:   3 * time.Minute,
		DefaultEnergyWait:    10 * time.Minute,
		HPPollInterval:       2 * time.Minute,
		MaxHPWait:            3 * time.Hour,
		BudgetPollInterval:   10 * time.Minute,
		MissThreshold:        3,
		StatusRetries:        3,
		StatusRetryDelay:     2 * time.Second,
		MaxConsecutiveErrors: 5,
		ErrorCooldown:        5 * time.Minute,
	}
}

// Deps are the collaborators of an Orchestrator. Recorder and Breaker are
// optional.
type Deps struct {
	Actor    Actor
	Fighter  Fighter
	Tracker  *status.Tracker
	Ledger   *ledger.Ledger
	Clock    quartz.Clock
	Logger   *log.Logger
	Recorder Recorder
	Breaker  Breaker
}

// Orchestrator owns the loop. Game state lives in the tracker and ledger;
// the orchestrator only keeps a reference to the latest battle.
type Orchestrator struct {
	actor    Actor
	fighter  Fighter
	tracker  *status.Tracker
	ledger   *ledger.Ledger
	clock    quartz.Clock
	logger   *log.Logger
	recorder Recorder
	breaker  Breaker
	cfg      Config

	runID       string
	lastBattle  *battle.Session
	healBlocked time.Time
}

// New returns an orchestrator with a fresh run ID.
func New(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		actor:    deps.Actor,
		fighter:  deps.Fighter,
		tracker:  deps.Tracker,
		ledger:   deps.Ledger,
		clock:    deps.Clock,
		logger:   deps.Logger.WithPrefix("explore"),
		recorder: deps.Recorder,
		breaker:  deps.Breaker,
		cfg:      cfg,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this process's run in the journal.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// LastBattle returns the most recently resolved battle, if any.
func (o *Orchestrator) LastBattle() *battle.Session {
	return o.lastBattle
}

// Run performs the start handshake and loops until ctx is cancelled, the
// exploration limit is reached or a status check fails for good.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Starting", "run", o.runID)
	if err := o.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	consecutive := 0
	for {
		if ctx.Err() != nil {
			o.logger.Info("Stopping", "run", o.runID)
			return nil
		}
		if o.cfg.MaxExplorations > 0 && o.tracker.Counters().Explorations >= o.cfg.MaxExplorations {
			o.logger.Info("Exploration limit reached", "limit", o.cfg.MaxExplorations)
			return nil
		}

		err := o.Step(ctx)
		switch {
		case err == nil:
			consecutive = 0
		case ctx.Err() != nil:
			o.logger.Info("Stopping", "run", o.runID)
			return nil
		case errors.Is(err, ErrProfileUnavailable):
			return err
		default:
			consecutive++
			o.logger.Warn("Step failed", "error", err, "consecutive", consecutive)
			if consecutive >= o.cfg.MaxConsecutiveErrors {
				o.logger.Error("Too many consecutive errors, cooling down", "cooldown", o.cfg.ErrorCooldown)
				if err := o.actor.Sleep(ctx, o.cfg.ErrorCooldown); err != nil {
					return nil
				}
				consecutive = 0
			}
		}
	}
}

// Start opens the game menu, resolves a battle left over from a previous
// run and loads the character status.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.actor.Send(ctx, o.cfg.StartCommand); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := o.actor.Sleep(ctx, o.cfg.ResponseDelay); err != nil {
		return err
	}
	msgs, err := o.actor.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	latest, found := classify.First(msgs, func(k classify.Kind) bool { return k.StartsBattle() || k.Terminal() })
	if found && latest.Kind.StartsBattle() {
		o.logger.Info("Battle in progress at start-up")
		if err := o.fight(ctx, latest); err != nil {
			return err
		}
	} else if in := newer(msgs, 0); len(in) > 0 && classify.Classify(in[0]).Kind == classify.Idle {
		if b, ok := in[0].FirstButton(); ok {
			if err := o.actor.Click(ctx, in[0], b); err != nil {
				return fmt.Errorf("start: %w", err)
			}
		}
	}

	p, err := o.CheckStatus(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("Character loaded", "name", p.Name, "level", p.Level, "hp", fmt.Sprintf("%d/%d", p.HP, p.MaxHP), "energy", fmt.Sprintf("%d/%d", p.Energy, p.MaxEnergy))
	return nil
}

// Step runs one loop iteration.
func (o *Orchestrator) Step(ctx context.Context) error {
	if left, pending := o.tracker.EnergyRegenRemaining(); pending {
		return o.waitForEnergy(ctx, left)
	}

	snap := o.tracker.Snapshot()
	if snap.HPPercent() < o.cfg.MinHPPercent {
		return o.recoverHP(ctx)
	}
	if snap.Energy < 1 {
		return o.waitForEnergy(ctx, o.cfg.DefaultEnergyWait)
	}
	if !o.ledger.CanExploreNow() {
		return o.waitForBudget(ctx)
	}
	return o.explore(ctx)
}

// CheckStatus asks the game for the character status and applies it. Each
// retry waits longer before reading.
func (o *Orchestrator) CheckStatus(ctx context.Context) (parse.Profile, error) {
	for attempt := 1; attempt <= o.cfg.StatusRetries; attempt++ {
		mark, err := o.watermark(ctx)
		if err != nil {
			return parse.Profile{}, err
		}
		if err := o.actor.Send(ctx, o.cfg.StatusCommand); err != nil {
			return parse.Profile{}, err
		}
		if err := o.actor.Sleep(ctx, o.cfg.StatusRetryDelay*time.Duration(attempt)); err != nil {
			return parse.Profile{}, err
		}
		msgs, err := o.actor.Fetch(ctx)
		if err != nil {
			return parse.Profile{}, err
		}

		if e, ok := classify.First(newer(msgs, mark), func(k classify.Kind) bool { return k == classify.ProfileReport }); ok {
			o.tracker.Apply(e)
			o.tracker.ResetMisses()
			return e.Profile, nil
		}
		o.logger.Warn("Status report not found", "attempt", attempt, "of", o.cfg.StatusRetries)
	}
	return parse.Profile{}, fmt.Errorf("%w after %d attempts", ErrProfileUnavailable, o.cfg.StatusRetries)
}

func (o *Orchestrator) explore(ctx context.Context) error {
	mark, err := o.watermark(ctx)
	if err != nil {
		return err
	}
	if err := o.actor.Send(ctx, o.cfg.ExploreCommand); err != nil {
		return err
	}

	// A menu refresh can land before the actual reply, so keep polling until
	// something actionable shows up.
	var (
		events  []classify.Event
		primary classify.Event
		ok      bool
	)
	for range max(o.cfg.ResponsePolls, 1) {
		if err := o.actor.Sleep(ctx, o.cfg.ResponseDelay); err != nil {
			return err
		}
		msgs, err := o.actor.Fetch(ctx)
		if err != nil {
			return err
		}
		events = classify.Batch(newer(msgs, mark))
		if primary, ok = pickPrimary(events); ok {
			break
		}
	}

	for i := len(events) - 1; i >= 0; i-- {
		if e := events[i]; e.Kind == classify.Idle {
			o.tracker.Apply(e)
		}
	}
	if !ok {
		return o.miss(ctx)
	}
	o.tracker.ResetMisses()
	return o.dispatch(ctx, primary)
}

func (o *Orchestrator) dispatch(ctx context.Context, e classify.Event) error {
	logger := o.logger.With("event", e.Kind)

	switch {
	case e.Kind.StartsBattle():
		if !e.Ongoing {
			if err := o.spend(); err != nil {
				return err
			}
		}
		return o.fight(ctx, e)

	case e.Kind.Terminal():
		o.tracker.Apply(e)
		o.record(ctx, e)
		return o.spend()

	case e.Kind.Opportunity():
		if err := o.spend(); err != nil {
			return err
		}
		o.tracker.Apply(e)
		o.record(ctx, e)
		return o.takeOpportunity(ctx, e)

	case e.Kind == classify.NoEnergy:
		o.tracker.Apply(e)
		o.record(ctx, e)
		logger.Info("Out of energy", "wait_minutes", e.EnergyWaitMinutes)
		return nil

	case e.Kind == classify.LowHealth:
		o.tracker.Apply(e)
		o.record(ctx, e)
		logger.Info("Game refused exploration on low health")
		_, err := o.CheckStatus(ctx)
		return err

	case e.Kind == classify.ProfileReport:
		o.tracker.Apply(e)
		return nil

	default:
		o.tracker.Apply(e)
		o.record(ctx, e)
		logger.Info("Exploration result", "text", e.Message.Preview(80))
		return o.spend()
	}
}

func (o *Orchestrator) fight(ctx context.Context, start classify.Event) error {
	s, err := o.fighter.Fight(ctx, start)
	o.lastBattle = s

	if s != nil && o.recorder != nil {
		if rerr := o.recorder.RecordBattle(ctx, o.runID, s); rerr != nil {
			o.logger.Warn("Failed to journal battle", "error", rerr)
		}
	}
	if err != nil {
		return err
	}

	if s.Outcome == battle.Aborted {
		if _, err := o.CheckStatus(ctx); err != nil {
			return err
		}
	}
	if o.breaker != nil {
		if pause, ok := o.breaker.BattleFinished(); ok {
			return o.actor.Sleep(ctx, pause)
		}
	}
	return nil
}

// takeOpportunity clicks the opportunity's button and applies the reply.
func (o *Orchestrator) takeOpportunity(ctx context.Context, e classify.Event) error {
	if !e.HasButton {
		return nil
	}
	o.logger.Info("Taking opportunity", "kind", e.Kind, "button", e.Button.Label)
	if err := o.actor.Click(ctx, e.Message, e.Button); err != nil {
		return err
	}
	if err := o.actor.Sleep(ctx, o.cfg.ResponseDelay); err != nil {
		return err
	}
	msgs, err := o.actor.Fetch(ctx)
	if err != nil {
		return err
	}

	for _, r := range classify.Batch(msgs) {
		if r.Message.Out || r.Message.ID < e.Message.ID || (r.Message.ID == e.Message.ID && r.Message.Text == e.Message.Text) {
			continue
		}
		if r.Kind.StartsBattle() {
			return o.fight(ctx, r)
		}
		o.tracker.Apply(r)
		if r.Kind != classify.Idle {
			o.logger.Info("Opportunity result", "kind", r.Kind, "text", r.Message.Preview(80))
		}
		break
	}
	return nil
}

func (o *Orchestrator) miss(ctx context.Context) error {
	n := o.tracker.Miss()
	o.logger.Debug("Unrecognised exploration reply", "consecutive", n)
	if n <= o.cfg.MissThreshold {
		return nil
	}
	o.logger.Info("Resynchronising after repeated misses", "misses", n)
	_, err := o.CheckStatus(ctx)
	return err
}

func (o *Orchestrator) spend() error {
	o.tracker.SpendEnergy(1)
	if err := o.ledger.RecordUse(1); err != nil {
		if errors.Is(err, ledger.ErrDailyCapReached) {
			o.logger.Warn("Energy used past the daily cap")
			return nil
		}
		return err
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, e classify.Event) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordExploration(ctx, o.runID, e); err != nil {
		o.logger.Warn("Failed to journal exploration", "error", err)
	}
}

// watermark returns the newest message ID currently in the chat.
func (o *Orchestrator) watermark(ctx context.Context) (int64, error) {
	msgs, err := o.actor.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	var mark int64
	for _, m := range msgs {
		mark = max(mark, m.ID)
	}
	return mark, nil
}

// newer keeps incoming messages above the watermark, preserving order.
func newer(msgs []chat.Message, mark int64) []chat.Message {
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID > mark && !m.Out {
			out = append(out, m)
		}
	}
	return out
}

var dispatchRank = map[classify.Kind]int{
	classify.BattleAppeared:           7,
	classify.BattleRound:              6,
	classify.BattleVictory:            5,
	classify.BattleDefeat:             5,
	classify.EnemyFled:                5,
	classify.EscapeSucceeded:          5,
	classify.CampFound:                4,
	classify.GreetingOpportunity:      4,
	classify.TrapOpportunity:          4,
	classify.NoEnergy:                 3,
	classify.LowHealth:                3,
	classify.GenericExplorationResult: 2,
	classify.ProfileReport:            1,
}

// pickPrimary returns the event to act on: the highest ranked kind, and the
// freshest message among equals. events are most recent first. An appearance
// outranks its own first round so the battle keeps the enemy name.
func pickPrimary(events []classify.Event) (classify.Event, bool) {
	best, bestRank := classify.Event{}, 0
	for _, e := range events {
		if r := dispatchRank[e.Kind]; r > bestRank {
			best, bestRank = e, r
		}
	}
	return best, bestRank > 0
}
