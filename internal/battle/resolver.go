// Package battle resolves one encounter: it reads classified battle messages,
// picks an action each round and stops on a definitive outcome or the round
// cap.
package battle

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/status"
)

// Actor is the subset of the action driver the resolver needs.
type Actor interface {
	Fetch(ctx context.Context) ([]chat.Message, error)
	Click(ctx context.Context, msg chat.Message, b chat.Button) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Config bounds a battle.
type Config struct {
	Policy     Policy
	RoundCap   int
	EscapeList []string
	// PollInterval is the pause after an action or an empty read.
	PollInterval time.Duration
	// MenuPolls bounds the wait for a potion or skill sub-menu.
	MenuPolls int
}

// DefaultConfig returns a 30 round cap and a one second poll.
func DefaultConfig() Config {
	return Config{
		Policy:       DefaultPolicy(),
		RoundCap:     30,
		PollInterval: time.Second,
		MenuPolls:    3,
	}
}

var backLabels = []string{"Назад", "⬅", "🔙"}

// Resolver runs battles.
type Resolver struct {
	actor   Actor
	tracker *status.Tracker
	clock   quartz.Clock
	logger  *log.Logger
	cfg     Config
}

// NewResolver returns a resolver.
func NewResolver(actor Actor, tracker *status.Tracker, clock quartz.Clock, logger *log.Logger, cfg Config) *Resolver {
	if cfg.RoundCap <= 0 {
		cfg.RoundCap = 30
	}
	if cfg.MenuPolls <= 0 {
		cfg.MenuPolls = 3
	}
	return &Resolver{
		actor:   actor,
		tracker: tracker,
		clock:   clock,
		logger:  logger.WithPrefix("battle"),
		cfg:     cfg,
	}
}

type msgKey struct {
	id   int64
	text string
}

// view tracks which battle messages have been consumed. Messages older than
// floor belong to earlier rounds or battles.
type view struct {
	seen  map[msgKey]bool
	floor int64
	// Terminal messages older than terminalFloor are leftovers from a previous
	// battle.
	terminalFloor int64
}

func (v *view) fresh(e classify.Event) bool {
	if v.seen[msgKey{e.Message.ID, e.Message.Text}] || e.Message.ID < v.floor {
		return false
	}
	return !e.Kind.Terminal() || e.Message.ID >= v.terminalFloor
}

func (v *view) consume(e classify.Event) {
	v.seen[msgKey{e.Message.ID, e.Message.Text}] = true
	v.floor = max(v.floor, e.Message.ID)
}

func battleKind(k classify.Kind) bool {
	return k.Terminal() || k.StartsBattle() || k == classify.EscapeFailed
}

// Fight resolves the battle started by start. The returned session is always
// finished; an error means the transport gave up or ctx ended, and the
// outcome is Aborted.
func (r *Resolver) Fight(ctx context.Context, start classify.Event) (*Session, error) {
	s := NewSession(start.Enemy, r.cfg.EscapeList, r.clock.Now())
	logger := r.logger.With("battle", s.ID[:8])
	if s.Enemy != "" {
		logger = logger.With("enemy", s.Enemy)
	}
	logger.Info("Battle started", "escape", s.ShouldEscape, "ongoing", start.Ongoing)

	v := &view{seen: make(map[msgKey]bool), floor: start.Message.ID}
	var pending []classify.Event
	if start.Ongoing {
		// The round message predates the notice.
		v.floor, v.terminalFloor = 0, start.Message.ID
		v.seen[msgKey{start.Message.ID, start.Message.Text}] = true
	} else {
		pending = []classify.Event{start}
	}

	for s.Rounds < r.cfg.RoundCap {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, s, err, logger)
		}
		s.Rounds++

		events := pending
		pending = nil
		if events == nil {
			var err error
			events, err = r.read(ctx, v)
			if err != nil {
				return r.abort(ctx, s, err, logger)
			}
		}

		var current *classify.Event
		for i := range events {
			e := events[i]
			v.consume(e)
			r.tracker.Apply(e)
			if e.Kind == classify.EscapeFailed {
				logger.Info("Escape failed", "damage", e.Damage, "attempts", s.EscapeAttempts)
			}
			if e.Kind.Terminal() {
				s.Rewards = e.Rewards
				r.finish(s, outcomeOf(e.Kind), logger)
				return s, nil
			}
			if Buttons(e.Message).Any() {
				current = &events[i]
			}
		}

		if current == nil {
			logger.Debug("No actionable battle message", "round", s.Rounds)
			if err := r.actor.Sleep(ctx, r.cfg.PollInterval); err != nil {
				return r.abort(ctx, s, err, logger)
			}
			continue
		}

		if err := r.act(ctx, s, *current, v, logger); err != nil {
			return r.abort(ctx, s, err, logger)
		}
		if err := r.actor.Sleep(ctx, r.cfg.PollInterval); err != nil {
			return r.abort(ctx, s, err, logger)
		}
	}
	return r.abort(ctx, s, nil, logger)
}

// read fetches the latest batch and returns the unconsumed battle events,
// oldest first.
func (r *Resolver) read(ctx context.Context, v *view) ([]classify.Event, error) {
	msgs, err := r.actor.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []classify.Event
	for _, e := range classify.Batch(msgs) {
		if battleKind(e.Kind) && v.fresh(e) {
			out = append(out, e)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (r *Resolver) act(ctx context.Context, s *Session, e classify.Event, v *view, logger *log.Logger) error {
	avail := Buttons(e.Message)
	hp := r.tracker.Snapshot().HP
	if e.HasVitals {
		hp = e.HP
	}

	action := r.cfg.Policy.Decide(s, hp, avail)
	b, ok := avail.Button(action)
	if !ok {
		action = Attack
		if b, ok = avail.Button(Attack); !ok {
			logger.Warn("Round offers no usable button", "round", s.Rounds)
			return nil
		}
	}

	logger.Info("Round", "round", s.Rounds, "hp", hp, "action", action)
	if err := r.actor.Click(ctx, e.Message, b); err != nil {
		return err
	}
	s.Record(action)

	switch action {
	case UsePotion:
		return r.pickFromMenu(ctx, v, SlotFirst, logger)
	case UseSkill:
		return r.pickFromMenu(ctx, v, r.cfg.Policy.SkillSlot, logger)
	}
	return nil
}

// pickFromMenu waits for the potion or skill list and clicks an entry.
func (r *Resolver) pickFromMenu(ctx context.Context, v *view, slot SkillSlot, logger *log.Logger) error {
	for range r.cfg.MenuPolls {
		if err := r.actor.Sleep(ctx, r.cfg.PollInterval); err != nil {
			return err
		}
		msgs, err := r.actor.Fetch(ctx)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if m.ID < v.floor {
				break
			}
			if v.seen[msgKey{m.ID, m.Text}] {
				continue
			}
			if classify.Classify(m).Kind.Terminal() {
				// The battle ended before the menu showed up.
				return nil
			}
			b, ok := menuEntry(m, slot)
			if !ok {
				continue
			}
			v.seen[msgKey{m.ID, m.Text}] = true
			logger.Debug("Menu entry", "label", b.Label)
			return r.actor.Click(ctx, m, b)
		}
	}
	logger.Warn("Menu did not appear")
	return nil
}

// menuEntry returns the first or last selectable entry of a sub-menu. Round
// messages, which still carry an attack button, are not menus.
func menuEntry(m chat.Message, slot SkillSlot) (chat.Button, bool) {
	if _, isRound := m.FindButton(classify.LabelAttack...); isRound {
		return chat.Button{}, false
	}
	var entries []chat.Button
	for _, b := range m.AllButtons() {
		if !isBack(b.Label) {
			entries = append(entries, b)
		}
	}
	if len(entries) == 0 {
		return chat.Button{}, false
	}
	if slot == SlotLast {
		return entries[len(entries)-1], true
	}
	return entries[0], true
}

func isBack(label string) bool {
	for _, l := range backLabels {
		if strings.Contains(label, l) {
			return true
		}
	}
	return false
}

func (r *Resolver) finish(s *Session, o Outcome, logger *log.Logger) {
	s.FinalHP = r.tracker.Snapshot().HP
	s.Finish(o, r.clock.Now())
	logger.Info("Battle finished", "outcome", o, "rounds", s.Rounds, "escape_attempts", s.EscapeAttempts, "hp", s.FinalHP, "gold", s.Rewards.Gold)
}

// abort ends s as Aborted and returns err unchanged. A nil err means the
// round cap was hit.
func (r *Resolver) abort(ctx context.Context, s *Session, err error, logger *log.Logger) (*Session, error) {
	r.tracker.RecordAborted()
	s.FinalHP = r.tracker.Snapshot().HP
	s.Finish(Aborted, r.clock.Now())
	switch {
	case err == nil:
		logger.Error("Battle hit the round cap", "rounds", s.Rounds, "cap", r.cfg.RoundCap)
	case ctx.Err() != nil:
		logger.Warn("Battle interrupted", "rounds", s.Rounds)
	default:
		logger.Error("Battle aborted by transport failure", "rounds", s.Rounds, "error", err)
	}
	return s, err
}

func outcomeOf(k classify.Kind) Outcome {
	switch k {
	case classify.BattleVictory:
		return Win
	case classify.BattleDefeat:
		return Loss
	case classify.EscapeSucceeded:
		return Escaped
	case classify.EnemyFled:
		return Fled
	}
	return Aborted
}
