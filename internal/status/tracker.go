// Package status holds the bot's believed character state. Every other
// component reads it through Snapshot; it changes only through classified
// events and parsed status reports.
package status

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/parse"
)

// CharacterState is the last known character state. It is never assumed to
// be instantaneously accurate.
type CharacterState struct {
	Level      int
	HP, MaxHP  int
	Energy     int
	MaxEnergy  int
	Gold       int
	Experience int

	// MaxHPConfirmed is false while MaxHP is still the configured placeholder.
	MaxHPConfirmed bool

	// Zero means no countdown is pending.
	HPRegenAt     time.Time
	EnergyRegenAt time.Time

	LastProfile time.Time
}

// HPPercent returns HP as a percentage of MaxHP.
func (s CharacterState) HPPercent() float64 {
	if s.MaxHP <= 0 {
		return 0
	}
	return float64(s.HP) * 100 / float64(s.MaxHP)
}

// Counters are session statistics.
type Counters struct {
	Started          time.Time
	Explorations     int
	Battles          int
	Victories        int
	Defeats          int
	Escapes          int
	EnemyFled        int
	Aborted          int
	Opportunities    int
	Finds            int
	Misses           int
	GoldEarned       int
	ExperienceEarned int
	ItemsFound       int
}

// Options seed the tracker before the first status report.
type Options struct {
	MaxHP     int
	MaxEnergy int
}

// Tracker owns CharacterState and Counters.
type Tracker struct {
	mu       sync.Mutex
	clock    quartz.Clock
	logger   *log.Logger
	state    CharacterState
	counters Counters

	consecutiveMisses int
}

// New returns a tracker with placeholder maxima. HP and energy start full so
// the first loop iteration explores or resyncs instead of waiting.
func New(clock quartz.Clock, logger *log.Logger, opts Options) *Tracker {
	if opts.MaxHP < 1 {
		opts.MaxHP = 100
	}
	if opts.MaxEnergy < 1 {
		opts.MaxEnergy = 10
	}
	return &Tracker{
		clock:  clock,
		logger: logger.WithPrefix("status"),
		state: CharacterState{
			Level:     1,
			HP:        opts.MaxHP,
			MaxHP:     opts.MaxHP,
			Energy:    opts.MaxEnergy,
			MaxEnergy: opts.MaxEnergy,
		},
		counters: Counters{Started: clock.Now()},
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() CharacterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Counters returns a copy of the session counters.
func (t *Tracker) Counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// ApplyProfile overwrites every field the report carries.
func (t *Tracker) ApplyProfile(p parse.Profile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyProfile(p)
}

func (t *Tracker) applyProfile(p parse.Profile) {
	now := t.clock.Now()
	s := &t.state

	if p.Level > 0 {
		s.Level = p.Level
	}
	if p.MaxHP > 0 {
		s.MaxHP = p.MaxHP
		s.MaxHPConfirmed = true
	}
	s.HP = p.HP
	if p.MaxEnergy > 0 {
		s.MaxEnergy = p.MaxEnergy
	}
	s.Energy = p.Energy
	s.Gold = p.Gold
	s.Experience = p.Experience
	s.LastProfile = now

	switch {
	case s.Energy >= 1:
		s.EnergyRegenAt = time.Time{}
	case p.EnergyRegenMinutes > 0:
		s.EnergyRegenAt = now.Add(time.Duration(p.EnergyRegenMinutes) * time.Minute)
	}
	switch {
	case p.HP >= s.MaxHP:
		s.HPRegenAt = time.Time{}
	case p.HPRegenMinutes > 0:
		s.HPRegenAt = now.Add(time.Duration(p.HPRegenMinutes) * time.Minute)
	}

	t.clamp()
	t.logger.Debug("Profile applied", "hp", s.HP, "max_hp", s.MaxHP, "energy", s.Energy, "max_energy", s.MaxEnergy, "level", s.Level, "gold", s.Gold)
}

// Apply folds one classified event into the state and counters.
func (t *Tracker) Apply(e classify.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.state
	now := t.clock.Now()

	switch e.Kind {
	case classify.ProfileReport:
		t.applyProfile(e.Profile)

	case classify.BattleAppeared:
		t.counters.Battles++

	case classify.BattleVictory:
		t.counters.Victories++
		s.Gold += e.Rewards.Gold
		s.Experience += e.Rewards.Experience
		t.counters.GoldEarned += e.Rewards.Gold
		t.counters.ExperienceEarned += e.Rewards.Experience
		t.counters.ItemsFound += len(e.Rewards.Items)

	case classify.BattleDefeat:
		t.counters.Defeats++
		s.HP = 1

	case classify.EnemyFled:
		t.counters.EnemyFled++

	case classify.EscapeSucceeded:
		t.counters.Escapes++

	case classify.EscapeFailed:
		if !e.HasVitals {
			s.HP -= e.Damage
		}

	case classify.NoEnergy:
		if e.HasEnergy {
			s.Energy = e.Energy
			if e.MaxEnergy > 0 {
				s.MaxEnergy = e.MaxEnergy
			}
		} else {
			s.Energy = 0
		}
		if e.EnergyWaitMinutes > 0 {
			s.EnergyRegenAt = now.Add(time.Duration(e.EnergyWaitMinutes) * time.Minute)
		}

	case classify.CampFound, classify.GreetingOpportunity, classify.TrapOpportunity:
		t.counters.Opportunities++

	case classify.GenericExplorationResult:
		t.counters.Finds++
		s.HP += e.HealthGain - e.Damage
		s.Energy += e.EnergyGain
	}

	if e.HasVitals && e.Kind != classify.ProfileReport {
		if e.MaxHP > 0 {
			s.MaxHP = e.MaxHP
		}
		s.HP = e.HP
	}

	if e.NewLevel > 0 {
		s.Level = e.NewLevel
		s.MaxHP += e.MaxHPBonus
	}
	if e.FullHealHP > 0 {
		s.MaxHP, s.HP = e.FullHealHP, e.FullHealHP
		s.HPRegenAt = time.Time{}
	}
	s.HP += e.Restored
	if e.EnergyRestored > 0 {
		s.Energy += e.EnergyRestored
		s.EnergyRegenAt = time.Time{}
	}

	t.clamp()
}

// SpendEnergy lowers the local energy estimate after an exploration.
func (t *Tracker) SpendEnergy(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Energy -= n
	t.counters.Explorations++
	t.clamp()
}

// RecordAborted counts a battle that ended without an outcome, on the round
// cap, a transport failure or cancellation.
func (t *Tracker) RecordAborted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Aborted++
}

// Miss counts an unrecognised exploration response and returns the number
// of consecutive misses.
func (t *Tracker) Miss() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Misses++
	t.consecutiveMisses++
	return t.consecutiveMisses
}

// ResetMisses clears the consecutive miss counter.
func (t *Tracker) ResetMisses() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveMisses = 0
}

// EnergyRegenRemaining reports the time left on a pending energy countdown.
func (t *Tracker) EnergyRegenRemaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.state.EnergyRegenAt, t.clock.Now())
}

// HPRegenRemaining reports the time left on a pending HP countdown.
func (t *Tracker) HPRegenRemaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.state.HPRegenAt, t.clock.Now())
}

// ClearEnergyRegen drops a pending energy countdown.
func (t *Tracker) ClearEnergyRegen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.EnergyRegenAt = time.Time{}
}

func remaining(at, now time.Time) (time.Duration, bool) {
	if at.IsZero() || !now.Before(at) {
		return 0, false
	}
	return at.Sub(now), true
}

func (t *Tracker) clamp() {
	s := &t.state
	if s.MaxHP < 1 {
		s.MaxHP = 1
	}
	s.HP = min(max(s.HP, 1), s.MaxHP)
	if s.MaxEnergy < 0 {
		s.MaxEnergy = 0
	}
	s.Energy = min(max(s.Energy, 0), s.MaxEnergy)
	s.Gold = max(s.Gold, 0)
	s.Level = max(s.Level, 1)
}
