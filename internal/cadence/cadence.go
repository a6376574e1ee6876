// Package cadence decides how long to pause around externally visible
// actions so that a session does not look mechanical. It only ever returns
// durations; it never sees or alters decisions.
package cadence

import (
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/ostrobot/internal/randutil"
)

// Level selects how much human-like behaviour is layered on.
type Level int

const (
	// Off adds no delay at all.
	Off Level = iota
	// Basic draws a random delay per action.
	Basic
	// Enhanced adds reading time proportional to message length.
	Enhanced
	// Human adds fatigue and long breaks after a run of battles.
	Human
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Basic:
		return "basic"
	case Enhanced:
		return "enhanced"
	case Human:
		return "human"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts a level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "":
		return Off, nil
	case "basic":
		return Basic, nil
	case "enhanced":
		return Enhanced, nil
	case "human":
		return Human, nil
	}
	return Off, fmt.Errorf("unknown cadence level %q", s)
}

// Config holds the timing parameters. The probability and growth constants
// are tuning defaults, not correctness requirements.
type Config struct {
	Level Level

	MinDelay time.Duration
	MaxDelay time.Duration

	ReadPerRune time.Duration
	ReadMax     time.Duration

	FatigueAfter time.Duration
	// FatiguePerHour is the delay multiplier growth per hour past FatigueAfter.
	FatiguePerHour float64
	FatigueMax     float64

	BreakAfterMin int
	BreakAfterMax int
	BreakMin      time.Duration
	BreakMax      time.Duration

	Seed int64
}

// DefaultConfig returns the basic level with the original pacing.
func DefaultConfig() Config {
	return Config{
		Level:          Basic,
		MinDelay:       1 * time.Second,
		MaxDelay:       3 * time.Second,
		ReadPerRune:    25 * time.Millisecond,
		ReadMax:        6 * time.Second,
		FatigueAfter:   time.Hour,
		FatiguePerHour: 0.25,
		FatigueMax:     2.0,
		BreakAfterMin:  15,
		BreakAfterMax:  30,
		BreakMin:       5 * time.Minute,
		BreakMax:       20 * time.Minute,
		Seed:           time.Now().UnixNano(),
	}
}

// Scheduler produces delays. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	clock   quartz.Clock
	logger  *log.Logger
	rng     *rand.Rand
	started time.Time

	battles     int
	breakTarget int
}

// New returns a scheduler whose session starts now.
func New(clock quartz.Clock, logger *log.Logger, cfg Config) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		clock:   clock,
		logger:  logger.WithPrefix("cadence"),
		rng:     randutil.New(cfg.Seed),
		started: clock.Now(),
	}
	s.breakTarget = s.nextBreakTarget()
	return s
}

// Level returns the configured level.
func (s *Scheduler) Level() Level {
	return s.cfg.Level
}

// Delay returns the pause before an action that follows reading text.
func (s *Scheduler) Delay(text string) time.Duration {
	if s.cfg.Level == Off {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := randutil.Duration(s.rng, s.cfg.MinDelay, s.cfg.MaxDelay)
	if s.cfg.Level >= Enhanced {
		d += s.readingTime(text)
	}
	if s.cfg.Level >= Human {
		d = time.Duration(float64(d) * s.fatigue())
	}
	return d
}

// BattleFinished counts a battle and, at the Human level, returns a long
// break once the session's battle target is reached.
func (s *Scheduler) BattleFinished() (time.Duration, bool) {
	if s.cfg.Level < Human {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.battles++
	if s.battles < s.breakTarget {
		return 0, false
	}
	pause := randutil.Duration(s.rng, s.cfg.BreakMin, s.cfg.BreakMax)
	s.logger.Info("Taking a break", "battles", s.battles, "duration", pause.Round(time.Second))
	s.battles = 0
	s.breakTarget = s.nextBreakTarget()
	return pause, true
}

// Fatigue returns the current delay multiplier.
func (s *Scheduler) Fatigue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatigue()
}

func (s *Scheduler) fatigue() float64 {
	over := s.clock.Since(s.started) - s.cfg.FatigueAfter
	if over <= 0 {
		return 1
	}
	f := 1 + s.cfg.FatiguePerHour*over.Hours()
	if s.cfg.FatigueMax > 1 && f > s.cfg.FatigueMax {
		f = s.cfg.FatigueMax
	}
	return f
}

func (s *Scheduler) readingTime(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * s.cfg.ReadPerRune
	if s.cfg.ReadMax > 0 && d > s.cfg.ReadMax {
		d = s.cfg.ReadMax
	}
	return d
}

func (s *Scheduler) nextBreakTarget() int {
	return max(randutil.IntBetween(s.rng, s.cfg.BreakAfterMin, s.cfg.BreakAfterMax), 1)
}
