package battle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lox/ostrobot/internal/parse"
)

// Outcome is how a battle ended.
type Outcome int

const (
	Pending Outcome = iota
	Win
	Loss
	Escaped
	Fled
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Win:
		return "win"
	case Loss:
		return "loss"
	case Escaped:
		return "escaped"
	case Fled:
		return "fled"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Action is a per-round choice.
type Action int

const (
	Attack Action = iota
	UseSkill
	UsePotion
	Escape
)

func (a Action) String() string {
	switch a {
	case Attack:
		return "attack"
	case UseSkill:
		return "skill"
	case UsePotion:
		return "potion"
	case Escape:
		return "escape"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Session is the state of one battle. It is created on a battle-start event
// and finished exactly once.
type Session struct {
	ID             string
	Enemy          string
	ShouldEscape   bool
	Rounds         int
	EscapeAttempts int
	Actions        map[Action]int
	Outcome        Outcome
	Started        time.Time
	Ended          time.Time
	FinalHP        int
	Rewards        parse.Rewards
}

// NewSession starts a session. ShouldEscape is fixed here from the escape list.
func NewSession(enemy string, escapeList []string, now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Enemy:        enemy,
		ShouldEscape: MatchesEscapeList(enemy, escapeList),
		Actions:      make(map[Action]int),
		Started:      now,
	}
}

// Done reports whether the outcome has been written.
func (s *Session) Done() bool {
	return s.Outcome != Pending
}

// Finish records the outcome. Later calls are ignored.
func (s *Session) Finish(o Outcome, now time.Time) {
	if s.Done() {
		return
	}
	s.Outcome = o
	s.Ended = now
}

// Record counts an action taken.
func (s *Session) Record(a Action) {
	s.Actions[a]++
	if a == Escape {
		s.EscapeAttempts++
	}
}

// Duration is the wall time from start to finish.
func (s *Session) Duration() time.Duration {
	if s.Ended.IsZero() {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// MatchesEscapeList reports whether enemy contains any listed name,
// ignoring case.
func MatchesEscapeList(enemy string, list []string) bool {
	if enemy == "" {
		return false
	}
	e := strings.ToLower(enemy)
	for _, name := range list {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && strings.Contains(e, name) {
			return true
		}
	}
	return false
}
