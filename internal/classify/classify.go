// Package classify maps one chat message to one game event. Classification is
// a pure function of message content, evaluated against a fixed table of
// rules in precedence order; the first matching rule wins.
package classify

import (
	"strings"

	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/parse"
)

// Kind identifies what a message means to the automation loop.
type Kind int

const (
	Idle Kind = iota
	BattleAppeared
	BattleRound
	BattleVictory
	BattleDefeat
	EnemyFled
	EscapeFailed
	EscapeSucceeded
	NoEnergy
	LowHealth
	CampFound
	GreetingOpportunity
	TrapOpportunity
	GenericExplorationResult
	DontRush
	ProfileReport
)

var kindNames = map[Kind]string{
	Idle:                     "idle",
	BattleAppeared:           "battle-appeared",
	BattleRound:              "battle-round",
	BattleVictory:            "battle-victory",
	BattleDefeat:             "battle-defeat",
	EnemyFled:                "enemy-fled",
	EscapeFailed:             "escape-failed",
	EscapeSucceeded:          "escape-succeeded",
	NoEnergy:                 "no-energy",
	LowHealth:                "low-health",
	CampFound:                "camp",
	GreetingOpportunity:      "greeting",
	TrapOpportunity:          "trap",
	GenericExplorationResult: "exploration-result",
	DontRush:                 "dont-rush",
	ProfileReport:            "profile",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Terminal reports whether the kind ends a battle.
func (k Kind) Terminal() bool {
	switch k {
	case BattleVictory, BattleDefeat, EnemyFled, EscapeSucceeded:
		return true
	}
	return false
}

// StartsBattle reports whether the kind opens or continues a battle.
func (k Kind) StartsBattle() bool {
	return k == BattleAppeared || k == BattleRound
}

// Opportunity reports whether the kind is a one-click exploration opportunity.
func (k Kind) Opportunity() bool {
	switch k {
	case CampFound, GreetingOpportunity, TrapOpportunity:
		return true
	}
	return false
}

// Game vocabulary. Matching is substring based on apostrophe-normalised text.
const (
	MarkerDontRush        = "будь ласка, не поспішайте"
	MarkerVictory         = "Ви отримали:"
	MarkerDefeat          = "Ви зазнали поразки!"
	MarkerEnemyFled       = "занудьгував і втік"
	MarkerEscapeSucceeded = "Вам вдалося втекти!"
	MarkerEscapeFailed    = "Втеча не вдалася!"
	MarkerAppeared        = "З'явився"
	MarkerRound           = "Раунд"
	MarkerInBattle        = "Ви в бою!"
	MarkerNoEnergy        = "Недостатньо енергії"
	MarkerLowHealth       = "замало здоров'я"
	MarkerCamp            = "табір"
	MarkerTravelerSee     = "Ви бачите"
	MarkerTravelerMoving  = "подорожує"
	MarkerTrap            = "пастк"
)

// Button label fragments.
var (
	LabelAttack = []string{"Атака"}
	LabelSkill  = []string{"Навич", "Вмінн"}
	LabelPotion = []string{"Зілля"}
	LabelEscape = []string{"Втеча", "Втекти"}
	LabelCamp   = []string{"табір"}
	LabelGreet  = []string{"Привіт"}
	LabelRepair = []string{"Полагод", "Знешкод"}
)

// ExplorationPhrases mark a successful exploration without a specific sub-type.
var ExplorationPhrases = []string{
	"Ви помітили",
	"Ви натрапили",
	"Ви відкрили",
	"Ви виявили",
	"Ви чуєте",
	"Ви знайшли",
	"знайшли",
	"Ви привітали",
	"вжалив джміль",
}

// Event is a classified message together with the fields its kind carries.
type Event struct {
	Kind    Kind
	Message chat.Message

	// Button to press for opportunities.
	Button    chat.Button
	HasButton bool

	// Player vitals when the message shows them.
	HP, MaxHP int
	HasVitals bool

	Enemy   string
	Round   int
	Ongoing bool // "already in battle" notice rather than a round message

	Damage     int
	HealthGain int
	EnergyGain int
	Restored   int

	// EnergyRestored comes from an energy potion.
	EnergyRestored int

	EnergyWaitMinutes int
	Energy, MaxEnergy int
	HasEnergy         bool

	Rewards  parse.Rewards
	Profile  parse.Profile
	Traveler string

	// Side notices the tracker applies regardless of Kind.
	NewLevel   int
	MaxHPBonus int
	FullHealHP int
}

type rule struct {
	kind  Kind
	match func(m chat.Message, text string) bool
	fill  func(e *Event, text string)
}

// rules is evaluated top to bottom; order is the precedence contract.
var rules = []rule{
	// 1. Rate-limit notice outranks everything, the game may echo stale UI with it.
	{
		kind: DontRush,
		match: func(_ chat.Message, text string) bool {
			return strings.Contains(strings.ToLower(text), MarkerDontRush)
		},
	},

	// 2. Terminal battle outcomes, before round messages that share HP text and buttons.
	{
		kind:  BattleVictory,
		match: contains(MarkerVictory),
		fill: func(e *Event, text string) {
			e.Rewards = parse.ParseRewards(text)
			fillPlayerVitals(e, text)
		},
	},
	{kind: BattleDefeat, match: contains(MarkerDefeat)},
	{kind: EnemyFled, match: contains(MarkerEnemyFled)},
	{kind: EscapeSucceeded, match: contains(MarkerEscapeSucceeded)},

	// 3. Failed escape applies damage but the battle goes on.
	{
		kind:  EscapeFailed,
		match: contains(MarkerEscapeFailed),
		fill: func(e *Event, text string) {
			e.Damage, _ = parse.EscapeDamage(text)
			fillPlayerVitals(e, text)
		},
	},

	// 4. New encounter.
	{
		kind:  BattleAppeared,
		match: contains(MarkerAppeared),
		fill: func(e *Event, text string) {
			e.Enemy = parse.EnemyName(text)
			e.HP, e.MaxHP, e.HasVitals = parse.AppearanceVitals(text)
		},
	},

	// 5. Round with an actionable button set, or the "already in battle" notice.
	{
		kind: BattleRound,
		match: func(m chat.Message, text string) bool {
			_, hasAttack := m.FindButton(LabelAttack...)
			return hasAttack && strings.Contains(text, MarkerRound)
		},
		fill: func(e *Event, text string) {
			e.Round, _ = parse.RoundNumber(text)
			fillPlayerVitals(e, text)
		},
	},
	{
		kind:  BattleRound,
		match: contains(MarkerInBattle),
		fill: func(e *Event, _ string) {
			e.Ongoing = true
		},
	},

	// 6. Explicit refusals.
	{
		kind:  NoEnergy,
		match: contains(MarkerNoEnergy),
		fill: func(e *Event, text string) {
			e.EnergyWaitMinutes, _ = parse.EnergyWaitMinutes(text)
			e.Energy, e.MaxEnergy, e.HasEnergy = parse.EnergyNow(text)
		},
	},
	{kind: LowHealth, match: contains(MarkerLowHealth)},

	// Status report, recognised only when the required fields parse.
	{
		kind: ProfileReport,
		match: func(_ chat.Message, text string) bool {
			if !parse.IsProfile(text) {
				return false
			}
			_, err := parse.ParseProfile(text)
			return err == nil
		},
		fill: func(e *Event, text string) {
			e.Profile, _ = parse.ParseProfile(text)
			e.HP, e.MaxHP, e.HasVitals = e.Profile.HP, e.Profile.MaxHP, true
			e.Energy, e.MaxEnergy, e.HasEnergy = e.Profile.Energy, e.Profile.MaxEnergy, true
		},
	},

	// 7. Opportunities; each needs a button to be actionable.
	{
		kind: CampFound,
		match: func(m chat.Message, text string) bool {
			return m.HasButtons() && strings.Contains(strings.ToLower(text), MarkerCamp)
		},
		fill: opportunityButton(LabelCamp),
	},
	{
		kind: GreetingOpportunity,
		match: func(m chat.Message, text string) bool {
			return m.HasButtons() &&
				strings.Contains(text, MarkerTravelerSee) &&
				strings.Contains(text, MarkerTravelerMoving)
		},
		fill: func(e *Event, text string) {
			opportunityButton(LabelGreet)(e, text)
			e.Traveler = parse.TravelerName(text)
		},
	},
	{
		kind: TrapOpportunity,
		match: func(m chat.Message, text string) bool {
			return m.HasButtons() && strings.Contains(strings.ToLower(text), MarkerTrap)
		},
		fill: opportunityButton(LabelRepair),
	},

	// 8. Catch-all for successful exploration.
	{
		kind: GenericExplorationResult,
		match: func(_ chat.Message, text string) bool {
			for _, phrase := range ExplorationPhrases {
				if strings.Contains(text, phrase) {
					return true
				}
			}
			return false
		},
		fill: func(e *Event, text string) {
			e.Damage, _ = parse.HealthLoss(text)
			e.HealthGain, _ = parse.HealthGain(text)
			e.EnergyGain, _ = parse.EnergyGain(text)
		},
	},
}

// Classify maps a message to exactly one event. Unrecognised messages and
// our own outgoing messages are Idle.
func Classify(m chat.Message) Event {
	e := Event{Kind: Idle, Message: m}
	if m.Out {
		return e
	}
	text := parse.Normalize(m.Text)

	for _, r := range rules {
		if r.match(m, text) {
			e.Kind = r.kind
			if r.fill != nil {
				r.fill(&e, text)
			}
			break
		}
	}

	annotate(&e, text)
	return e
}

// Precedence returns the rule kinds in evaluation order.
func Precedence() []Kind {
	out := make([]Kind, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.kind)
	}
	return out
}

// Batch classifies every message, preserving order.
func Batch(msgs []chat.Message) []Event {
	out := make([]Event, len(msgs))
	for i, m := range msgs {
		out[i] = Classify(m)
	}
	return out
}

// First returns the first event in msgs whose kind satisfies want. Messages
// are expected most recent first, so the result is the freshest match.
func First(msgs []chat.Message, want func(Kind) bool) (Event, bool) {
	for _, m := range msgs {
		if e := Classify(m); want(e.Kind) {
			return e, true
		}
	}
	return Event{}, false
}

// IsRateLimit reports whether m is a don't-rush notice.
func IsRateLimit(m chat.Message) bool {
	return Classify(m).Kind == DontRush
}

func annotate(e *Event, text string) {
	if lvl, bonus, ok := parse.LevelUp(text); ok {
		e.NewLevel, e.MaxHPBonus = lvl, bonus
	}
	if maxHP, ok := parse.FullHeal(text); ok {
		e.FullHealHP = maxHP
	}
	if n, ok := parse.Restored(text); ok {
		e.Restored = n
	}
	if n, ok := parse.EnergyRestored(text); ok {
		e.EnergyRestored = n
	}
}

func contains(marker string) func(chat.Message, string) bool {
	return func(_ chat.Message, text string) bool {
		return strings.Contains(text, marker)
	}
}

func fillPlayerVitals(e *Event, text string) {
	e.HP, e.MaxHP, e.HasVitals = parse.PlayerVitals(text)
}

func opportunityButton(labels []string) func(*Event, string) {
	return func(e *Event, _ string) {
		if b, ok := e.Message.FindButton(labels...); ok {
			e.Button, e.HasButton = b, true
			return
		}
		e.Button, e.HasButton = e.Message.FirstButton()
	}
}
