package battle

import (
	"fmt"
	"strings"

	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/classify"
)

// SkillSlot picks which offered skill to use. Layouts seen in the game put
// the preferred skill first in some versions and last in others.
type SkillSlot int

const (
	SlotFirst SkillSlot = iota
	SlotLast
)

func (s SkillSlot) String() string {
	if s == SlotLast {
		return "last"
	}
	return "first"
}

// ParseSkillSlot accepts "first" or "last".
func ParseSkillSlot(s string) (SkillSlot, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return SlotFirst, nil
	case "last":
		return SlotLast, nil
	}
	return SlotFirst, fmt.Errorf("unknown skill slot %q", s)
}

// Policy holds the thresholds for per-round decisions. HP values are absolute.
type Policy struct {
	CriticalHP    int
	LowHP         int
	HealThreshold int
	EscapeCap     int
	UsePotions    bool
	UseSkills     bool
	SkillSlot     SkillSlot
}

// DefaultPolicy returns the thresholds the bot has always shipped with.
func DefaultPolicy() Policy {
	return Policy{
		CriticalHP:    5,
		LowHP:         10,
		HealThreshold: 50,
		EscapeCap:     5,
		UsePotions:    true,
		UseSkills:     true,
		SkillSlot:     SlotFirst,
	}
}

// Available lists the battle buttons offered by a round message.
type Available struct {
	Attack chat.Button
	Skill  chat.Button
	Potion chat.Button
	Escape chat.Button

	HasAttack, HasSkill, HasPotion, HasEscape bool
}

// Buttons inspects a message's button grid.
func Buttons(m chat.Message) Available {
	var a Available
	a.Attack, a.HasAttack = m.FindButton(classify.LabelAttack...)
	a.Skill, a.HasSkill = m.FindButton(classify.LabelSkill...)
	a.Potion, a.HasPotion = m.FindButton(classify.LabelPotion...)
	a.Escape, a.HasEscape = m.FindButton(classify.LabelEscape...)
	return a
}

// Any reports whether any battle button is present.
func (a Available) Any() bool {
	return a.HasAttack || a.HasSkill || a.HasPotion || a.HasEscape
}

// Button returns the button for an action.
func (a Available) Button(act Action) (chat.Button, bool) {
	switch act {
	case Escape:
		return a.Escape, a.HasEscape
	case UsePotion:
		return a.Potion, a.HasPotion
	case UseSkill:
		return a.Skill, a.HasSkill
	default:
		return a.Attack, a.HasAttack
	}
}

// Decide picks the action for one round. It does not mutate s.
func (p Policy) Decide(s *Session, hp int, avail Available) Action {
	canEscape := avail.HasEscape && s.EscapeAttempts < p.EscapeCap

	switch {
	case hp <= p.CriticalHP && avail.HasEscape:
		return Escape
	case s.ShouldEscape && canEscape:
		return Escape
	case hp < p.LowHP && canEscape:
		return Escape
	case p.UsePotions && avail.HasPotion && hp <= p.HealThreshold:
		return UsePotion
	case p.UseSkills && avail.HasSkill:
		return UseSkill
	default:
		return Attack
	}
}
