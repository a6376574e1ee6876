// Package parse extracts numeric and named fields from the game's fixed
// message templates. It holds no decision logic: each function maps one
// template to the fields it carries.
package parse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrMissingFields is returned when a status report lacks HP or energy.
var ErrMissingFields = errors.New("parse: status report is missing required fields")

// AppearanceDelimiter precedes the player's own stats in a battle-start message.
const AppearanceDelimiter = "Ваші характеристики:"

var apostrophes = strings.NewReplacer("’", "'", "ʼ", "'", "`", "'")

// Normalize folds the apostrophe variants the game uses into ASCII '.
func Normalize(text string) string {
	return apostrophes.Replace(text)
}

var (
	reLevel       = regexp.MustCompile(`Рівень\s*(\d+)`)
	reName        = regexp.MustCompile(`⚔️\s*(.+?)\s*-\s*Рівень`)
	reHealth      = regexp.MustCompile(`Здоров'я:\s*(\d+)\s*/\s*(\d+)`)
	reEnergy      = regexp.MustCompile(`Енергія:\s*(\d+)\s*/\s*(\d+)`)
	reGold        = regexp.MustCompile(`Золото:\s*(\d+)`)
	reExperience  = regexp.MustCompile(`Досвід:\s*(\d+)\s*/\s*(\d+)`)
	reEnergyRegen = regexp.MustCompile(`(\d+)\s*хв\s*до відновлення енергії`)
	reHealthRegen = regexp.MustCompile(`(\d+)\s*хв\s*до відновлення здоров'я`)
	reEmojiTags   = regexp.MustCompile(`\{[^}]+\}`)

	rePlayerVitals = regexp.MustCompile(`Ви\s*\((\d+)\s*/\s*(\d+)\)`)
	reEnemy        = regexp.MustCompile(`З'явився\s+([^!\n]+)`)
	reRound        = regexp.MustCompile(`Раунд\s*(\d+)`)
	reEscapeDamage = regexp.MustCompile(`завдав\s*(\d+)\s*шкоди`)
	reHealthLoss   = regexp.MustCompile(`\(-(\d+)\s*❤️`)
	reHealthGain   = regexp.MustCompile(`\(\+(\d+)\s*❤️`)
	reEnergyGain   = regexp.MustCompile(`\+(\d+)\s*⚡\s*енергі`)
	reRestored     = regexp.MustCompile(`Відновлено\s*(\d+)\s*здоров'я`)
	reEnergyRest   = regexp.MustCompile(`Відновлено\s*(\d+)\s*енергії`)
	reEnergyWait   = regexp.MustCompile(`відновиться через\s*(\d+)\s*хв`)
	reEnergyNow    = regexp.MustCompile(`У\s*вас\s*(\d+)\s*/\s*(\d+)\s*очків\s*енергії`)
	reFullHeal     = regexp.MustCompile(`\((\d+)\s*/\s*(\d+)\)`)
	reLevelUp      = regexp.MustCompile(`(\d+)\s*→\s*(\d+)`)
	reMaxHPBonus   = regexp.MustCompile(`Здоров'я:\s*\+(\d+)`)
	reGoldReward   = regexp.MustCompile(`💰\s*(\d+)\s*золота`)
	reExpReward    = regexp.MustCompile(`⭐\s*(\d+)\s*досвіду`)
	reTraveler     = regexp.MustCompile(`Ви бачите\s+(.+?),\s*який подорожує`)
)

// Profile is the content of a character status report.
type Profile struct {
	Name               string
	Level              int
	HP, MaxHP          int
	Energy, MaxEnergy  int
	Gold               int
	Experience, MaxExp int
	// Zero means no countdown was shown.
	EnergyRegenMinutes int
	HPRegenMinutes     int
}

// IsProfile reports whether text looks like a character status report.
func IsProfile(text string) bool {
	text = Normalize(text)
	return strings.Contains(text, "Рівень") && strings.Contains(text, "Здоров'я:")
}

// ParseProfile extracts a character status report. HP and energy are
// required; every other field is optional.
func ParseProfile(text string) (Profile, error) {
	text = Normalize(text)
	var p Profile

	hp, maxHP, okHP := pair(reHealth, text)
	en, maxEn, okEn := pair(reEnergy, text)
	if !okHP || !okEn {
		return Profile{}, ErrMissingFields
	}
	p.HP, p.MaxHP = hp, maxHP
	p.Energy, p.MaxEnergy = en, maxEn

	if m := reName.FindStringSubmatch(text); m != nil {
		p.Name = strings.Join(strings.Fields(reEmojiTags.ReplaceAllString(m[1], "")), " ")
	}
	p.Level, _ = single(reLevel, text)
	p.Gold, _ = single(reGold, text)
	p.Experience, p.MaxExp, _ = pair(reExperience, text)
	p.EnergyRegenMinutes, _ = single(reEnergyRegen, text)
	p.HPRegenMinutes, _ = single(reHealthRegen, text)
	return p, nil
}

// PlayerVitals extracts "Ви (hp/max)" from a battle round or result.
func PlayerVitals(text string) (hp, maxHP int, ok bool) {
	return pair(rePlayerVitals, text)
}

// AppearanceVitals extracts the player's HP from the stats block that follows
// AppearanceDelimiter in a battle-start message.
func AppearanceVitals(text string) (hp, maxHP int, ok bool) {
	text = Normalize(text)
	_, after, found := strings.Cut(text, AppearanceDelimiter)
	if !found {
		return 0, 0, false
	}
	return pair(reHealth, after)
}

// EnemyName extracts the enemy from a battle-start message.
func EnemyName(text string) string {
	m := reEnemy.FindStringSubmatch(Normalize(text))
	if m == nil {
		return ""
	}
	name := m[1]
	if i := strings.Index(name, " ("); i >= 0 {
		name = name[:i]
	}
	return strings.Trim(strings.TrimSpace(name), ":.,")
}

// RoundNumber extracts the round counter.
func RoundNumber(text string) (int, bool) {
	return single(reRound, text)
}

// EscapeDamage extracts the damage dealt after a failed escape.
func EscapeDamage(text string) (int, bool) {
	return single(reEscapeDamage, text)
}

// HealthLoss extracts "(-N ❤️" lines such as a bee sting.
func HealthLoss(text string) (int, bool) {
	return single(reHealthLoss, text)
}

// HealthGain extracts "(+N ❤️" lines such as meditation.
func HealthGain(text string) (int, bool) {
	return single(reHealthGain, text)
}

// EnergyGain extracts "+N ⚡ енергія" bonuses.
func EnergyGain(text string) (int, bool) {
	return single(reEnergyGain, text)
}

// Restored extracts the HP restored by a potion or healing item.
func Restored(text string) (int, bool) {
	return single(reRestored, Normalize(text))
}

// EnergyRestored extracts the energy restored by an energy potion.
func EnergyRestored(text string) (int, bool) {
	return single(reEnergyRest, Normalize(text))
}

// EnergyWaitMinutes extracts the regeneration countdown from a no-energy refusal.
func EnergyWaitMinutes(text string) (int, bool) {
	return single(reEnergyWait, text)
}

// EnergyNow extracts "У вас N/M очків енергії".
func EnergyNow(text string) (cur, maxEnergy int, ok bool) {
	return pair(reEnergyNow, text)
}

// FullHeal extracts the max HP from "здоров'я повністю відновлено (N/N)".
func FullHeal(text string) (maxHP int, ok bool) {
	text = Normalize(text)
	if !strings.Contains(text, "здоров'я повністю відновлено") {
		return 0, false
	}
	_, maxHP, ok = pair(reFullHeal, text)
	return maxHP, ok
}

// LevelUp extracts the new level and max-HP bonus from a level-up notice.
func LevelUp(text string) (level, maxHPBonus int, ok bool) {
	text = Normalize(text)
	if !strings.Contains(text, "Рівень підвищено") {
		return 0, 0, false
	}
	_, level, ok = pair(reLevelUp, text)
	maxHPBonus, _ = single(reMaxHPBonus, text)
	return level, maxHPBonus, ok
}

// Rewards is the loot listed in a victory message.
type Rewards struct {
	Gold       int
	Experience int
	Items      []string
}

// ParseRewards extracts gold, experience and item lines from a victory message.
func ParseRewards(text string) Rewards {
	var r Rewards
	r.Gold, _ = single(reGoldReward, text)
	r.Experience, _ = single(reExpReward, text)

	if _, items, ok := strings.Cut(text, "Знайдені предмети:"); ok {
		for line := range strings.SplitSeq(items, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				r.Items = append(r.Items, line)
			}
		}
	}
	return r
}

// TravelerName extracts the player named in a greeting opportunity.
func TravelerName(text string) string {
	m := reTraveler.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func single(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func pair(re *regexp.Regexp, text string) (int, int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(m[1])
	b, errB := strconv.Atoi(m[2])
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
