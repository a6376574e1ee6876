package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileText = `⚔️ Karl {🌪️}{🐊} Shinobi - Рівень 8
❤️ Здоров'я: 233/307
⚡ Енергія: 2/10
💰 Золото: 277
✨ Досвід: 393/1500
⏳ 14хв до відновлення енергії`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(profileText)
	require.NoError(t, err)

	assert.Equal(t, "Karl Shinobi", p.Name)
	assert.Equal(t, 8, p.Level)
	assert.Equal(t, 233, p.HP)
	assert.Equal(t, 307, p.MaxHP)
	assert.Equal(t, 2, p.Energy)
	assert.Equal(t, 10, p.MaxEnergy)
	assert.Equal(t, 277, p.Gold)
	assert.Equal(t, 393, p.Experience)
	assert.Equal(t, 1500, p.MaxExp)
	assert.Equal(t, 14, p.EnergyRegenMinutes)
	assert.Zero(t, p.HPRegenMinutes)
}

func TestParseProfileTypographicApostrophe(t *testing.T) {
	p, err := ParseProfile("Рівень 3\nЗдоров’я: 50/90\nЕнергія: 0/10")
	require.NoError(t, err)
	assert.Equal(t, 50, p.HP)
	assert.True(t, IsProfile("Рівень 3\nЗдоров’я: 50/90"))
}

func TestParseProfileMissingFields(t *testing.T) {
	_, err := ParseProfile("⚔️ Karl - Рівень 8\n💰 Золото: 277")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestBattleFields(t *testing.T) {
	appearance := "🐗 З'явився Дикий кабан (Рівень 2)!\n\nВаші характеристики:\n❤️ Здоров'я: 80/100"
	hp, maxHP, ok := AppearanceVitals(appearance)
	require.True(t, ok)
	assert.Equal(t, 80, hp)
	assert.Equal(t, 100, maxHP)
	assert.Equal(t, "Дикий кабан", EnemyName(appearance))

	_, _, ok = AppearanceVitals("❤️ Здоров'я: 80/100")
	assert.False(t, ok, "stats outside the delimiter block are not the player's")

	round := "--- Раунд 3 ---\n👤 Ви (40/100)\n🐗 Кабан (12/60)"
	hp, maxHP, ok = PlayerVitals(round)
	require.True(t, ok)
	assert.Equal(t, 40, hp)
	assert.Equal(t, 100, maxHP)
	n, ok := RoundNumber(round)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	dmg, ok := EscapeDamage("❌ Втеча не вдалася! Вовк завдав 7 шкоди")
	require.True(t, ok)
	assert.Equal(t, 7, dmg)
}

func TestExplorationFields(t *testing.T) {
	loss, ok := HealthLoss("🐝 Під час пошуків вас боляче вжалив джміль (-4 ❤️ здоров'я)")
	require.True(t, ok)
	assert.Equal(t, 4, loss)

	gain, ok := EnergyGain("Ви знайшли джерело (+2 ⚡ енергія)")
	require.True(t, ok)
	assert.Equal(t, 2, gain)

	wait, ok := EnergyWaitMinutes("❌ Недостатньо енергії! Енергія відновиться через 12 хв")
	require.True(t, ok)
	assert.Equal(t, 12, wait)

	cur, maxEn, ok := EnergyNow("❌ Недостатньо енергії! У вас 0/10 очків енергії.")
	require.True(t, ok)
	assert.Equal(t, 0, cur)
	assert.Equal(t, 10, maxEn)

	restored, ok := Restored("🧪 Зілля Здоров'я: Відновлено 33 здоров'я!")
	require.True(t, ok)
	assert.Equal(t, 33, restored)

	restored, ok = EnergyRestored("⚡ Зілля енергії: Відновлено 5 енергії!")
	require.True(t, ok)
	assert.Equal(t, 5, restored)
	_, ok = EnergyRestored("🧪 Зілля Здоров'я: Відновлено 33 здоров'я!")
	assert.False(t, ok)

	assert.Equal(t, "Олена", TravelerName("Ви бачите Олена, який подорожує неподалік"))
}

func TestLevelAndHeal(t *testing.T) {
	level, bonus, ok := LevelUp("🎉 Рівень підвищено! 🎉\n5 → 6\n❤️ Здоров'я: +12")
	require.True(t, ok)
	assert.Equal(t, 6, level)
	assert.Equal(t, 12, bonus)

	maxHP, ok := FullHeal("❤️ Ваше здоров'я повністю відновлено. (307/307)")
	require.True(t, ok)
	assert.Equal(t, 307, maxHP)
}

func TestParseRewards(t *testing.T) {
	text := "🏆 Перемога!\nВи отримали:\n💰 8 золота\n⭐ 15 досвіду\nЗнайдені предмети:\n🪨 Камінь\n🟤 Шкура\n"
	r := ParseRewards(text)
	assert.Equal(t, 8, r.Gold)
	assert.Equal(t, 15, r.Experience)
	assert.Equal(t, []string{"🪨 Камінь", "🟤 Шкура"}, r.Items)

	assert.Zero(t, ParseRewards("Ви отримали: нічого").Gold)
}
