package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindButton(t *testing.T) {
	msg := Message{
		Text: "--- Раунд 2 ---",
		Buttons: Grid(
			Row("⚔️ Атака", "✨ Навички"),
			Row("🧪 Зілля", "🏃 Втеча"),
		),
	}

	b, ok := msg.FindButton("втеча")
	require.True(t, ok)
	assert.Equal(t, 1, b.Row)
	assert.Equal(t, 1, b.Col)

	b, ok = msg.FindButton("Зілля", "Potion")
	require.True(t, ok)
	assert.Equal(t, Button{Label: "🧪 Зілля", Row: 1, Col: 0}, b)

	_, ok = msg.FindButton("табір")
	assert.False(t, ok)
}

func TestHasButtons(t *testing.T) {
	assert.False(t, Message{}.HasButtons())
	assert.False(t, Message{Buttons: [][]Button{{}}}.HasButtons())
	assert.True(t, Message{Buttons: Grid(Row("ok"))}.HasButtons())

	first, ok := Message{Buttons: Grid(Row("a", "b"), Row("c"))}.FirstButton()
	require.True(t, ok)
	assert.Equal(t, "a", first.Label)
}

func TestPreview(t *testing.T) {
	msg := Message{Text: "Ви знайшли\nстару монету"}
	assert.Equal(t, "Ви знайшли стару монету", msg.Preview(100))
	assert.Equal(t, "Ви з...", msg.Preview(4))
}
