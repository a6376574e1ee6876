// Package chat defines the transport contract the automation core depends on:
// sending text, reading recent history and clicking inline buttons.
package chat

import (
	"context"
	"strings"
	"time"
)

// Button is one inline button with its grid coordinates.
type Button struct {
	Label string `json:"label"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// Message is a single chat message as seen by the client.
type Message struct {
	ID      int64      `json:"id"`
	Chat    string     `json:"chat"`
	Text    string     `json:"text,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
	Date    time.Time  `json:"date"`
	// Out marks a message sent by this account.
	Out bool `json:"out,omitempty"`
}

// Transport is the capability set offered by the chat client.
type Transport interface {
	// SendText posts text to chat.
	SendText(ctx context.Context, chat, text string) error
	// FetchRecent returns up to limit messages, most recent first.
	FetchRecent(ctx context.Context, chat string, limit int) ([]Message, error)
	// Click presses the button at (row, col) of msg. It fails if the message
	// or button no longer exists.
	Click(ctx context.Context, msg Message, row, col int) error
}

// HasButtons reports whether the message carries at least one button.
func (m Message) HasButtons() bool {
	for _, row := range m.Buttons {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// AllButtons flattens the grid in row-major order.
func (m Message) AllButtons() []Button {
	var out []Button
	for _, row := range m.Buttons {
		out = append(out, row...)
	}
	return out
}

// FindButton returns the first button whose label contains any of the given
// substrings, compared case-insensitively.
func (m Message) FindButton(substrs ...string) (Button, bool) {
	for _, b := range m.AllButtons() {
		label := strings.ToLower(b.Label)
		for _, s := range substrs {
			if strings.Contains(label, strings.ToLower(s)) {
				return b, true
			}
		}
	}
	return Button{}, false
}

// FirstButton returns the top-left button.
func (m Message) FirstButton() (Button, bool) {
	all := m.AllButtons()
	if len(all) == 0 {
		return Button{}, false
	}
	return all[0], true
}

// Preview returns at most n runes of the text, for logging.
func (m Message) Preview(n int) string {
	r := []rune(strings.ReplaceAll(m.Text, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// Row builds a button row from labels; row coordinates are filled in by Grid.
func Row(labels ...string) []Button {
	out := make([]Button, len(labels))
	for i, l := range labels {
		out[i] = Button{Label: l, Col: i}
	}
	return out
}

// Grid assigns row/col coordinates to rows built with Row.
func Grid(rows ...[]Button) [][]Button {
	out := make([][]Button, len(rows))
	for r, row := range rows {
		out[r] = make([]Button, len(row))
		for c, b := range row {
			b.Row, b.Col = r, c
			out[r][c] = b
		}
	}
	return out
}
