// Package chattest provides a scripted in-memory chat.Transport for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lox/ostrobot/internal/chat"
)

// ErrStaleButton is returned by Click when the message or button is gone.
var ErrStaleButton = errors.New("chattest: stale message or button")

// Click records a button press seen by the fake.
type Click struct {
	MessageID int64
	Button    chat.Button
}

// Fake is a single-chat transport whose game side is scripted through the
// OnSend and OnClick hooks. Hooks run without the internal lock held, so they
// may call Post and Edit freely.
type Fake struct {
	mu      sync.Mutex
	chat    string
	history []chat.Message // oldest first
	nextID  int64

	sent   []string
	clicks []Click

	sendErrs  []error
	fetchErrs []error
	clickErrs []error

	// Echo appends every sent text to the history as an outgoing message,
	// the way a real chat shows our own messages.
	Echo bool

	OnSend  func(f *Fake, text string)
	OnClick func(f *Fake, msg chat.Message, b chat.Button)
}

// New returns an empty fake for the named chat.
func New(chatName string) *Fake {
	return &Fake{chat: chatName, nextID: 1}
}

// Post appends a message from the game side and returns it.
func (f *Fake) Post(text string, buttons [][]chat.Button) chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(text, buttons, false)
}

func (f *Fake) appendLocked(text string, buttons [][]chat.Button, out bool) chat.Message {
	msg := chat.Message{
		ID:      f.nextID,
		Chat:    f.chat,
		Text:    text,
		Buttons: buttons,
		Date:    time.Unix(1_700_000_000+f.nextID, 0),
		Out:     out,
	}
	f.nextID++
	f.history = append(f.history, msg)
	return msg
}

// Edit replaces the text and buttons of an existing message in place, the
// way game bots update a battle message between rounds.
func (f *Fake) Edit(id int64, text string, buttons [][]chat.Button) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.history {
		if f.history[i].ID == id {
			f.history[i].Text = text
			f.history[i].Buttons = buttons
			return
		}
	}
}

// FailSend queues errors returned by the next SendText calls.
func (f *Fake) FailSend(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErrs = append(f.sendErrs, errs...)
}

// FailFetch queues errors returned by the next FetchRecent calls.
func (f *Fake) FailFetch(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErrs = append(f.fetchErrs, errs...)
}

// FailClick queues errors returned by the next Click calls.
func (f *Fake) FailClick(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clickErrs = append(f.clickErrs, errs...)
}

// Sent returns every text sent so far.
func (f *Fake) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// Clicks returns every accepted click so far.
func (f *Fake) Clicks() []Click {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Click(nil), f.clicks...)
}

// ClickedLabels returns the labels of every accepted click, in order.
func (f *Fake) ClickedLabels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.clicks))
	for i, c := range f.clicks {
		out[i] = c.Button.Label
	}
	return out
}

// Latest returns the most recent message.
func (f *Fake) Latest() (chat.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 {
		return chat.Message{}, false
	}
	return f.history[len(f.history)-1], true
}

func (f *Fake) SendText(ctx context.Context, chatName, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if err := pop(&f.sendErrs); err != nil {
		f.mu.Unlock()
		return err
	}
	if chatName != f.chat {
		f.mu.Unlock()
		return fmt.Errorf("chattest: unknown chat %q", chatName)
	}
	f.sent = append(f.sent, text)
	if f.Echo {
		f.appendLocked(text, nil, true)
	}
	hook := f.OnSend
	f.mu.Unlock()

	if hook != nil {
		hook(f, text)
	}
	return nil
}

func (f *Fake) FetchRecent(ctx context.Context, chatName string, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := pop(&f.fetchErrs); err != nil {
		return nil, err
	}
	if chatName != f.chat {
		return nil, fmt.Errorf("chattest: unknown chat %q", chatName)
	}

	out := make([]chat.Message, 0, limit)
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.history[i])
	}
	return out, nil
}

func (f *Fake) Click(ctx context.Context, msg chat.Message, row, col int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if err := pop(&f.clickErrs); err != nil {
		f.mu.Unlock()
		return err
	}

	var current *chat.Message
	for i := range f.history {
		if f.history[i].ID == msg.ID {
			current = &f.history[i]
			break
		}
	}
	if current == nil || row >= len(current.Buttons) || col >= len(current.Buttons[row]) {
		f.mu.Unlock()
		return ErrStaleButton
	}
	snapshot := *current
	button := current.Buttons[row][col]
	f.clicks = append(f.clicks, Click{MessageID: msg.ID, Button: button})
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		hook(f, snapshot, button)
	}
	return nil
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

var _ chat.Transport = (*Fake)(nil)
