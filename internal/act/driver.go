// Package act wraps the chat transport with the behaviour every outbound
// action shares: a cadence delay, retries with exponential backoff, the click
// concurrency policy and handling of the game's rate-limit notice.
package act

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"

	"github.com/lox/ostrobot/internal/chat"
	"github.com/lox/ostrobot/internal/classify"
)

var (
	// ErrTransport is returned once a send, fetch or click has exhausted its retries.
	ErrTransport = errors.New("act: transport failure")
	// ErrRateLimited is returned after too many consecutive don't-rush notices.
	ErrRateLimited = errors.New("act: rate limited by game")
)

// ClickPolicy selects whether a click is acknowledged before the next read.
type ClickPolicy int

const (
	// Await waits for each click to be acknowledged.
	Await ClickPolicy = iota
	// Fire sends the click in the background and continues immediately.
	// The next read may not reflect it yet.
	Fire
)

func (p ClickPolicy) String() string {
	if p == Fire {
		return "fire"
	}
	return "await"
}

// ParseClickPolicy accepts "await" or "fire".
func ParseClickPolicy(s string) (ClickPolicy, error) {
	switch strings.ToLower(s) {
	case "", "await":
		return Await, nil
	case "fire":
		return Fire, nil
	}
	return Await, fmt.Errorf("unknown click policy %q", s)
}

// Delayer returns the pause before an action taken after reading text.
type Delayer interface {
	Delay(text string) time.Duration
}

// Config controls retries and rate-limit handling.
type Config struct {
	Chat              string
	FetchLimit        int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ClickPolicy       ClickPolicy
	RateLimitCooldown time.Duration
	MaxRateLimitHits  int
	StartCommand      string
	// RefreshDelay is the pause between the refresh and the next read.
	RefreshDelay time.Duration
}

// DefaultConfig returns the retry and cooldown defaults.
func DefaultConfig() Config {
	return Config{
		FetchLimit:        10,
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		ClickPolicy:       Await,
		RateLimitCooldown: 10 * time.Second,
		MaxRateLimitHits:  3,
		StartCommand:      "/start",
		RefreshDelay:      2 * time.Second,
	}
}

// Driver performs actions against one chat.
type Driver struct {
	transport chat.Transport
	sleeper   Sleeper
	delayer   Delayer
	logger    *log.Logger
	cfg       Config

	mu       sync.Mutex
	lastRead string
	inflight sync.WaitGroup
}

// New returns a driver. A nil delayer adds no cadence delay.
func New(transport chat.Transport, sleeper Sleeper, delayer Delayer, logger *log.Logger, cfg Config) *Driver {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 10
	}
	return &Driver{
		transport: transport,
		sleeper:   sleeper,
		delayer:   delayer,
		logger:    logger.WithPrefix("act"),
		cfg:       cfg,
	}
}

// Sleep pauses for dur or until ctx is done.
func (d *Driver) Sleep(ctx context.Context, dur time.Duration) error {
	return d.sleeper.Sleep(ctx, dur)
}

// Send posts text after the cadence delay.
func (d *Driver) Send(ctx context.Context, text string) error {
	if err := d.pace(ctx); err != nil {
		return err
	}
	d.logger.Debug("Sending", "text", text)
	return d.retry(ctx, "send", func(ctx context.Context) error {
		return d.transport.SendText(ctx, d.cfg.Chat, text)
	})
}

// Click presses b on msg after the cadence delay. Under the Fire policy the
// click runs in the background and Click returns once it has been started.
func (d *Driver) Click(ctx context.Context, msg chat.Message, b chat.Button) error {
	if err := d.pace(ctx); err != nil {
		return err
	}
	d.logger.Debug("Clicking", "label", b.Label, "message", msg.ID, "row", b.Row, "col", b.Col)

	click := func(ctx context.Context) error {
		return d.retry(ctx, "click", func(ctx context.Context) error {
			return d.transport.Click(ctx, msg, b.Row, b.Col)
		})
	}

	if d.cfg.ClickPolicy == Await {
		return click(ctx)
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if err := click(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("Background click failed", "label", b.Label, "error", err)
		}
	}()
	return nil
}

// Fetch returns the most recent messages, newest first. A don't-rush notice
// on top triggers a cooldown and a menu refresh before reading again.
func (d *Driver) Fetch(ctx context.Context) ([]chat.Message, error) {
	return d.FetchN(ctx, d.cfg.FetchLimit)
}

// FetchN is Fetch with an explicit limit. Only a notice with a new message
// ID counts as another hit; the one already answered with a refresh is
// re-read after RefreshDelay, up to MaxRateLimitHits times.
func (d *Driver) FetchN(ctx context.Context, limit int) ([]chat.Message, error) {
	var (
		hits, unanswered int
		noticeID         int64
	)
	for {
		var msgs []chat.Message
		err := d.retry(ctx, "fetch", func(ctx context.Context) error {
			var err error
			msgs, err = d.transport.FetchRecent(ctx, d.cfg.Chat, limit)
			return err
		})
		if err != nil {
			return nil, err
		}

		top, ok := latestIncoming(msgs)
		if !ok || !classify.IsRateLimit(top) {
			if ok {
				d.setLastRead(top.Text)
			}
			return msgs, nil
		}

		if hits > 0 && top.ID == noticeID {
			if unanswered++; unanswered > d.cfg.MaxRateLimitHits {
				return nil, fmt.Errorf("%w: refresh unanswered after %d reads", ErrRateLimited, unanswered)
			}
			d.logger.Debug("Refresh not answered yet", "notice", top.ID)
			if err := d.sleeper.Sleep(ctx, d.cfg.RefreshDelay); err != nil {
				return nil, err
			}
			continue
		}

		if hits >= d.cfg.MaxRateLimitHits {
			return nil, fmt.Errorf("%w: %d consecutive notices", ErrRateLimited, hits+1)
		}
		hits++
		noticeID, unanswered = top.ID, 0
		d.logger.Warn("Game asked us to slow down", "cooldown", d.cfg.RateLimitCooldown, "hit", hits)
		if err := d.sleeper.Sleep(ctx, d.cfg.RateLimitCooldown); err != nil {
			return nil, err
		}
		if d.cfg.StartCommand != "" {
			if err := d.retry(ctx, "refresh", func(ctx context.Context) error {
				return d.transport.SendText(ctx, d.cfg.Chat, d.cfg.StartCommand)
			}); err != nil {
				return nil, err
			}
		}
		if err := d.sleeper.Sleep(ctx, d.cfg.RefreshDelay); err != nil {
			return nil, err
		}
	}
}

// latestIncoming returns the newest message not sent by us.
func latestIncoming(msgs []chat.Message) (chat.Message, bool) {
	for _, m := range msgs {
		if !m.Out {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Close waits for background clicks to finish.
func (d *Driver) Close() {
	d.inflight.Wait()
}

func (d *Driver) pace(ctx context.Context) error {
	if d.delayer == nil {
		return ctx.Err()
	}
	d.mu.Lock()
	text := d.lastRead
	d.mu.Unlock()
	return d.sleeper.Sleep(ctx, d.delayer.Delay(text))
}

func (d *Driver) setLastRead(text string) {
	d.mu.Lock()
	d.lastRead = text
	d.mu.Unlock()
}

func (d *Driver) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialBackoff
	bo.MaxInterval = d.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.Reset()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= d.cfg.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrTransport, op, attempt+1, err)
		}
		wait := bo.NextBackOff()
		d.logger.Warn("Transport error, retrying", "op", op, "attempt", attempt+1, "wait", wait.Round(time.Millisecond), "error", err)
		if err := d.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
