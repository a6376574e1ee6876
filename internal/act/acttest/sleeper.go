// Package acttest provides a non-blocking act.Sleeper for tests.
package acttest

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Sleeper advances a mock clock instead of blocking and records every
// requested duration. OnSleep, when set, runs after the clock has moved.
type Sleeper struct {
	clock *quartz.Mock

	mu    sync.Mutex
	slept []time.Duration

	OnSleep func(d time.Duration)
}

// NewSleeper returns a sleeper driving clock.
func NewSleeper(clock *quartz.Mock) *Sleeper {
	return &Sleeper{clock: clock}
}

func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	hook := s.OnSleep
	s.mu.Unlock()

	if d > 0 {
		s.clock.Advance(d).MustWait(ctx)
	}
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Slept returns every duration requested so far.
func (s *Sleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Count returns how many sleeps of exactly d were requested.
func (s *Sleeper) Count(d time.Duration) int {
	n := 0
	for _, got := range s.Slept() {
		if got == d {
			n++
		}
	}
	return n
}

// Total returns the sum of requested durations.
func (s *Sleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Slept() {
		total += d
	}
	return total
}
