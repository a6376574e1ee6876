package act

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Sleeper blocks for a duration or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on a quartz clock.
type ClockSleeper struct {
	Clock quartz.Clock
}

func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.Clock.NewTimer(d, "act", "sleep")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
