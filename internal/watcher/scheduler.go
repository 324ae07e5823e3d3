package watcher

import (
	"context"
	"time"
)

// MidnightScheduler runs Job once immediately and then at every UTC midnight until ctx ends.
type MidnightScheduler struct {
	Job func(ctx context.Context)
}

func (m *MidnightScheduler) Start(ctx context.Context) {
	go func() {
		// Run immediately once at startup
		m.Job(ctx)

		for {
			timer := time.NewTimer(time.Until(nextMidnight(time.Now())))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			m.Job(ctx)
		}
	}()
}

// nextMidnight returns the first UTC midnight strictly after now.
func nextMidnight(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}
