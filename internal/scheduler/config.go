package scheduler

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the scheduler loop and worker pool. Zero values are
// replaced with defaults by withDefaults.
type Config struct {
	// Workers is the worker pool size. Default 10.
	Workers int

	// IdleWaitTime bounds how long the loop parks when no trigger is due.
	// Default 30s.
	IdleWaitTime time.Duration

	// BatchTimeWindow widens acquireNextTriggers' horizon so multiple
	// near-simultaneous triggers can be batched into one acquire. Default 0.
	BatchTimeWindow time.Duration

	// MaxBatchSize caps how many triggers a single acquire returns, on top
	// of the worker pool's availability. Default 0, and any value <= 0,
	// means no extra cap beyond availability.
	MaxBatchSize int

	// MisfireThreshold is how far behind NextFireTime the clock may fall
	// before a trigger is considered misfired. Default 5s.
	MisfireThreshold time.Duration

	// ListenerNotifyRateLimit bounds how many trigger listener
	// notifications (fired, misfired, complete) per second are delivered;
	// excess notifications are dropped rather than queued. Job and
	// scheduler listener notifications are not limited. Default 200/s,
	// burst 50.
	ListenerNotifyRateLimit rate.Limit
	ListenerNotifyBurst     int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.IdleWaitTime <= 0 {
		c.IdleWaitTime = 30 * time.Second
	}
	if c.MisfireThreshold <= 0 {
		c.MisfireThreshold = DefaultMisfireThreshold
	}
	if c.ListenerNotifyRateLimit <= 0 {
		c.ListenerNotifyRateLimit = 200
	}
	if c.ListenerNotifyBurst <= 0 {
		c.ListenerNotifyBurst = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
