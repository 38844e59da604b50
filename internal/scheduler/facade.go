package scheduler

import (
	"context"
	"sync"
)

// The package-level functions below are a thin, optional façade over a
// single process-wide Scheduler, for embedding code that wants global
// access in the style of a static singleton. They are not required:
// embedding applications are expected to construct and own a *Scheduler
// via New directly wherever that's practical.
var (
	facadeMu  sync.Mutex
	facadeSched *Scheduler
)

// GetScheduler returns the process-wide Scheduler, creating it with the
// given config on first use. Subsequent calls ignore cfg.
func GetScheduler(cfg Config) *Scheduler {
	facadeMu.Lock()
	defer facadeMu.Unlock()
	if facadeSched == nil {
		facadeSched = New(cfg)
	}
	return facadeSched
}

// CreateScheduler replaces the process-wide Scheduler unconditionally.
// Intended for tests and for embedding code that wants to reconfigure
// before the first GetScheduler call.
func CreateScheduler(cfg Config) *Scheduler {
	facadeMu.Lock()
	defer facadeMu.Unlock()
	facadeSched = New(cfg)
	return facadeSched
}

// StartScheduler starts the process-wide scheduler.
func StartScheduler(ctx context.Context) { GetScheduler(Config{}).Start(ctx) }

// ShutdownScheduler shuts the process-wide scheduler down.
func ShutdownScheduler(wait bool) {
	facadeMu.Lock()
	s := facadeSched
	facadeMu.Unlock()
	if s != nil {
		s.Shutdown(wait)
	}
}

// LockScheduler sets the process-wide global pause.
func LockScheduler() { GetScheduler(Config{}).Lock() }

// UnlockScheduler clears the process-wide global pause.
func UnlockScheduler() { GetScheduler(Config{}).Unlock() }

// GetGlobalLock reports the process-wide global pause state.
func GetGlobalLock() bool { return GetScheduler(Config{}).IsLocked() }
