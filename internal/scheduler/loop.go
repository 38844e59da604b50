package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// runLoop is the single scheduler goroutine: select due triggers, wait
// for their fire time, fire them, submit executions, and repeat. It exits
// when ctx is done or the scheduler reaches SHUTTING_DOWN.
func (s *Scheduler) runLoop(ctx context.Context) {
	for {
		if s.isShuttingDown() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if avail := s.pool.Available(); avail <= 0 {
			if !s.parkUntilSignalOrTimeout(ctx, s.cfg.IdleWaitTime) {
				return
			}
			continue
		}

		now := time.Now()
		noLaterThan := now.Add(s.cfg.IdleWaitTime)
		maxCount := s.pool.Available()
		if s.cfg.MaxBatchSize > 0 && s.cfg.MaxBatchSize < maxCount {
			maxCount = s.cfg.MaxBatchSize
		}

		candidates := s.store.AcquireNextTriggers(noLaterThan, maxCount, s.cfg.BatchTimeWindow)
		if len(candidates) == 0 {
			if !s.parkUntilSignalOrTimeout(ctx, s.cfg.IdleWaitTime) {
				return
			}
			continue
		}

		for _, t := range candidates {
			if !s.waitForFireTime(ctx, t) {
				// Shutting down or re-signalled mid-wait; release what we
				// haven't fired yet and loop to reassess from scratch.
				s.store.ReleaseAcquiredTrigger(t.Key)
				continue
			}
			s.fireOne(t)
		}
	}
}

// waitForFireTime blocks until t's NextFireTime, or returns false if the
// context is done or a newer signal preempts the wait before t is due.
func (s *Scheduler) waitForFireTime(ctx context.Context, t *Trigger) bool {
	d := time.Until(t.NextFireTime)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.signalCh:
		// A store mutation (new trigger, removal) may have changed what's
		// due; re-check immediately rather than sleeping the full delta.
		s.wake()
		return time.Now().After(t.NextFireTime) || time.Now().Equal(t.NextFireTime)
	}
}

// parkUntilSignalOrTimeout waits for a wake signal or idleWaitTime,
// returning false only when the context is done.
func (s *Scheduler) parkUntilSignalOrTimeout(ctx context.Context, idle time.Duration) bool {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.signalCh:
		return true
	}
}

// fireOne fires a single acquired trigger: store.TriggersFired advances
// its state, then the resulting execution is submitted to the worker
// pool. In STANDBY or while locked the submitted unit vetoes itself
// before running the job (see runFire).
func (s *Scheduler) fireOne(t *Trigger) {
	now := time.Now()
	if t.hasMisfired(now, s.cfg.MisfireThreshold) {
		s.listeners.notifyTriggerMisfired(t)
	}
	fired := s.store.TriggersFired([]*Trigger{t}, now, s.cfg.MisfireThreshold)
	for _, fr := range fired {
		s.logFire(fr)
		s.listeners.notifyTriggerFired(fr.Trigger, fr.Context)
		standby := s.isStandby()
		s.trackExecution(fr.Trigger, fr.Job, fr.Context)
		s.pool.Submit(func(runCtx context.Context) {
			s.runFire(runCtx, fr, standby)
		})
	}
}

func (s *Scheduler) logFire(fr *FiredResult) {
	s.log.Debug("trigger fired", slog.String("trigger", fr.Trigger.Key.String()), slog.String("job", fr.Job.Key.String()))
}
