package scheduler

import (
	"time"

	sundialcron "sundial/internal/scheduler/cron"
)

// CronSchedule fires according to a Quartz-flavored cron expression,
// evaluated in Zone (UTC if unset).
type CronSchedule struct {
	Expr *sundialcron.Expression
	Zone *time.Location
}

func (s *CronSchedule) Kind() string { return "cron" }

func (s *CronSchedule) zone() *time.Location {
	if s.Zone == nil {
		return time.UTC
	}
	return s.Zone
}

// NextFireTime implements 4.B: evaluator.nextAfter(max(previous, start), zone).
func (s *CronSchedule) NextFireTime(t *Trigger) (time.Time, bool) {
	after := t.StartTime
	if !t.PreviousFireTime.IsZero() && t.PreviousFireTime.After(after) {
		after = t.PreviousFireTime
	}
	// nextAfter is strict (">"), so on the very first computation we must
	// not skip a fire time exactly equal to StartTime, nor return one
	// before it.
	if t.PreviousFireTime.IsZero() {
		after = after.Add(-time.Nanosecond)
	}
	nf := s.Expr.NextAfter(after, s.zone())
	if nf.IsZero() {
		return time.Time{}, false
	}
	return nf, true
}

// NewCronTrigger builds a trigger driven by a Quartz-flavored cron
// expression, parsed via internal/scheduler/cron.
func NewCronTrigger(key TriggerKey, jobKey JobKey, expr string, zone *time.Location) (*Trigger, error) {
	parsed, err := sundialcron.Parse(expr)
	if err != nil {
		return nil, err
	}
	return newTrigger(key, jobKey, &CronSchedule{Expr: parsed, Zone: zone}), nil
}
