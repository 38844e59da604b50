package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Reserved JobContext data keys, injected by the runner on every fire.
const (
	KeyJobName             = "JOB_NAME"
	KeyTriggerName          = "TRIGGER_NAME"
	KeyTriggerCronExpression = "TRIGGER_CRON_EXPRESSION"
)

// JobContext is built fresh for each fire: the job's data map overlaid by
// the trigger's data map (trigger wins on key collision), plus the
// reserved keys above. It is owned exclusively by the executing worker for
// the duration of the run and discarded on completion.
type JobContext struct {
	data map[string]any

	executionID string
	jobKey      JobKey
	triggerKey  TriggerKey
	scheduledAt time.Time
	firedAt     time.Time

	interrupted atomic.Bool
}

func newJobContext(job *JobDetail, trig *Trigger, firedAt time.Time) *JobContext {
	merged := make(map[string]any, len(job.Data)+len(trig.Data)+3)
	for k, v := range job.Data {
		merged[k] = v
	}
	for k, v := range trig.Data {
		merged[k] = v
	}
	merged[KeyJobName] = job.Key.Name
	merged[KeyTriggerName] = trig.Key.Name
	if cs, ok := trig.Schedule.(*CronSchedule); ok {
		merged[KeyTriggerCronExpression] = cs.Expr.String()
	}
	return &JobContext{
		data:        merged,
		executionID: uuid.NewString(),
		jobKey:      job.Key,
		triggerKey:  trig.Key,
		scheduledAt: trig.NextFireTime,
		firedAt:     firedAt,
	}
}

// ExecutionID uniquely identifies this one fire, for correlating log
// lines and listener notifications across a single execution.
func (c *JobContext) ExecutionID() string { return c.executionID }

// Get returns the value for key and whether it was present.
func (c *JobContext) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// RequiredValue returns the value for key, or a *RequiredParameterMissingError
// if it is absent. The runner treats that error specially: logged and
// swallowed, recorded as CompletionRequiredParameterMissing.
func (c *JobContext) RequiredValue(key string) (any, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, &RequiredParameterMissingError{Key: key}
	}
	return v, nil
}

// Put sets a value in this execution's data map. It does not affect the
// stored job or trigger; JobContext is a private, per-fire snapshot.
func (c *JobContext) Put(key string, value any) {
	c.data[key] = value
}

// JobName is the KeyJobName reserved entry.
func (c *JobContext) JobName() string { return c.jobKey.Name }

// TriggerName is the KeyTriggerName reserved entry.
func (c *JobContext) TriggerName() string { return c.triggerKey.Name }

// ScheduledFireTime is the time this fire was due.
func (c *JobContext) ScheduledFireTime() time.Time { return c.scheduledAt }

// FireTime is the time this fire actually started.
func (c *JobContext) FireTime() time.Time { return c.firedAt }

// IsInterrupted reports whether StopJob has requested cooperative
// cancellation of this execution. User code must poll this during
// long-running work; the pool never forcibly terminates goroutines.
func (c *JobContext) IsInterrupted() bool { return c.interrupted.Load() }

func (c *JobContext) interrupt() { c.interrupted.Store(true) }
