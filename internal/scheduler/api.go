package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// AddJob registers a job detail. concurrencyAllowed=false sets
// DisallowConcurrentExecution. A non-durable job with no triggers is
// retained only until RemoveTrigger or the descriptor loader removes its
// last trigger, per the store's invariant.
func (s *Scheduler) AddJob(key JobKey, factory JobFactory, concurrencyAllowed bool, opts ...JobOption) error {
	jd := &JobDetail{
		Key:                         key,
		Factory:                     factory,
		DisallowConcurrentExecution: !concurrencyAllowed,
	}
	for _, o := range opts {
		o(jd)
	}
	if err := s.store.StoreJob(jd, true); err != nil {
		return err
	}
	s.listeners.notifyJobAdded(jd.Key)
	return nil
}

// JobOption customizes a JobDetail at AddJob time.
type JobOption func(*JobDetail)

// WithDurable marks the job durable (retained with zero triggers).
func WithDurable() JobOption { return func(jd *JobDetail) { jd.Durable = true } }

// WithJobData sets the job's base data map.
func WithJobData(data map[string]any) JobOption {
	return func(jd *JobDetail) { jd.Data = data }
}

// WithDescription sets the job's description.
func WithDescription(desc string) JobOption {
	return func(jd *JobDetail) { jd.Description = desc }
}

// RemoveJob removes a job and all its triggers.
func (s *Scheduler) RemoveJob(name string) bool {
	ok := s.store.RemoveJob(JobKey{Name: name})
	if ok {
		s.listeners.notifyJobRemoved(JobKey{Name: name})
		s.wake()
	}
	return ok
}

// AddCronTrigger attaches a Quartz-flavored cron trigger to jobName.
func (s *Scheduler) AddCronTrigger(name, jobName, cronExpr string, zone *time.Location) error {
	t, err := NewCronTrigger(TriggerKey{Name: name}, JobKey{Name: jobName}, cronExpr, zone)
	if err != nil {
		return err
	}
	if err := s.store.StoreTrigger(t, true); err != nil {
		return err
	}
	s.wake()
	return nil
}

// AddSimpleTrigger attaches a fixed-interval trigger to jobName.
// repeatCount of RepeatIndefinitely repeats forever.
func (s *Scheduler) AddSimpleTrigger(name, jobName string, repeatCount int, repeatInterval time.Duration) error {
	t := NewSimpleTrigger(TriggerKey{Name: name}, JobKey{Name: jobName}, repeatInterval, repeatCount)
	if err := s.store.StoreTrigger(t, true); err != nil {
		return err
	}
	s.wake()
	return nil
}

// AddCalendarIntervalTrigger attaches a civil-calendar-interval trigger to
// jobName.
func (s *Scheduler) AddCalendarIntervalTrigger(name, jobName string, interval int, unit CalendarUnit) error {
	t := NewCalendarIntervalTrigger(TriggerKey{Name: name}, JobKey{Name: jobName}, interval, unit)
	if err := s.store.StoreTrigger(t, true); err != nil {
		return err
	}
	s.wake()
	return nil
}

// RemoveTrigger removes a trigger by name.
func (s *Scheduler) RemoveTrigger(name string) bool {
	return s.store.RemoveTrigger(TriggerKey{Name: name})
}

// StartJob fires jobName immediately, outside of any trigger, with an
// optional one-off data map. If the job isn't in the store, it logs and
// returns ErrJobNotFound without firing.
func (s *Scheduler) StartJob(jobName string, data map[string]any) error {
	jd := s.store.Job(JobKey{Name: jobName})
	if jd == nil {
		s.log.Error("startJob: job not found", "job", jobName)
		return ErrJobNotFound
	}
	now := time.Now()
	adhoc := &Trigger{
		Key:          TriggerKey{Name: "ADHOC-" + jobName + "-" + strconv.FormatInt(now.UnixNano(), 36), Group: DefaultGroup},
		JobKey:       jd.Key,
		Data:         data,
		Schedule:     &SimpleSchedule{RepeatCount: 0},
		NextFireTime: now,
		State:        StateExecuting,
	}
	ctx := newJobContext(jd, adhoc, now)
	adhoc.advance(now)

	fr := &FiredResult{Trigger: adhoc, Job: jd, Context: ctx}
	s.listeners.notifyTriggerFired(adhoc, ctx)
	standby := s.isStandby()
	s.trackExecution(adhoc, jd, ctx)
	s.pool.Submit(func(runCtx context.Context) {
		s.runFire(runCtx, fr, standby)
	})
	return nil
}

// getAllJobNames / getAllJobsAndTriggers live on Store; exposed here for
// API symmetry with the source's static facade.
func (s *Scheduler) GetAllJobNames() []string { return s.store.JobNames() }

func (s *Scheduler) GetAllJobsAndTriggers() map[string][]*Trigger { return s.store.JobsAndTriggers() }

// ParseDataMapEntry parses a "KEY:VALUE" annotation string, splitting on
// the first ':' only, per the declarative annotation format.
func ParseDataMapEntry(entry string) (key, value string, ok bool) {
	i := strings.IndexByte(entry, ':')
	if i < 0 {
		return "", "", false
	}
	return entry[:i], entry[i+1:], true
}
