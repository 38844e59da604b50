package scheduler

import "time"

// TriggerSnapshot is a diagnostic, read-only view of one trigger.
type TriggerSnapshot struct {
	Name             string
	Group            string
	JobName          string
	Kind             string
	State            string
	Priority         int
	NextFireTime     time.Time
	PreviousFireTime time.Time
	TimesTriggered   int
}

// JobSnapshot is a diagnostic, read-only view of one job and its triggers.
type JobSnapshot struct {
	Name     string
	Group    string
	Durable  bool
	Triggers []TriggerSnapshot
}

// Snapshot returns a diagnostic view of every job and trigger currently
// in the store, for operator tooling or a status endpoint. It is a
// point-in-time copy; mutating it has no effect on the scheduler.
func (s *Scheduler) Snapshot() []JobSnapshot {
	byName := s.store.JobsAndTriggers()
	names := s.store.JobNames()

	out := make([]JobSnapshot, 0, len(names))
	for _, name := range names {
		trigs := byName[name]
		js := JobSnapshot{Name: name}
		if jd := s.store.Job(JobKey{Name: name}); jd != nil {
			js.Group = jd.Key.Group
			js.Durable = jd.Durable
		}
		for _, t := range trigs {
			js.Triggers = append(js.Triggers, TriggerSnapshot{
				Name:             t.Key.Name,
				Group:            t.Key.Group,
				JobName:          t.JobKey.Name,
				Kind:             t.Schedule.Kind(),
				State:            t.State.String(),
				Priority:         t.Priority,
				NextFireTime:     t.NextFireTime,
				PreviousFireTime: t.PreviousFireTime,
				TimesTriggered:   t.TimesTriggered,
			})
		}
		out = append(out, js)
	}
	return out
}
