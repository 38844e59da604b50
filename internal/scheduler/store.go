package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Store is the in-memory index of jobs, triggers, and their relationships.
// It is the single shared mutable structure in the scheduler; every
// mutating operation holds mu for its duration.
type Store struct {
	mu sync.Mutex

	jobs     map[JobKey]*JobDetail
	triggers map[TriggerKey]*Trigger
	byJob    map[JobKey]map[TriggerKey]struct{}
	blocked  map[JobKey]bool

	// order is triggers sorted by (NextFireTime asc, Priority desc, Name
	// asc), kept current via binary-search insertion. COMPLETE triggers
	// are excluded.
	order []TriggerKey
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		jobs:     map[JobKey]*JobDetail{},
		triggers: map[TriggerKey]*Trigger{},
		byJob:    map[JobKey]map[TriggerKey]struct{}{},
		blocked:  map[JobKey]bool{},
	}
}

func (s *Store) less(a, b TriggerKey) bool {
	ta, tb := s.triggers[a], s.triggers[b]
	if !ta.NextFireTime.Equal(tb.NextFireTime) {
		return ta.NextFireTime.Before(tb.NextFireTime)
	}
	if ta.Priority != tb.Priority {
		return ta.Priority > tb.Priority // higher priority first
	}
	return ta.Key.Name < tb.Key.Name
}

func (s *Store) insertOrdered(key TriggerKey) {
	i := sort.Search(len(s.order), func(i int) bool { return s.less(key, s.order[i]) })
	s.order = append(s.order, TriggerKey{})
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = key
}

func (s *Store) removeOrdered(key TriggerKey) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// StoreJob inserts or, if replace is true, replaces a job by identity.
func (s *Store) StoreJob(jd *JobDetail, replace bool) error {
	jd.Key = jd.Key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[jd.Key]; exists && !replace {
		return ErrAlreadyExists
	}
	s.jobs[jd.Key] = jd
	if _, ok := s.byJob[jd.Key]; !ok {
		s.byJob[jd.Key] = map[TriggerKey]struct{}{}
	}
	return nil
}

// StoreTrigger inserts or, if replace is true, replaces a trigger by
// identity. The target job must already exist.
func (s *Store) StoreTrigger(t *Trigger, replace bool) error {
	t.Key = t.Key.normalize()
	t.JobKey = t.JobKey.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.triggers[t.Key]; exists {
		if !replace {
			return ErrAlreadyExists
		}
		s.removeOrdered(t.Key)
	}
	if _, ok := s.jobs[t.JobKey]; !ok {
		return ErrJobNotFound
	}
	s.triggers[t.Key] = t
	if _, ok := s.byJob[t.JobKey]; !ok {
		s.byJob[t.JobKey] = map[TriggerKey]struct{}{}
	}
	s.byJob[t.JobKey][t.Key] = struct{}{}
	if t.State != StateComplete {
		s.insertOrdered(t.Key)
	}
	return nil
}

// RemoveJob removes a job and all of its triggers.
func (s *Store) RemoveJob(key JobKey) bool {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; !ok {
		return false
	}
	for tk := range s.byJob[key] {
		s.removeOrdered(tk)
		delete(s.triggers, tk)
	}
	delete(s.byJob, key)
	delete(s.jobs, key)
	delete(s.blocked, key)
	return true
}

// RemoveTrigger removes a trigger; if its job then has zero triggers and
// is not durable, the job is removed too.
func (s *Store) RemoveTrigger(key TriggerKey) bool {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[key]
	if !ok {
		return false
	}
	s.removeOrdered(key)
	delete(s.triggers, key)
	if set, ok := s.byJob[t.JobKey]; ok {
		delete(set, key)
		if len(set) == 0 {
			if jd, ok := s.jobs[t.JobKey]; ok && !jd.Durable {
				delete(s.byJob, t.JobKey)
				delete(s.jobs, t.JobKey)
				delete(s.blocked, t.JobKey)
			}
		}
	}
	return true
}

// AcquireNextTriggers returns up to maxCount triggers due at or before
// noLaterThan+timeWindow, in (NextFireTime asc, Priority desc, Name asc)
// order, atomically marking them ACQUIRED. A trigger whose job is
// currently BLOCKED (non-concurrent job already executing) is skipped.
func (s *Store) AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) []*Trigger {
	deadline := noLaterThan.Add(timeWindow)
	s.mu.Lock()
	defer s.mu.Unlock()

	var acquired []*Trigger
	for _, key := range s.order {
		if len(acquired) >= maxCount {
			break
		}
		t := s.triggers[key]
		if t == nil || t.State != StateNormal {
			continue
		}
		if !t.NextFireTime.Before(deadline) && !t.NextFireTime.Equal(deadline) {
			break // order is sorted by NextFireTime; nothing further qualifies
		}
		if s.blocked[t.JobKey] {
			continue
		}
		t.State = StateAcquired
		acquired = append(acquired, t)
	}
	return acquired
}

// ReleaseAcquiredTrigger returns an acquired-but-not-yet-fired trigger to
// NORMAL.
func (s *Store) ReleaseAcquiredTrigger(key TriggerKey) {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[key]
	if !ok || t.State != StateAcquired {
		return
	}
	t.State = StateNormal
}

// FiredResult is the per-trigger outcome of TriggersFired: a job/trigger
// pair ready to execute, with its context already built.
type FiredResult struct {
	Trigger *Trigger
	Job     *JobDetail
	Context *JobContext
}

// TriggersFired advances each acquired trigger's state (misfire
// resolution, then NextFireTime/PreviousFireTime/TimesTriggered), marks it
// EXECUTING, reinserts it at its new NextFireTime or finalizes it as
// COMPLETE, and — for a non-concurrent job — BLOCKs that job's other
// triggers (NORMAL or ACQUIRED) until the fire completes. A trigger that
// is no longer ACQUIRED when it reaches this call is skipped.
func (s *Store) TriggersFired(acquired []*Trigger, now time.Time, misfireThreshold time.Duration) []*FiredResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]*FiredResult, 0, len(acquired))
	for _, t := range acquired {
		if t.State != StateAcquired {
			// Released, or BLOCKED by an earlier fire of the same
			// non-concurrent job in this batch; it is not fired now.
			continue
		}
		if t.hasMisfired(now, misfireThreshold) {
			t.resolveMisfire(now)
		}
		jd := s.jobs[t.JobKey]
		if jd == nil {
			// Job was removed out from under an acquired trigger; drop it.
			s.removeOrdered(t.Key)
			delete(s.triggers, t.Key)
			continue
		}
		ctx := newJobContext(jd, t, now)

		t.State = StateExecuting
		t.advance(now)
		s.removeOrdered(t.Key)
		if t.State == StateComplete {
			s.finalizeComplete(t)
		} else {
			s.insertOrdered(t.Key)
		}

		if jd.DisallowConcurrentExecution {
			s.blocked[jd.Key] = true
			for tk := range s.byJob[jd.Key] {
				if ot, ok := s.triggers[tk]; ok && (ot.State == StateNormal || ot.State == StateAcquired) {
					ot.State = StateBlocked
				}
			}
		}

		results = append(results, &FiredResult{Trigger: t, Job: jd, Context: ctx})
	}
	return results
}

// TriggeredJobComplete unblocks sibling triggers of a non-concurrent job
// once its fire has finished, and finalizes the fired trigger if it
// reached COMPLETE.
func (s *Store) TriggeredJobComplete(triggerKey TriggerKey, jobKey JobKey, code CompletionCode) {
	triggerKey = triggerKey.normalize()
	jobKey = jobKey.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocked, jobKey)
	for tk := range s.byJob[jobKey] {
		if ot, ok := s.triggers[tk]; ok && ot.State == StateBlocked {
			ot.State = StateNormal
		}
	}

	if t, ok := s.triggers[triggerKey]; ok && t.State == StateComplete {
		s.finalizeComplete(t)
	}
}

// finalizeComplete removes a COMPLETE trigger and, if its job has no
// remaining triggers and isn't durable, cascade-removes the job too.
// Caller must hold s.mu.
func (s *Store) finalizeComplete(t *Trigger) {
	delete(s.triggers, t.Key)
	if set, ok := s.byJob[t.JobKey]; ok {
		delete(set, t.Key)
		if len(set) == 0 {
			if jd, ok := s.jobs[t.JobKey]; ok && !jd.Durable {
				delete(s.byJob, t.JobKey)
				delete(s.jobs, t.JobKey)
				delete(s.blocked, t.JobKey)
			}
		}
	}
}

// Job returns a copy-free pointer to the stored job detail, or nil.
func (s *Store) Job(key JobKey) *JobDetail {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[key]
}

// Trigger returns the stored trigger, or nil.
func (s *Store) Trigger(key TriggerKey) *Trigger {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers[key]
}

// JobNames returns every stored job name, alphabetically.
func (s *Store) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// JobsAndTriggers returns every job keyed by name, each with its triggers,
// for diagnostics and the programmatic API's getAllJobsAndTriggers.
func (s *Store) JobsAndTriggers() map[string][]*Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]*Trigger, len(s.jobs))
	for jk := range s.jobs {
		var trigs []*Trigger
		for tk := range s.byJob[jk] {
			trigs = append(trigs, s.triggers[tk])
		}
		sort.Slice(trigs, func(i, j int) bool { return trigs[i].Key.Name < trigs[j].Key.Name })
		out[jk.Name] = trigs
	}
	return out
}

// TriggersOfJob returns the triggers currently bound to a job.
func (s *Store) TriggersOfJob(key JobKey) []*Trigger {
	key = key.normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Trigger
	for tk := range s.byJob[key] {
		out = append(out, s.triggers[tk])
	}
	return out
}
