package scheduler

import "time"

// TriggerKey identifies a trigger by name and group.
type TriggerKey struct {
	Name  string
	Group string
}

func (k TriggerKey) normalize() TriggerKey {
	if k.Group == "" {
		k.Group = DefaultGroup
	}
	return k
}

func (k TriggerKey) String() string {
	k = k.normalize()
	return k.Group + "." + k.Name
}

// TriggerState is the trigger's position in its fire lifecycle.
type TriggerState int

const (
	StateNormal TriggerState = iota
	StatePaused
	StateAcquired
	StateExecuting
	StateBlocked
	StateComplete
	StateError
)

func (s TriggerState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StatePaused:
		return "PAUSED"
	case StateAcquired:
		return "ACQUIRED"
	case StateExecuting:
		return "EXECUTING"
	case StateBlocked:
		return "BLOCKED"
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MisfireInstruction selects how a trigger recovers when its nextFireTime
// has fallen more than the misfire threshold behind the current time.
type MisfireInstruction int

const (
	// MisfireSmartPolicy dispatches to a variant-specific default: for a
	// simple trigger, RescheduleNextWithRemainingCount when the repeat
	// count is indefinite or RescheduleNowWithExistingRepeatCount when
	// finite; for a cron trigger, FireOnceNow.
	MisfireSmartPolicy MisfireInstruction = iota
	MisfireFireNow
	MisfireRescheduleNextWithExistingCount
	MisfireRescheduleNextWithRemainingCount
	MisfireRescheduleNowWithExistingRepeatCount
	MisfireRescheduleNowWithRemainingRepeatCount
	MisfireDoNothing
	MisfireFireOnceNow
)

// DefaultMisfireThreshold is how far behind nextFireTime the current time
// must fall before a trigger is considered to have misfired.
const DefaultMisfireThreshold = 5 * time.Second

// RepeatIndefinitely marks a simple trigger's repeat count as unbounded.
const RepeatIndefinitely = -1

// Schedule computes and advances the variant-specific firing rule for a
// Trigger. Implementations read the owning Trigger's PreviousFireTime,
// StartTime and TimesTriggered (EndTime is applied by Trigger.advance);
// they do not hold fire-count state
// of their own, so a Trigger can be reconstructed purely from its stored
// fields (no hidden schedule-object state to keep in sync).
type Schedule interface {
	// NextFireTime returns the next fire time after t's current
	// PreviousFireTime (or StartTime, before the first fire), and whether
	// a next fire exists at all. false means the trigger is exhausted.
	NextFireTime(t *Trigger) (time.Time, bool)
	// Kind names the variant, used by the descriptor loader and
	// diagnostics; one of "simple", "cron", "calendar-interval".
	Kind() string
}

// Trigger binds a firing rule to a job. The zero value is not usable;
// construct via NewSimpleTrigger, NewCronTrigger or NewCalendarIntervalTrigger.
type Trigger struct {
	Key         TriggerKey
	JobKey      JobKey
	Description string
	Priority    int
	StartTime   time.Time
	EndTime     time.Time // zero means no end
	Data        map[string]any
	Misfire     MisfireInstruction
	CalendarName string

	Schedule Schedule

	State            TriggerState
	NextFireTime     time.Time
	PreviousFireTime time.Time
	TimesTriggered   int
}

func newTrigger(key TriggerKey, jobKey JobKey, sched Schedule) *Trigger {
	key = key.normalize()
	jobKey = jobKey.normalize()
	start := time.Now()
	t := &Trigger{
		Key:       key,
		JobKey:    jobKey,
		StartTime: start,
		Schedule:  sched,
		State:     StateNormal,
	}
	if nf, ok := sched.NextFireTime(t); ok {
		t.NextFireTime = nf
	} else {
		t.State = StateComplete
	}
	return t
}

// advance recomputes NextFireTime/PreviousFireTime/TimesTriggered after a
// fire, per 4.B: the trigger completes when its schedule is exhausted or
// the computed next fire time would exceed EndTime.
func (t *Trigger) advance(firedAt time.Time) {
	t.PreviousFireTime = firedAt
	t.TimesTriggered++
	nf, ok := t.Schedule.NextFireTime(t)
	if !ok || (!t.EndTime.IsZero() && nf.After(t.EndTime)) {
		t.State = StateComplete
		t.NextFireTime = time.Time{}
		return
	}
	t.NextFireTime = nf
	t.State = StateNormal
}

func (t *Trigger) dataSnapshot() map[string]any {
	if len(t.Data) == 0 {
		return nil
	}
	out := make(map[string]any, len(t.Data))
	for k, v := range t.Data {
		out[k] = v
	}
	return out
}

// hasMisfired reports whether now is more than threshold past
// NextFireTime. A zero threshold disables misfire detection entirely.
func (t *Trigger) hasMisfired(now time.Time, threshold time.Duration) bool {
	if t.NextFireTime.IsZero() || threshold <= 0 {
		return false
	}
	return now.Sub(t.NextFireTime) > threshold
}

// resolveMisfire applies the trigger's misfire instruction, mutating
// NextFireTime/TimesTriggered/State in place per 4.B's smart-policy table.
func (t *Trigger) resolveMisfire(now time.Time) {
	instr := t.Misfire
	if instr == MisfireSmartPolicy {
		switch t.Schedule.Kind() {
		case "simple":
			if simpleRepeatCount(t.Schedule) == RepeatIndefinitely {
				instr = MisfireRescheduleNextWithRemainingCount
			} else {
				instr = MisfireRescheduleNowWithExistingRepeatCount
			}
		case "calendar-interval":
			instr = MisfireRescheduleNextWithExistingCount
		default: // cron
			instr = MisfireFireOnceNow
		}
	}

	switch instr {
	case MisfireDoNothing:
		// Leave NextFireTime untouched; the loop will catch up on its own.
	case MisfireFireNow, MisfireFireOnceNow:
		t.NextFireTime = now
	case MisfireRescheduleNowWithExistingRepeatCount, MisfireRescheduleNowWithRemainingRepeatCount:
		t.NextFireTime = now
	case MisfireRescheduleNextWithExistingCount, MisfireRescheduleNextWithRemainingCount:
		if nf, ok := t.Schedule.NextFireTime(t); ok {
			t.NextFireTime = nf
		} else {
			t.State = StateComplete
		}
	}
}

func simpleRepeatCount(s Schedule) int {
	ss, ok := s.(*SimpleSchedule)
	if !ok {
		return 0
	}
	return ss.RepeatCount
}
