package loader

import (
	"fmt"
	"time"

	"sundial/internal/scheduler"
)

// Loader parses schedule documents and installs them into a Scheduler. It
// holds a registry mapping a descriptor's job-class string to the
// JobFactory that builds it — the Go stand-in for the source's classpath
// lookup, since there is no reflection-based Class.forName equivalent.
type Loader struct {
	sched   *scheduler.Scheduler
	classes map[string]scheduler.JobFactory
}

// New returns a Loader bound to sched.
func New(sched *scheduler.Scheduler) *Loader {
	return &Loader{sched: sched, classes: map[string]scheduler.JobFactory{}}
}

// RegisterJobClass binds a descriptor job-class name to a factory.
func (l *Loader) RegisterJobClass(name string, factory scheduler.JobFactory) {
	l.classes[name] = factory
}

// builtJob and builtTrigger are the validated, in-memory model produced by
// Validate, before anything touches the store.
type builtJob struct {
	key                scheduler.JobKey
	factory            scheduler.JobFactory
	concurrencyAllowed bool
	opts               []scheduler.JobOption
}

type builtTrigger struct {
	trigger *scheduler.Trigger
}

// LoadFile reads, parses, validates and installs a descriptor file.
func (l *Loader) LoadFile(path string, data []byte) error {
	doc, err := Parse(path, data)
	if err != nil {
		return err
	}
	return l.Install(doc)
}

// Install validates doc in full — including that every new non-durable
// job has at least one trigger, every job names a registered job-class,
// and every trigger references a job declared in the same document —
// before making any change to the store. Installation is
// then a single pass: all jobs (replace-if-exists), then all triggers
// (replace-if-exists; a colliding identity reschedules the existing one).
func (l *Loader) Install(doc *Document) error {
	jobs, err := l.validateJobs(doc)
	if err != nil {
		return err
	}
	triggers, err := l.validateTriggers(doc, jobs)
	if err != nil {
		return err
	}

	for _, bj := range jobs {
		if err := l.sched.AddJob(bj.key, bj.factory, bj.concurrencyAllowed, bj.opts...); err != nil {
			return fmt.Errorf("install job %s: %w", bj.key.String(), err)
		}
	}
	for _, bt := range triggers {
		if err := l.sched.Store().StoreTrigger(bt.trigger, true); err != nil {
			return fmt.Errorf("install trigger %s: %w", bt.trigger.Key.String(), err)
		}
	}
	return nil
}

func (l *Loader) validateJobs(doc *Document) (map[scheduler.JobKey]builtJob, error) {
	out := make(map[scheduler.JobKey]builtJob, len(doc.Schedule.Jobs))
	jobHasTrigger := map[scheduler.JobKey]bool{}
	for _, td := range doc.Schedule.Triggers {
		jobHasTrigger[scheduler.JobKey{Name: td.JobName, Group: td.JobGroup}] = true
	}

	for _, jd := range doc.Schedule.Jobs {
		if jd.Name == "" {
			return nil, fmt.Errorf("descriptor: job missing name")
		}
		if jd.JobClass == "" {
			return nil, fmt.Errorf("descriptor: job %q missing job-class", jd.Name)
		}
		factory, ok := l.classes[jd.JobClass]
		if !ok {
			return nil, fmt.Errorf("descriptor: job %q references unregistered job-class %q", jd.Name, jd.JobClass)
		}
		key := scheduler.JobKey{Name: jd.Name, Group: jd.Group}
		existing := l.sched.Store().Job(key)
		if existing == nil && !jd.Durability && !jobHasTrigger[key] {
			return nil, fmt.Errorf("descriptor: non-durable job %q has no trigger", jd.Name)
		}
		if existing != nil && existing.Durable && !jd.Durability {
			if len(l.sched.Store().TriggersOfJob(key)) == 0 && !jobHasTrigger[key] {
				return nil, fmt.Errorf("descriptor: job %q cannot be demoted to non-durable while it has no triggers", jd.Name)
			}
		}

		concurrencyAllowed := true
		if jd.ConcurrencyAllowed != nil {
			concurrencyAllowed = *jd.ConcurrencyAllowed
		}
		opts := []scheduler.JobOption{scheduler.WithDescription(jd.Description)}
		if jd.Durability {
			opts = append(opts, scheduler.WithDurable())
		}
		if data := dataMapOf(jd.DataMap); data != nil {
			opts = append(opts, scheduler.WithJobData(data))
		}
		out[key] = builtJob{key: key, factory: factory, concurrencyAllowed: concurrencyAllowed, opts: opts}
	}
	return out, nil
}

func dataMapOf(entries []DataEntry) map[string]any {
	if len(entries) == 0 {
		return nil
	}
	m := make(map[string]any, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}

func (l *Loader) validateTriggers(doc *Document, jobs map[scheduler.JobKey]builtJob) (map[scheduler.TriggerKey]builtTrigger, error) {
	out := make(map[scheduler.TriggerKey]builtTrigger, len(doc.Schedule.Triggers))
	for _, td := range doc.Schedule.Triggers {
		if td.Name == "" {
			return nil, fmt.Errorf("descriptor: trigger missing name")
		}
		jobKey := scheduler.JobKey{Name: td.JobName, Group: td.JobGroup}
		if _, ok := jobs[jobKey]; !ok {
			return nil, fmt.Errorf("descriptor: trigger %q references undeclared job %q", td.Name, td.JobName)
		}
		trigKey := scheduler.TriggerKey{Name: td.Name, Group: td.Group}

		var (
			trig *scheduler.Trigger
			err  error
		)
		switch td.Variant {
		case "simple":
			trig, err = buildSimpleTrigger(trigKey, jobKey, td)
		case "cron":
			trig, err = buildCronTrigger(trigKey, jobKey, td)
		case "calendar-interval":
			trig, err = buildCalendarIntervalTrigger(trigKey, jobKey, td)
		default:
			return nil, fmt.Errorf("descriptor: trigger %q has unknown variant %q", td.Name, td.Variant)
		}
		if err != nil {
			return nil, fmt.Errorf("descriptor: trigger %q: %w", td.Name, err)
		}

		trig.Description = td.Description
		trig.Priority = td.Priority
		trig.CalendarName = td.CalendarName
		if data := dataMapOf(td.DataMap); data != nil {
			trig.Data = data
		}
		if err := applyStartEnd(trig, td); err != nil {
			return nil, fmt.Errorf("descriptor: trigger %q: %w", td.Name, err)
		}
		if instr, ok := misfireInstructions[td.MisfireInstruction]; ok {
			trig.Misfire = instr
		}

		out[trigKey] = builtTrigger{trigger: trig}
	}
	return out, nil
}

func applyStartEnd(trig *scheduler.Trigger, td TriggerDoc) error {
	switch {
	case td.StartTimeSecondsInFuture != nil:
		trig.StartTime = time.Now().Add(time.Duration(*td.StartTimeSecondsInFuture) * time.Second)
	case td.StartTime != "":
		st, err := parseTime(td.StartTime)
		if err != nil {
			return fmt.Errorf("invalid start-time: %w", err)
		}
		trig.StartTime = st
	default:
		// Unspecified start-time defaults to "now", already set by the
		// constructors that built trig.
	}
	if td.StartTimeSecondsInFuture != nil || td.StartTime != "" {
		// The constructor computed NextFireTime from its own start time.
		if nf, ok := trig.Schedule.NextFireTime(trig); ok {
			trig.NextFireTime = nf
		} else {
			trig.State = scheduler.StateComplete
		}
	}
	if td.EndTime != "" {
		et, err := parseTime(td.EndTime)
		if err != nil {
			return fmt.Errorf("invalid end-time: %w", err)
		}
		trig.EndTime = et
	}
	return nil
}

var misfireInstructions = map[string]scheduler.MisfireInstruction{
	"":           scheduler.MisfireSmartPolicy,
	"smart":      scheduler.MisfireSmartPolicy,
	"fire-now":   scheduler.MisfireFireNow,
	"reschedule-next-with-existing-count":      scheduler.MisfireRescheduleNextWithExistingCount,
	"reschedule-next-with-remaining-count":     scheduler.MisfireRescheduleNextWithRemainingCount,
	"reschedule-now-with-existing-repeat-count": scheduler.MisfireRescheduleNowWithExistingRepeatCount,
	"reschedule-now-with-remaining-repeat-count": scheduler.MisfireRescheduleNowWithRemainingRepeatCount,
	"do-nothing": scheduler.MisfireDoNothing,
	"fire-once-now": scheduler.MisfireFireOnceNow,
}

func buildSimpleTrigger(trigKey scheduler.TriggerKey, jobKey scheduler.JobKey, td TriggerDoc) (*scheduler.Trigger, error) {
	interval := time.Duration(0)
	if td.RepeatInterval != "" {
		d, err := time.ParseDuration(td.RepeatInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid repeat-interval: %w", err)
		}
		interval = d
	}
	count := scheduler.RepeatIndefinitely
	if td.RepeatCount != nil {
		count = *td.RepeatCount
	}
	return scheduler.NewSimpleTrigger(trigKey, jobKey, interval, count), nil
}

func buildCronTrigger(trigKey scheduler.TriggerKey, jobKey scheduler.JobKey, td TriggerDoc) (*scheduler.Trigger, error) {
	if td.CronExpression == "" {
		return nil, fmt.Errorf("missing cron-expression")
	}
	var zone *time.Location
	if td.TimeZone != "" {
		z, err := time.LoadLocation(td.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid time-zone: %w", err)
		}
		zone = z
	}
	return scheduler.NewCronTrigger(trigKey, jobKey, td.CronExpression, zone)
}

var calendarUnits = map[string]scheduler.CalendarUnit{
	"second": scheduler.UnitSecond,
	"minute": scheduler.UnitMinute,
	"hour":   scheduler.UnitHour,
	"day":    scheduler.UnitDay,
	"week":   scheduler.UnitWeek,
	"month":  scheduler.UnitMonth,
	"year":   scheduler.UnitYear,
}

func buildCalendarIntervalTrigger(trigKey scheduler.TriggerKey, jobKey scheduler.JobKey, td TriggerDoc) (*scheduler.Trigger, error) {
	unit, ok := calendarUnits[td.Unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", td.Unit)
	}
	if td.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	return scheduler.NewCalendarIntervalTrigger(trigKey, jobKey, td.Interval, unit), nil
}
