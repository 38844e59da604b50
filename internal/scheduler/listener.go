package scheduler

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/time/rate"
)

// Matcher predicates over a trigger or job identity, used to scope a
// listener registration. EverythingMatcher matches unconditionally.
type Matcher interface {
	MatchesTrigger(key TriggerKey) bool
	MatchesJob(key JobKey) bool
}

type everythingMatcher struct{}

func (everythingMatcher) MatchesTrigger(TriggerKey) bool { return true }
func (everythingMatcher) MatchesJob(JobKey) bool         { return true }

// EverythingMatcher matches every trigger and job.
var EverythingMatcher Matcher = everythingMatcher{}

// GroupMatcher matches only triggers/jobs in a given group.
type GroupMatcher struct{ Group string }

func (m GroupMatcher) MatchesTrigger(key TriggerKey) bool { return key.normalize().Group == m.Group }
func (m GroupMatcher) MatchesJob(key JobKey) bool         { return key.normalize().Group == m.Group }

// TriggerListener observes a trigger's fire lifecycle. Implementations
// must return quickly; they run synchronously on the scheduler thread
// (TriggerMisfired, TriggerFired; StartJob calls TriggerFired on its
// caller's goroutine) or the worker thread (TriggerComplete).
type TriggerListener interface {
	TriggerFired(t *Trigger, ctx *JobContext)
	TriggerMisfired(t *Trigger)
	TriggerComplete(t *Trigger, code CompletionCode)
}

// JobListener observes a job execution's lifecycle, on the worker thread.
type JobListener interface {
	JobToBeExecuted(ctx *JobContext)
	JobExecutionVetoed(ctx *JobContext)
	JobWasExecuted(ctx *JobContext, code CompletionCode, err error)
}

// SchedulerListener observes scheduler-wide lifecycle events.
type SchedulerListener interface {
	SchedulerStarted()
	SchedulerShuttingDown()
	SchedulerError(err error)
	JobAdded(key JobKey)
	JobRemoved(key JobKey)
}

type triggerListenerEntry struct {
	listener TriggerListener
	matcher  Matcher
}

type jobListenerEntry struct {
	listener JobListener
	matcher  Matcher
}

// listenerManager holds copy-on-write listener lists and dispatches
// notifications, recovering from and logging any listener panic or
// failure so it never aborts a fire. Trigger fired/misfired/complete
// notifications beyond a configured rate are dropped rather than queued,
// to bound the cost of a noisy listener set under load; job lifecycle
// notifications (to-be-executed, vetoed, was-executed) are never
// rate-limited since each carries state a caller cannot reconstruct if
// it's dropped.
type listenerManager struct {
	log *slog.Logger

	mu               sync.Mutex
	triggerListeners []triggerListenerEntry
	jobListeners     []jobListenerEntry
	schedListeners   []SchedulerListener

	limiter *rate.Limiter
}

func newListenerManager(log *slog.Logger, notifyRateLimit rate.Limit, notifyBurst int) *listenerManager {
	if notifyBurst <= 0 {
		notifyBurst = 1
	}
	return &listenerManager{
		log:     log,
		limiter: rate.NewLimiter(notifyRateLimit, notifyBurst),
	}
}

func (m *listenerManager) addTriggerListener(l TriggerListener, matcher Matcher) {
	if matcher == nil {
		matcher = EverythingMatcher
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]triggerListenerEntry, len(m.triggerListeners)+1)
	copy(next, m.triggerListeners)
	next[len(m.triggerListeners)] = triggerListenerEntry{l, matcher}
	m.triggerListeners = next
}

func (m *listenerManager) addJobListener(l JobListener, matcher Matcher) {
	if matcher == nil {
		matcher = EverythingMatcher
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]jobListenerEntry, len(m.jobListeners)+1)
	copy(next, m.jobListeners)
	next[len(m.jobListeners)] = jobListenerEntry{l, matcher}
	m.jobListeners = next
}

func (m *listenerManager) addSchedulerListener(l SchedulerListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]SchedulerListener, len(m.schedListeners)+1)
	copy(next, m.schedListeners)
	next[len(m.schedListeners)] = l
	m.schedListeners = next
}

func (m *listenerManager) snapshot() ([]triggerListenerEntry, []jobListenerEntry, []SchedulerListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggerListeners, m.jobListeners, m.schedListeners
}

func (m *listenerManager) notifyTriggerFired(t *Trigger, ctx *JobContext) {
	tl, _, _ := m.snapshot()
	for _, e := range tl {
		if !e.matcher.MatchesTrigger(t.Key) {
			continue
		}
		if !m.allow() {
			continue
		}
		m.guard(func() { e.listener.TriggerFired(t, ctx) })
	}
}

func (m *listenerManager) notifyTriggerMisfired(t *Trigger) {
	tl, _, _ := m.snapshot()
	for _, e := range tl {
		if !e.matcher.MatchesTrigger(t.Key) || !m.allow() {
			continue
		}
		m.guard(func() { e.listener.TriggerMisfired(t) })
	}
}

func (m *listenerManager) notifyTriggerComplete(t *Trigger, code CompletionCode) {
	tl, _, _ := m.snapshot()
	for _, e := range tl {
		if !e.matcher.MatchesTrigger(t.Key) || !m.allow() {
			continue
		}
		m.guard(func() { e.listener.TriggerComplete(t, code) })
	}
}

func (m *listenerManager) notifyJobToBeExecuted(ctx *JobContext) {
	_, jl, _ := m.snapshot()
	for _, e := range jl {
		if !e.matcher.MatchesJob(ctx.jobKey) {
			continue
		}
		m.guard(func() { e.listener.JobToBeExecuted(ctx) })
	}
}

func (m *listenerManager) notifyJobExecutionVetoed(ctx *JobContext) {
	_, jl, _ := m.snapshot()
	for _, e := range jl {
		if !e.matcher.MatchesJob(ctx.jobKey) {
			continue
		}
		m.guard(func() { e.listener.JobExecutionVetoed(ctx) })
	}
}

// notifyJobWasExecuted is never rate-limited: a completion notification
// carries the job's outcome and must always be delivered, unlike the
// higher-frequency fire/misfire notifications the limiter exists for.
func (m *listenerManager) notifyJobWasExecuted(ctx *JobContext, code CompletionCode, err error) {
	_, jl, _ := m.snapshot()
	for _, e := range jl {
		if !e.matcher.MatchesJob(ctx.jobKey) {
			continue
		}
		m.guard(func() { e.listener.JobWasExecuted(ctx, code, err) })
	}
}

func (m *listenerManager) notifySchedulerStarted() {
	_, _, sl := m.snapshot()
	for _, l := range sl {
		m.guard(l.SchedulerStarted)
	}
}

func (m *listenerManager) notifySchedulerShuttingDown() {
	_, _, sl := m.snapshot()
	for _, l := range sl {
		m.guard(l.SchedulerShuttingDown)
	}
}

func (m *listenerManager) notifySchedulerError(err error) {
	_, _, sl := m.snapshot()
	for _, l := range sl {
		l := l
		m.guard(func() { l.SchedulerError(err) })
	}
}

func (m *listenerManager) notifyJobAdded(key JobKey) {
	_, _, sl := m.snapshot()
	for _, l := range sl {
		l := l
		m.guard(func() { l.JobAdded(key) })
	}
}

func (m *listenerManager) notifyJobRemoved(key JobKey) {
	_, _, sl := m.snapshot()
	for _, l := range sl {
		l := l
		m.guard(func() { l.JobRemoved(key) })
	}
}

func (m *listenerManager) allow() bool {
	if m.limiter == nil {
		return true
	}
	return m.limiter.Allow()
}

// guard runs fn, recovering from and logging any panic so a misbehaving
// listener never aborts the fire or crashes the scheduler thread.
func (m *listenerManager) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in scheduler listener", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}
