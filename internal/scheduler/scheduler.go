package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"sundial/internal/scheduler/pool"
)

// State is the scheduler loop's lifecycle position.
type State int32

const (
	Initialized State = iota
	Started
	Standby
	ShuttingDown
	Shutdown
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case Started:
		return "STARTED"
	case Standby:
		return "STANDBY"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// execution tracks one in-flight fire, for StopJob/IsJobRunning.
type execution struct {
	ctx  *JobContext
	job  *JobDetail
	trig *Trigger
}

// Scheduler is an explicitly constructed, independently owned scheduling
// engine: a store, a worker pool, a loop goroutine, and listener plumbing.
// There is no process-wide singleton; embedding code owns the value it
// gets back from New, and an optional package-level façade (see facade.go)
// wraps one such value for callers that want global access.
type Scheduler struct {
	cfg   Config
	log   *slog.Logger
	store *Store
	pool  *pool.Pool
	listeners *listenerManager

	stateMu sync.Mutex
	state   State

	locked atomic.Bool

	signalCh chan struct{}

	execMu sync.Mutex
	exec   map[TriggerKey]*execution

	runCtx    context.Context
	runCancel context.CancelFunc
	loopDone  chan struct{}
}

// New constructs a Scheduler in state INITIALIZED. It does not start any
// goroutines until Start is called.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:      cfg,
		log:      cfg.Logger,
		store:    NewStore(),
		pool:     pool.New(cfg.Workers, cfg.Logger),
		listeners: newListenerManager(cfg.Logger, cfg.ListenerNotifyRateLimit, cfg.ListenerNotifyBurst),
		signalCh: make(chan struct{}, 1),
		exec:     map[TriggerKey]*execution{},
		state:    Initialized,
	}
	return s
}

// Store exposes the underlying job store, primarily for the descriptor
// loader, which installs jobs/triggers directly.
func (s *Scheduler) Store() *Store { return s.store }

// AddTriggerListener registers l, scoped by matcher (EverythingMatcher if nil).
func (s *Scheduler) AddTriggerListener(l TriggerListener, matcher Matcher) {
	s.listeners.addTriggerListener(l, matcher)
}

// AddJobListener registers l, scoped by matcher (EverythingMatcher if nil).
func (s *Scheduler) AddJobListener(l JobListener, matcher Matcher) {
	s.listeners.addJobListener(l, matcher)
}

// AddSchedulerListener registers a scheduler-wide listener.
func (s *Scheduler) AddSchedulerListener(l SchedulerListener) {
	s.listeners.addSchedulerListener(l)
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Start launches the worker pool and the scheduler loop goroutine.
// Calling Start while already started is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.stateMu.Lock()
	if s.state == Started || s.state == Standby {
		s.stateMu.Unlock()
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})
	s.state = Started
	s.stateMu.Unlock()

	s.pool.Start(s.runCtx)
	go func() {
		defer close(s.loopDone)
		s.runLoop(s.runCtx)
	}()
	s.listeners.notifySchedulerStarted()
	s.log.Info("scheduler started", slog.Int("workers", s.cfg.Workers))
}

// Standby transitions the loop to STANDBY: trigger times keep advancing
// and fires are still submitted, but each submitted unit vetoes itself
// before running the job.
func (s *Scheduler) Standby() {
	s.stateMu.Lock()
	if s.state == Started {
		s.state = Standby
	}
	s.stateMu.Unlock()
	s.wake()
}

// Resume transitions STANDBY back to STARTED.
func (s *Scheduler) Resume() {
	s.stateMu.Lock()
	if s.state == Standby {
		s.state = Started
	}
	s.stateMu.Unlock()
	s.wake()
}

// Shutdown stops accepting new executions, wakes and exits the loop, and
// shuts the worker pool down. If wait is true it blocks until all
// in-flight executions complete.
func (s *Scheduler) Shutdown(wait bool) {
	s.stateMu.Lock()
	if s.state == Shutdown || s.state == ShuttingDown {
		s.stateMu.Unlock()
		return
	}
	s.state = ShuttingDown
	s.stateMu.Unlock()

	s.listeners.notifySchedulerShuttingDown()
	s.wake()
	<-s.loopDone

	s.pool.Shutdown(wait)
	if s.runCancel != nil {
		s.runCancel()
	}

	s.stateMu.Lock()
	s.state = Shutdown
	s.stateMu.Unlock()
	s.log.Info("scheduler shut down", slog.Bool("waited", wait))
}

// Lock sets the global pause: the loop keeps advancing trigger times but
// dispatched units abort pre-execution.
func (s *Scheduler) Lock() { s.locked.Store(true) }

// Unlock clears the global pause.
func (s *Scheduler) Unlock() { s.locked.Store(false) }

// IsLocked reports the global pause state.
func (s *Scheduler) IsLocked() bool { return s.locked.Load() }

// wake is the signaler (component I): a non-blocking send that coalesces
// multiple wake requests between loop iterations into one.
func (s *Scheduler) wake() {
	select {
	case s.signalCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) isShuttingDown() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state == ShuttingDown || s.state == Shutdown
}

func (s *Scheduler) isStandby() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state == Standby
}

func (s *Scheduler) trackExecution(t *Trigger, jd *JobDetail, ctx *JobContext) {
	s.execMu.Lock()
	s.exec[t.Key] = &execution{ctx: ctx, job: jd, trig: t}
	s.execMu.Unlock()
}

func (s *Scheduler) untrackExecution(key TriggerKey) {
	s.execMu.Lock()
	delete(s.exec, key)
	s.execMu.Unlock()
}

// IsJobRunning reports whether any trigger of the named job currently has
// an execution in flight.
func (s *Scheduler) IsJobRunning(jobName string) bool {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	for _, e := range s.exec {
		if e.job.Key.Name == jobName {
			return true
		}
	}
	return false
}

// StopJob requests cooperative interruption of every in-flight execution
// of the named job, optionally narrowed to executions whose data map holds
// key=value (case-insensitive on both key and value; only string values
// match). It returns the
// number of executions signalled.
func (s *Scheduler) StopJob(jobName string, keyValue ...[2]string) int {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	n := 0
	for _, e := range s.exec {
		if e.job.Key.Name != jobName {
			continue
		}
		if len(keyValue) > 0 && !matchesDataMap(e.ctx, keyValue[0][0], keyValue[0][1]) {
			continue
		}
		e.ctx.interrupt()
		n++
	}
	return n
}

func matchesDataMap(ctx *JobContext, key, value string) bool {
	for k, v := range ctx.data {
		if !strings.EqualFold(k, key) {
			continue
		}
		if sv, ok := v.(string); ok && strings.EqualFold(sv, value) {
			return true
		}
	}
	return false
}
