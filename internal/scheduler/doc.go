// Package scheduler is an in-process, in-memory job scheduler.
//
// # Overview
//
// Callers register named Jobs and attach one or more Triggers (time-based
// firing rules) to them. The Scheduler fires triggers at their computed
// times, dispatches matching jobs onto a bounded worker pool, and delivers
// a per-execution JobContext (merged key/value data, trigger identity) to
// the job.
//
// # Trigger variants
//
//   - Simple: fixed interval, optional repeat count.
//   - Cron: a six- or seven-field Quartz-flavored cron expression
//     (see internal/scheduler/cron), evaluated in a configurable time zone.
//   - CalendarInterval: a civil-calendar interval (N seconds/minutes/.../years),
//     so "1 month" from Jan 31 lands on Feb 28/29.
//
// # Concurrency
//
// One scheduler goroutine selects and fires due triggers; a bounded worker
// pool (internal/scheduler/pool) runs the jobs. A job marked
// DisallowConcurrentExecution never has two fires executing at once: its
// other triggers are held BLOCKED until the running fire completes.
//
// # Lifecycle
//
// Start/Shutdown control the scheduler goroutine and worker pool. Lock/Unlock
// pause new executions without stopping trigger-time advancement (a global,
// cooperative pause). StopJob interrupts in-flight executions cooperatively
// via the JobContext's interrupt flag; user code must poll it.
//
// # Loading declarative schedules
//
// internal/scheduler/loader parses a YAML descriptor document into Jobs and
// Triggers and installs them atomically (all-or-nothing) into a Scheduler.
package scheduler
