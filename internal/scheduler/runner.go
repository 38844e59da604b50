package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
)

// runFire executes one fired trigger's job, as submitted to the worker
// pool. It always notifies store.TriggeredJobComplete. A vetoed fire
// (locked or standby) only notifies job listeners of the veto and never
// instantiates the job; otherwise the job and trigger listeners are
// notified of the outcome and the job's Cleanup hook runs, even on panic.
func (s *Scheduler) runFire(ctx context.Context, fr *FiredResult, standbyAtSubmit bool) {
	defer s.untrackExecution(fr.Trigger.Key)

	if standbyAtSubmit || s.locked.Load() {
		// Global lock / standby vetoes execution entirely: no
		// jobToBeExecuted notification, no completion code recorded.
		s.listeners.notifyJobExecutionVetoed(fr.Context)
		s.log.Debug("execution vetoed (locked or standby)", slog.String("job", fr.Job.Key.String()))
		s.store.TriggeredJobComplete(fr.Trigger.Key, fr.Job.Key, CompletionSuccess)
		return
	}

	s.listeners.notifyJobToBeExecuted(fr.Context)

	job := fr.Job.Factory()
	code, runErr := s.invoke(ctx, job, fr.Context)

	s.listeners.notifyTriggerComplete(fr.Trigger, code)
	s.listeners.notifyJobWasExecuted(fr.Context, code, runErr)
	s.store.TriggeredJobComplete(fr.Trigger.Key, fr.Job.Key, code)
}

// invoke runs job.DoRun, recovering from panics, and always runs
// job.Cleanup afterward regardless of outcome.
func (s *Scheduler) invoke(ctx context.Context, job Job, jctx *JobContext) (code CompletionCode, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in job execution", slog.String("job", jctx.JobName()), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			code = CompletionJobExecutionThrewException
			runErr = errToPanicError(r)
		}
	}()
	defer job.Cleanup()

	err := job.DoRun(jctx)
	switch {
	case err == nil:
		if jctx.IsInterrupted() {
			return CompletionJobInterrupted, nil
		}
		return CompletionSuccess, nil
	case errors.Is(err, ErrJobInterrupted):
		return CompletionJobInterrupted, nil
	default:
		var rpm *RequiredParameterMissingError
		if errors.As(err, &rpm) {
			s.log.Warn("job aborted: required parameter missing", slog.String("job", jctx.JobName()), slog.String("key", rpm.Key))
			return CompletionRequiredParameterMissing, err
		}
		s.log.Error("job execution failed", slog.String("job", jctx.JobName()), slog.Any("err", err))
		return CompletionJobExecutionThrewException, err
	}
}

func errToPanicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("panic in job execution")
}
