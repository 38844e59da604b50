package scheduler

import (
	"log/slog"
	"testing"

	"golang.org/x/time/rate"
)

type recordingTriggerListener struct {
	fired []TriggerKey
}

func (r *recordingTriggerListener) TriggerFired(t *Trigger, ctx *JobContext) { r.fired = append(r.fired, t.Key) }
func (r *recordingTriggerListener) TriggerMisfired(t *Trigger)               {}
func (r *recordingTriggerListener) TriggerComplete(t *Trigger, code CompletionCode) {}

func TestGroupMatcherScopesNotifications(t *testing.T) {
	mgr := newListenerManager(slog.Default(), rate.Inf, 0)
	inGroup := &recordingTriggerListener{}
	mgr.addTriggerListener(inGroup, GroupMatcher{Group: "ops"})

	opsTrig := NewSimpleTrigger(TriggerKey{Name: "t1", Group: "ops"}, JobKey{Name: "j"}, 0, 0)
	otherTrig := NewSimpleTrigger(TriggerKey{Name: "t2", Group: "reports"}, JobKey{Name: "j"}, 0, 0)

	mgr.notifyTriggerFired(opsTrig, nil)
	mgr.notifyTriggerFired(otherTrig, nil)

	if len(inGroup.fired) != 1 || inGroup.fired[0].Name != "t1" {
		t.Fatalf("expected only the ops-group trigger to notify, got %v", inGroup.fired)
	}
}

func TestEverythingMatcherReceivesAll(t *testing.T) {
	mgr := newListenerManager(slog.Default(), rate.Inf, 0)
	l := &recordingTriggerListener{}
	mgr.addTriggerListener(l, nil) // nil defaults to EverythingMatcher

	t1 := NewSimpleTrigger(TriggerKey{Name: "a", Group: "x"}, JobKey{Name: "j"}, 0, 0)
	t2 := NewSimpleTrigger(TriggerKey{Name: "b", Group: "y"}, JobKey{Name: "j"}, 0, 0)
	mgr.notifyTriggerFired(t1, nil)
	mgr.notifyTriggerFired(t2, nil)

	if len(l.fired) != 2 {
		t.Fatalf("got %d notifications, want 2", len(l.fired))
	}
}

type panickingTriggerListener struct{ calls int }

func (p *panickingTriggerListener) TriggerFired(t *Trigger, ctx *JobContext) {
	p.calls++
	panic("listener exploded")
}
func (p *panickingTriggerListener) TriggerMisfired(t *Trigger)               {}
func (p *panickingTriggerListener) TriggerComplete(t *Trigger, code CompletionCode) {}

func TestPanicInListenerIsRecoveredAndDoesNotStopOthers(t *testing.T) {
	mgr := newListenerManager(slog.Default(), rate.Inf, 0)
	bad := &panickingTriggerListener{}
	good := &recordingTriggerListener{}
	mgr.addTriggerListener(bad, nil)
	mgr.addTriggerListener(good, nil)

	trig := NewSimpleTrigger(TriggerKey{Name: "t1"}, JobKey{Name: "j"}, 0, 0)

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic escaped notifyTriggerFired: %v", r)
			}
		}()
		mgr.notifyTriggerFired(trig, nil)
	}()

	if bad.calls != 1 {
		t.Fatalf("expected the panicking listener to still be invoked once, got %d", bad.calls)
	}
	if len(good.fired) != 1 {
		t.Fatalf("expected the listener after the panicking one to still run, got %d notifications", len(good.fired))
	}
}

func TestRateLimiterDropsExcessNotifications(t *testing.T) {
	mgr := newListenerManager(slog.Default(), rate.Limit(0), 1)
	l := &recordingTriggerListener{}
	mgr.addTriggerListener(l, nil)

	trig := NewSimpleTrigger(TriggerKey{Name: "t1"}, JobKey{Name: "j"}, 0, 0)
	for i := 0; i < 5; i++ {
		mgr.notifyTriggerFired(trig, nil)
	}

	if len(l.fired) != 1 {
		t.Fatalf("got %d notifications through a single-token limiter, want 1 (burst) then drops", len(l.fired))
	}
}

type recordingJobListener struct {
	toBeExecuted int
	wasExecuted  int
}

func (r *recordingJobListener) JobToBeExecuted(ctx *JobContext)    { r.toBeExecuted++ }
func (r *recordingJobListener) JobExecutionVetoed(ctx *JobContext) {}
func (r *recordingJobListener) JobWasExecuted(ctx *JobContext, code CompletionCode, err error) {
	r.wasExecuted++
}

// TestJobNotificationsIgnoreRateLimiter proves notifyJobToBeExecuted and
// notifyJobWasExecuted are delivered unconditionally even with a limiter
// that has already exhausted its burst, unlike the trigger fired/misfired/
// complete notifications the limiter exists to bound.
func TestJobNotificationsIgnoreRateLimiter(t *testing.T) {
	mgr := newListenerManager(slog.Default(), rate.Limit(0), 1)
	l := &recordingJobListener{}
	mgr.addJobListener(l, nil)

	ctx := &JobContext{jobKey: JobKey{Name: "j"}}
	for i := 0; i < 5; i++ {
		mgr.notifyJobToBeExecuted(ctx)
		mgr.notifyJobWasExecuted(ctx, CompletionSuccess, nil)
	}

	if l.toBeExecuted != 5 {
		t.Fatalf("got %d JobToBeExecuted notifications, want 5 (never rate-limited)", l.toBeExecuted)
	}
	if l.wasExecuted != 5 {
		t.Fatalf("got %d JobWasExecuted notifications, want 5 (never rate-limited)", l.wasExecuted)
	}
}
