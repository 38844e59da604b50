package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingJob struct {
	mu      *sync.Mutex
	fires   *int
	onRun   func(ctx *JobContext)
	cleanup func()
}

func (j *countingJob) DoRun(ctx *JobContext) error {
	j.mu.Lock()
	*j.fires++
	j.mu.Unlock()
	if j.onRun != nil {
		j.onRun(ctx)
	}
	return nil
}

func (j *countingJob) Cleanup() {
	if j.cleanup != nil {
		j.cleanup()
	}
}

func newCountingFactory() (JobFactory, *int, *sync.Mutex) {
	var n int
	var mu sync.Mutex
	return func() Job { return &countingJob{mu: &mu, fires: &n} }, &n, &mu
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition never became true")
	}
}

func TestSchedulerFiresSimpleTriggerEndToEnd(t *testing.T) {
	factory, n, mu := newCountingFactory()
	sched := New(Config{Workers: 2, IdleWaitTime: 20 * time.Millisecond})
	if err := sched.AddJob(JobKey{Name: "j1"}, factory, true); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := sched.AddSimpleTrigger("t1", "j1", 0, 0); err != nil {
		t.Fatalf("AddSimpleTrigger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Shutdown(true)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return *n >= 1
	})
}

func TestStartJobFiresImmediatelyWithoutATrigger(t *testing.T) {
	var gotData any
	var mu sync.Mutex
	factory := func() Job {
		return &countingJob{
			mu:    &sync.Mutex{},
			fires: new(int),
			onRun: func(ctx *JobContext) {
				mu.Lock()
				gotData, _ = ctx.Get("greeting")
				mu.Unlock()
			},
		}
	}
	sched := New(Config{Workers: 1})
	if err := sched.AddJob(JobKey{Name: "adhoc"}, factory, true, WithDurable()); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Shutdown(true)

	if err := sched.StartJob("adhoc", map[string]any{"greeting": "hello"}); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotData == "hello"
	})
}

func TestStartJobUnknownReturnsErrJobNotFound(t *testing.T) {
	sched := New(Config{Workers: 1})
	if err := sched.StartJob("nope", nil); err != ErrJobNotFound {
		t.Fatalf("got %v, want ErrJobNotFound", err)
	}
}

func TestLockVetoesExecutionWithoutError(t *testing.T) {
	factory, n, mu := newCountingFactory()
	sched := New(Config{Workers: 1, IdleWaitTime: 10 * time.Millisecond})
	_ = sched.AddJob(JobKey{Name: "j1"}, factory, true)
	_ = sched.AddSimpleTrigger("t1", "j1", 0, 0)
	sched.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Shutdown(true)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	got := *n
	mu.Unlock()
	if got != 0 {
		t.Fatalf("expected a locked scheduler to veto execution, but job ran %d times", got)
	}
}

func TestStopJobInterruptsLongRunningExecution(t *testing.T) {
	started := make(chan *JobContext, 1)
	factory := func() Job {
		return &countingJob{
			mu:    &sync.Mutex{},
			fires: new(int),
			onRun: func(ctx *JobContext) {
				started <- ctx
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					if ctx.IsInterrupted() {
						return
					}
					time.Sleep(time.Millisecond)
				}
			},
		}
	}
	sched := New(Config{Workers: 1})
	_ = sched.AddJob(JobKey{Name: "long"}, factory, true, WithDurable())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Shutdown(true)

	if err := sched.StartJob("long", nil); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	var jctx *JobContext
	select {
	case jctx = <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	if n := sched.StopJob("long"); n != 1 {
		t.Fatalf("StopJob signalled %d executions, want 1", n)
	}

	waitFor(t, time.Second, func() bool { return jctx.IsInterrupted() })
}
