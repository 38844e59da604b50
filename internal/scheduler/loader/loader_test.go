package loader

import (
	"testing"

	"sundial/internal/scheduler"
)

type noopJob struct{}

func (noopJob) DoRun(ctx *scheduler.JobContext) error { return nil }
func (noopJob) Cleanup()                              {}

func newTestLoader() (*scheduler.Scheduler, *Loader) {
	sched := scheduler.New(scheduler.Config{})
	ld := New(sched)
	ld.RegisterJobClass("noop", func() scheduler.Job { return noopJob{} })
	return sched, ld
}

const validYAML = `
schedule:
  jobs:
    - name: report
      job-class: noop
      durability: false
  triggers:
    - variant: simple
      name: every-minute
      job-name: report
      repeat-interval: 1m
      repeat-count: -1
`

func TestParseValidYAMLDocument(t *testing.T) {
	doc, err := Parse("jobs.yaml", []byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Schedule.Jobs) != 1 || doc.Schedule.Jobs[0].Name != "report" {
		t.Fatalf("unexpected jobs: %+v", doc.Schedule.Jobs)
	}
	if len(doc.Schedule.Triggers) != 1 || doc.Schedule.Triggers[0].Variant != "simple" {
		t.Fatalf("unexpected triggers: %+v", doc.Schedule.Triggers)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	bad := `
schedule:
  jobs:
    - name: report
      job-class: noop
      bogus-field: true
`
	if _, err := Parse("jobs.yaml", []byte(bad)); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestInstallNonDurableJobWithoutTriggerIsRejected(t *testing.T) {
	_, ld := newTestLoader()
	doc, err := Parse("jobs.yaml", []byte(`
schedule:
  jobs:
    - name: lonely
      job-class: noop
      durability: false
  triggers: []
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ld.Install(doc); err == nil {
		t.Fatal("expected Install to reject a non-durable job with no trigger")
	}
}

func TestInstallIsAtomicOnTriggerValidationFailure(t *testing.T) {
	sched, ld := newTestLoader()
	doc, err := Parse("jobs.yaml", []byte(`
schedule:
  jobs:
    - name: report
      job-class: noop
      durability: false
  triggers:
    - variant: cron
      name: bad
      job-name: report
      cron-expression: ""
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ld.Install(doc); err == nil {
		t.Fatal("expected Install to fail on a trigger with a missing cron-expression")
	}
	if sched.Store().Job(scheduler.JobKey{Name: "report"}) != nil {
		t.Fatal("a job from a failed Install must not be left in the store")
	}
}

func TestInstallRejectsUndeclaredJobClass(t *testing.T) {
	_, ld := newTestLoader()
	doc, err := Parse("jobs.yaml", []byte(`
schedule:
  jobs:
    - name: report
      job-class: nonexistent-class
      durability: true
  triggers: []
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ld.Install(doc); err == nil {
		t.Fatal("expected Install to reject an unregistered job-class")
	}
}

func TestInstallSucceedsAndWiresSimpleTrigger(t *testing.T) {
	sched, ld := newTestLoader()
	doc, err := Parse("jobs.yaml", []byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ld.Install(doc); err != nil {
		t.Fatalf("Install: %v", err)
	}

	jd := sched.Store().Job(scheduler.JobKey{Name: "report"})
	if jd == nil {
		t.Fatal("job was not installed")
	}
	trigs := sched.Store().TriggersOfJob(jd.Key)
	if len(trigs) != 1 || trigs[0].Key.Name != "every-minute" {
		t.Fatalf("unexpected triggers: %+v", trigs)
	}
}

func TestInstallRejectsDurableDemotionWithNoTriggers(t *testing.T) {
	sched, ld := newTestLoader()
	_ = sched.AddJob(scheduler.JobKey{Name: "report"}, func() scheduler.Job { return noopJob{} }, true, scheduler.WithDurable())

	doc, err := Parse("jobs.yaml", []byte(`
schedule:
  jobs:
    - name: report
      job-class: noop
      durability: false
  triggers: []
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := ld.Install(doc); err == nil {
		t.Fatal("expected Install to reject demoting a durable, trigger-less job to non-durable")
	}
}
