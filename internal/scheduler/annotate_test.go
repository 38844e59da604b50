package scheduler

import (
	"testing"
	"time"
)

func TestInstallAnnotatedBuildsSimpleTrigger(t *testing.T) {
	RegisterAnnotated("annotated-job", func() Job { return nil }, true, AnnotatedSchedule{
		Kind:           "simple",
		RepeatInterval: time.Minute,
		RepeatCount:    RepeatIndefinitely,
		DataMapEntries: []string{"region:us-east"},
	})

	sched := New(Config{Workers: 1})
	if err := sched.InstallAnnotated(); err != nil {
		t.Fatalf("InstallAnnotated: %v", err)
	}

	jd := sched.Store().Job(JobKey{Name: "annotated-job"})
	if jd == nil {
		t.Fatal("annotated job was not installed")
	}
	if jd.Data["region"] != "us-east" {
		t.Fatalf("got data map %v, want region=us-east", jd.Data)
	}

	trigs := sched.Store().TriggersOfJob(jd.Key)
	if len(trigs) != 1 || trigs[0].Key.Name != "annotated-job-trigger" {
		t.Fatalf("unexpected triggers: %+v", trigs)
	}
}

func TestInstallAnnotatedRejectsUnknownKind(t *testing.T) {
	RegisterAnnotated("bad-annotated-job", func() Job { return nil }, true, AnnotatedSchedule{Kind: "weekly"})

	sched := New(Config{Workers: 1})
	if err := sched.InstallAnnotated(); err != ErrUnknownVariant {
		t.Fatalf("got %v, want ErrUnknownVariant", err)
	}
}
