package scheduler

import (
	"testing"
	"time"
)

func TestSimpleScheduleFiresRepeatCountPlusOneTimes(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trig := NewSimpleTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, time.Second, 3)
	trig.StartTime = start
	trig.NextFireTime = start

	var fires []time.Time
	for trig.State != StateComplete {
		fires = append(fires, trig.NextFireTime)
		trig.advance(trig.NextFireTime)
	}

	want := []time.Time{start, start.Add(time.Second), start.Add(2 * time.Second), start.Add(3 * time.Second)}
	if len(fires) != len(want) {
		t.Fatalf("got %d fires, want %d: %v", len(fires), len(want), fires)
	}
	for i, w := range want {
		if !fires[i].Equal(w) {
			t.Fatalf("fire %d: got %s, want %s", i, fires[i], w)
		}
	}
}

func TestSimpleScheduleIndefiniteNeverCompletes(t *testing.T) {
	trig := NewSimpleTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, time.Second, RepeatIndefinitely)
	for i := 0; i < 50; i++ {
		trig.advance(trig.NextFireTime)
		if trig.State == StateComplete {
			t.Fatalf("indefinite trigger completed after %d fires", i)
		}
	}
}

func TestCalendarIntervalClampsShortMonth(t *testing.T) {
	trig := NewCalendarIntervalTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, 1, UnitMonth)
	trig.StartTime = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	trig.NextFireTime = trig.StartTime

	trig.advance(trig.NextFireTime)
	want := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC) // 2024 is a leap year
	if !trig.NextFireTime.Equal(want) {
		t.Fatalf("got %s, want %s", trig.NextFireTime, want)
	}

	trig.advance(trig.NextFireTime)
	// NextFireTime is always startTime + timesTriggered*interval, not
	// chained off the previous (possibly clamped) fire: two months after
	// Jan 31 is March 31, which does exist, even though one month after
	// is the clamped Feb 29.
	want2 := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	if !trig.NextFireTime.Equal(want2) {
		t.Fatalf("got %s, want %s", trig.NextFireTime, want2)
	}
}

func TestCalendarIntervalCompletesPastEndTime(t *testing.T) {
	trig := NewCalendarIntervalTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, 1, UnitDay)
	trig.StartTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trig.EndTime = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	trig.NextFireTime = trig.StartTime

	trig.advance(trig.NextFireTime) // fires Jan 2, still within EndTime
	if trig.State == StateComplete {
		t.Fatalf("completed too early: %s", trig.NextFireTime)
	}
	trig.advance(trig.NextFireTime) // next would be Jan 3, past EndTime
	if trig.State != StateComplete {
		t.Fatalf("expected COMPLETE, got %s", trig.State)
	}
}

func TestCronScheduleFirstFireCanEqualStartTime(t *testing.T) {
	trig, err := NewCronTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, "0 0 0 * * ?", time.UTC)
	if err != nil {
		t.Fatalf("NewCronTrigger: %v", err)
	}
	trig.StartTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nf, ok := trig.Schedule.NextFireTime(trig)
	if !ok || !nf.Equal(trig.StartTime) {
		t.Fatalf("got %s ok=%v, want %s", nf, ok, trig.StartTime)
	}
}

func TestSmartMisfirePolicyDispatch(t *testing.T) {
	cases := []struct {
		name string
		trig *Trigger
		want MisfireInstruction
	}{
		{"indefinite simple", NewSimpleTrigger(TriggerKey{Name: "a"}, JobKey{Name: "j"}, time.Second, RepeatIndefinitely), MisfireRescheduleNextWithRemainingCount},
		{"finite simple", NewSimpleTrigger(TriggerKey{Name: "b"}, JobKey{Name: "j"}, time.Second, 5), MisfireRescheduleNowWithExistingRepeatCount},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			now := tc.trig.NextFireTime.Add(time.Hour)
			tc.trig.resolveMisfire(now)
			switch tc.want {
			case MisfireRescheduleNextWithRemainingCount:
				if tc.trig.NextFireTime.Equal(now) {
					t.Fatalf("expected rescheduled to a future interval-aligned time, got now")
				}
			case MisfireRescheduleNowWithExistingRepeatCount:
				if !tc.trig.NextFireTime.Equal(now) {
					t.Fatalf("expected NextFireTime == now, got %s", tc.trig.NextFireTime)
				}
			}
		})
	}
}

func TestCronSmartMisfireFiresOnceNow(t *testing.T) {
	trig, err := NewCronTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, "0 0 0 * * ?", time.UTC)
	if err != nil {
		t.Fatalf("NewCronTrigger: %v", err)
	}
	now := trig.NextFireTime.Add(time.Hour)
	trig.resolveMisfire(now)
	if !trig.NextFireTime.Equal(now) {
		t.Fatalf("expected FIRE_ONCE_NOW to set NextFireTime to now, got %s", trig.NextFireTime)
	}
}

func TestHasMisfired(t *testing.T) {
	trig := NewSimpleTrigger(TriggerKey{Name: "t"}, JobKey{Name: "j"}, time.Minute, 1)
	now := trig.NextFireTime
	if trig.hasMisfired(now, DefaultMisfireThreshold) {
		t.Fatal("should not misfire exactly on time")
	}
	if trig.hasMisfired(now.Add(DefaultMisfireThreshold), DefaultMisfireThreshold) {
		t.Fatal("should not misfire exactly at the threshold boundary")
	}
	if !trig.hasMisfired(now.Add(DefaultMisfireThreshold+time.Millisecond), DefaultMisfireThreshold) {
		t.Fatal("should misfire just past the threshold")
	}
}
