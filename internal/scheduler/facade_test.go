package scheduler

import "testing"

func TestGetSchedulerReturnsSameInstanceOnReuse(t *testing.T) {
	first := CreateScheduler(Config{Workers: 1})
	second := GetScheduler(Config{Workers: 99})
	if first != second {
		t.Fatal("GetScheduler should return the existing process-wide instance, ignoring the new config")
	}
}

func TestCreateSchedulerReplacesInstance(t *testing.T) {
	first := CreateScheduler(Config{Workers: 1})
	second := CreateScheduler(Config{Workers: 2})
	if first == second {
		t.Fatal("CreateScheduler should always build a fresh instance")
	}
}

func TestLockScheduleUnlockFacade(t *testing.T) {
	CreateScheduler(Config{Workers: 1})
	if GetGlobalLock() {
		t.Fatal("fresh scheduler should not start locked")
	}
	LockScheduler()
	if !GetGlobalLock() {
		t.Fatal("LockScheduler should set the global pause")
	}
	UnlockScheduler()
	if GetGlobalLock() {
		t.Fatal("UnlockScheduler should clear the global pause")
	}
}
