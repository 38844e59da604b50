package scheduler

import "time"

// CalendarUnit is the civil-calendar unit a CalendarIntervalSchedule
// advances by.
type CalendarUnit int

const (
	UnitSecond CalendarUnit = iota
	UnitMinute
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
)

// CalendarIntervalSchedule fires every Interval Unit-s after StartTime,
// using civil-calendar arithmetic: "1 month" from Jan 31 lands on Feb
// 28/29, not 31 days later.
type CalendarIntervalSchedule struct {
	Interval int
	Unit     CalendarUnit
}

func (s *CalendarIntervalSchedule) Kind() string { return "calendar-interval" }

// NextFireTime implements 4.B: startTime + timesTriggered * interval * unit.
func (s *CalendarIntervalSchedule) NextFireTime(t *Trigger) (time.Time, bool) {
	return s.addUnits(t.StartTime, t.TimesTriggered), true
}

func (s *CalendarIntervalSchedule) addUnits(base time.Time, count int) time.Time {
	n := s.Interval * count
	switch s.Unit {
	case UnitSecond:
		return base.Add(time.Duration(n) * time.Second)
	case UnitMinute:
		return base.Add(time.Duration(n) * time.Minute)
	case UnitHour:
		return base.Add(time.Duration(n) * time.Hour)
	case UnitDay:
		return base.AddDate(0, 0, n)
	case UnitWeek:
		return base.AddDate(0, 0, n*7)
	case UnitMonth:
		return addMonthsClamped(base, n)
	case UnitYear:
		return addMonthsClamped(base, n*12)
	default:
		return base.AddDate(0, 0, n)
	}
}

// addMonthsClamped adds months using civil-calendar semantics: if the
// target month is too short for the original day-of-month, the result
// clamps to the target month's last day instead of overflowing into the
// following month (time.AddDate overflows; this does not).
func addMonthsClamped(base time.Time, months int) time.Time {
	y, m, d := base.Date()
	totalMonths := int(m) - 1 + months
	y += totalMonths / 12
	m = time.Month(totalMonths%12 + 1)
	if m <= 0 {
		m += 12
		y--
	}
	last := daysInMonth(y, m)
	if d > last {
		d = last
	}
	return time.Date(y, m, d, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NewCalendarIntervalTrigger builds a trigger that fires every interval
// units of the civil calendar after the trigger's start time.
func NewCalendarIntervalTrigger(key TriggerKey, jobKey JobKey, interval int, unit CalendarUnit) *Trigger {
	return newTrigger(key, jobKey, &CalendarIntervalSchedule{Interval: interval, Unit: unit})
}
