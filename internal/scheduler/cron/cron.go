// Package cron parses Quartz-flavored cron expressions and computes the
// next time at which an expression fires.
//
// Expressions have six or seven whitespace-delimited fields: seconds,
// minutes, hours, day-of-month, month, day-of-week, and an optional year.
// The first six fields are handed to a netresearch/go-cron parser running
// in its extended-syntax mode, which already covers Quartz's `?`
// (unspecified), `L` (last), `W` (nearest weekday) and `#n`/`#L`
// (nth/last weekday occurrence) extensions; only the seventh year field has
// no equivalent in that library and is matched here.
package cron

import (
	"strings"
	"time"

	gocron "github.com/netresearch/go-cron"
)

const (
	minYear = 1970
	maxYear = 2099
)

// fieldParser parses the six standard fields (seconds through
// day-of-week) with the Quartz extensions enabled. Every Expression is
// pinned to CRON_TZ=UTC at parse time so the library always computes in a
// fixed, host-independent location; NextAfter relabels wall-clock values
// into the caller's zone around that fixed point, the same way the
// previous hand-rolled evaluator worked directly against the caller's zone.
var fieldParser = gocron.NewParser(
	gocron.Second | gocron.Minute | gocron.Hour | gocron.Dom | gocron.Month | gocron.Dow | gocron.Extended,
)

// Expression is a parsed cron expression ready to be evaluated against a
// reference time via NextAfter.
type Expression struct {
	raw      string
	schedule gocron.Schedule
	year     yearSet
}

// String returns the original expression text.
func (e *Expression) String() string { return e.raw }

// Parse parses a six- or seven-field cron expression.
func Parse(expr string) (*Expression, error) {
	raw := expr
	fields := strings.Fields(expr)
	if len(fields) != 6 && len(fields) != 7 {
		return nil, parseErr(raw, "expression", 0, "expected 6 or 7 fields, got "+itoa(len(fields)))
	}

	dow := normalizeDowField(fields[5])
	spec := "CRON_TZ=UTC " + strings.Join(fields[:5], " ") + " " + dow
	sched, err := fieldParser.Parse(spec)
	if err != nil {
		return nil, parseErr(raw, "expression", 0, err.Error())
	}

	var year yearSet
	if len(fields) == 7 {
		year, err = parseYearField(raw, fields[6])
		if err != nil {
			return nil, err
		}
	} else {
		year = fullYearSet()
	}

	return &Expression{raw: raw, schedule: sched, year: year}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// libTimeOf relabels t's wall-clock components (as observed in t's own
// location) onto the fixed UTC location the field parser was pinned to.
func libTimeOf(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// fromLibTime is the inverse of libTimeOf: it relabels a result computed
// in the fixed UTC frame back into the caller's zone, component-wise.
func fromLibTime(t time.Time, zone *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), zone)
}

// NextAfter returns the smallest instant strictly after t, in zone, that
// satisfies the expression, or the zero time.Time if no such instant
// exists within the configured year range.
func (e *Expression) NextAfter(t time.Time, zone *time.Location) time.Time {
	if zone == nil {
		zone = time.UTC
	}
	deadline := time.Date(maxYear+1, 1, 1, 0, 0, 0, 0, zone)

	lib := libTimeOf(t.In(zone))
	for {
		lib = e.schedule.Next(lib)
		if lib.IsZero() {
			return time.Time{}
		}
		next := fromLibTime(lib, zone)
		if !next.Before(deadline) {
			return time.Time{}
		}
		if e.year.has(next.Year()) {
			return next
		}
	}
}
