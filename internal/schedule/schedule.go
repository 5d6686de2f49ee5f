// Package schedule maps wall-clock time onto agent modes. Agents sleep
// between 03:00 and 05:00 US Eastern time and are awake otherwise; the
// daylight-saving rule (second Sunday of March through first Sunday of
// November at UTC-4, UTC-5 the rest of the year) is applied here so the
// result does not depend on host tzdata.
package schedule

import (
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
)

const (
	sleepStartHour = 3
	sleepEndHour   = 5
)

var (
	easternStandard = time.FixedZone("EST", -5*60*60)
	easternDaylight = time.FixedZone("EDT", -4*60*60)
)

// nthSundayUTC returns midnight UTC of the nth Sunday of the given month.
func nthSundayUTC(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7 // days until first Sunday
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// Location returns the scheduler zone in effect at t. Transitions happen at
// 2:00 local time: 07:00 UTC on the second Sunday of March and 06:00 UTC on
// the first Sunday of November.
func Location(t time.Time) *time.Location {
	u := t.UTC()
	dstStart := nthSundayUTC(u.Year(), time.March, 2).Add(7 * time.Hour)
	dstEnd := nthSundayUTC(u.Year(), time.November, 1).Add(6 * time.Hour)
	if !u.Before(dstStart) && u.Before(dstEnd) {
		return easternDaylight
	}
	return easternStandard
}

// ModeFor is a pure function from a timestamp to the agent mode: sleep when
// the scheduler-local hour is in [3,5), awake otherwise.
func ModeFor(t time.Time) domain.Mode {
	hour := t.In(Location(t)).Hour()
	if hour >= sleepStartHour && hour < sleepEndHour {
		return domain.ModeSleep
	}
	return domain.ModeAwake
}

// Today returns the calendar date at t in the scheduler zone, formatted as
// 2006-01-02. This is the value stamped into Agent.LastSlept.
func Today(t time.Time) string {
	return t.In(Location(t)).Format("2006-01-02")
}

// ShouldRunSleep reports whether the agent still owes a sleep cycle today.
// It is false once LastSlept matches today's date, so repeated invocations
// inside the sleep window run at most one compaction per calendar day.
func ShouldRunSleep(a *domain.Agent, today string) bool {
	return a.LastSlept != today
}
