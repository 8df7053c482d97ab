package recurrence

import (
	"fmt"
	"time"

	"taskcal/internal/civil"
)

// Next returns the next occurrence of r after basis. Comparisons are strict:
// a basis that is itself an occurrence advances to the following one, except
// for MonthEnd which always returns the last day of basis's month.
//
// Next panics on the zero Rule.
func Next(r Rule, basis civil.Date) civil.Date {
	switch r.kind {
	case KindDaily:
		return basis.AddDays(1)
	case KindWeekly:
		return nextWeekday(basis, r.weekday)
	case KindTueFri:
		return nextTueFri(basis)
	case KindAfterDays:
		return basis.AddDays(r.n)
	case KindNextWeek:
		return basis.AddDays(7)
	case KindMonthlyOnDay:
		return nextMonthDay(basis, r.n)
	case KindMonthEnd:
		return basis.LastOfMonth()
	case KindFirstOrThird:
		return nextFirstOrThird(basis, r.weekday)
	case KindInvalid:
	}
	panic(fmt.Sprintf("recurrence: Next called with %s rule", r))
}

// nextWeekday returns the first date strictly after d falling on wd.
func nextWeekday(d civil.Date, wd time.Weekday) civil.Date {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return d.AddDays(delta)
}

func nextTueFri(d civil.Date) civil.Date {
	switch d.Weekday() {
	case time.Tuesday:
		return d.AddDays(3)
	case time.Wednesday, time.Thursday:
		return nextWeekday(d, time.Friday)
	case time.Friday:
		return d.AddDays(4)
	default:
		return nextWeekday(d, time.Tuesday)
	}
}

func nextMonthDay(d civil.Date, n int) civil.Date {
	if d.Day < n {
		return civil.Date{Year: d.Year, Month: d.Month, Day: n}
	}
	next := d.FirstOfNextMonth()
	return civil.Date{Year: next.Year, Month: next.Month, Day: n}
}

func nextFirstOrThird(d civil.Date, wd time.Weekday) civil.Date {
	first := firstWeekdayOfMonth(d.Year, d.Month, wd)
	third := first.AddDays(14)
	switch {
	case d.Before(first):
		return first
	case d.Before(third):
		return third
	default:
		next := d.FirstOfNextMonth()
		return firstWeekdayOfMonth(next.Year, next.Month, wd)
	}
}

// firstWeekdayOfMonth scans the first seven days of the month. Every month has
// all seven weekdays in that window, so a miss is a bug.
func firstWeekdayOfMonth(year int, month time.Month, wd time.Weekday) civil.Date {
	d := civil.Date{Year: year, Month: month, Day: 1}
	for i := 0; i < 7; i++ {
		if d.Weekday() == wd {
			return d
		}
		d = d.AddDays(1)
	}
	panic(fmt.Sprintf("recurrence: no %s in first week of %04d-%02d", wd, year, int(month)))
}
