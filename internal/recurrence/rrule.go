package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"taskcal/internal/civil"
)

var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ROption describes r as an RFC 5545 recurrence anchored at basis (JST midnight).
// Relative rules (AfterDays, NextWeek) become fixed-interval series starting at
// basis, which is how they look once exported to a calendar.
func (r Rule) ROption(basis civil.Date) rrule.ROption {
	opt := rrule.ROption{
		Dtstart:  basis.Midnight(),
		Interval: 1,
	}
	switch r.kind {
	case KindDaily:
		opt.Freq = rrule.DAILY
	case KindWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[r.weekday]}
	case KindTueFri:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.TU, rrule.FR}
	case KindAfterDays:
		opt.Freq = rrule.DAILY
		opt.Interval = r.n
	case KindNextWeek:
		opt.Freq = rrule.WEEKLY
	case KindMonthlyOnDay:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{r.n}
	case KindMonthEnd:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{-1}
	case KindFirstOrThird:
		wd := rruleWeekdays[r.weekday]
		opt.Freq = rrule.MONTHLY
		opt.Byweekday = []rrule.Weekday{wd.Nth(1), wd.Nth(3)}
	}
	return opt
}

// RRule builds the rrule-go rule for r anchored at basis.
func (r Rule) RRule(basis civil.Date) (*rrule.RRule, error) {
	return rrule.NewRRule(r.ROption(basis))
}
