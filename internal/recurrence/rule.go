package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind selects the family a Rule belongs to.
type Kind int

const (
	KindInvalid Kind = iota
	KindDaily
	KindWeekly
	KindTueFri
	KindAfterDays
	KindNextWeek
	KindMonthlyOnDay
	KindMonthEnd
	KindFirstOrThird
)

func (k Kind) String() string {
	switch k {
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindTueFri:
		return "weekly_tue_fri"
	case KindAfterDays:
		return "after_days"
	case KindNextWeek:
		return "next_week"
	case KindMonthlyOnDay:
		return "monthly_on_day"
	case KindMonthEnd:
		return "month_end"
	case KindFirstOrThird:
		return "first_or_third_weekday"
	default:
		return "invalid"
	}
}

// Rule is a recurrence rule: a Kind plus the parameter that family needs.
// Rules are comparable values; build them with the constructors below.
type Rule struct {
	kind    Kind
	weekday time.Weekday // KindWeekly, KindFirstOrThird
	n       int          // KindAfterDays, KindMonthlyOnDay
}

func Daily() Rule    { return Rule{kind: KindDaily} }
func TueFri() Rule   { return Rule{kind: KindTueFri} }
func NextWeek() Rule { return Rule{kind: KindNextWeek} }
func MonthEnd() Rule { return Rule{kind: KindMonthEnd} }

func WeeklyOn(day time.Weekday) Rule {
	return Rule{kind: KindWeekly, weekday: day}
}

// AfterDays advances the basis by a fixed number of days. n must be positive.
func AfterDays(n int) Rule {
	if n <= 0 {
		panic(fmt.Sprintf("recurrence: AfterDays(%d) must be positive", n))
	}
	return Rule{kind: KindAfterDays, n: n}
}

// MonthlyOnDay recurs on day n of every month. n must be 1..28 so every month
// has it.
func MonthlyOnDay(n int) Rule {
	if n < 1 || n > 28 {
		panic(fmt.Sprintf("recurrence: MonthlyOnDay(%d) out of range", n))
	}
	return Rule{kind: KindMonthlyOnDay, n: n}
}

// FirstOrThird recurs on the first and third occurrence of day in each month.
func FirstOrThird(day time.Weekday) Rule {
	return Rule{kind: KindFirstOrThird, weekday: day}
}

func (r Rule) Kind() Kind { return r.kind }

func (r Rule) Weekday() time.Weekday { return r.weekday }

func (r Rule) N() int { return r.n }

// Valid reports whether r was built by a constructor; the zero Rule is invalid.
func (r Rule) Valid() bool { return r.kind != KindInvalid }

func (r Rule) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("recurrence: cannot marshal invalid rule")
	}
	return []byte(r.Label()), nil
}

// UnmarshalText accepts a label or, for rules without one, the String form
// MarshalText writes (e.g. "after_days(5)").
func (r *Rule) UnmarshalText(b []byte) error {
	parsed, err := FromLabel(string(b))
	if err == nil {
		*r = parsed
		return nil
	}
	parsed, ok := parseCanonical(strings.TrimSpace(string(b)))
	if !ok {
		return err
	}
	*r = parsed
	return nil
}

// parseCanonical is the inverse of String. Parameters outside a
// constructor's domain are rejected instead of panicking.
func parseCanonical(s string) (Rule, bool) {
	name, arg, hasArg := strings.Cut(s, "(")
	if !hasArg {
		switch name {
		case KindDaily.String():
			return Daily(), true
		case KindTueFri.String():
			return TueFri(), true
		case KindNextWeek.String():
			return NextWeek(), true
		case KindMonthEnd.String():
			return MonthEnd(), true
		}
		return Rule{}, false
	}
	arg, ok := strings.CutSuffix(arg, ")")
	if !ok {
		return Rule{}, false
	}

	switch name {
	case KindWeekly.String(), KindFirstOrThird.String():
		wd, ok := parseWeekday(arg)
		if !ok {
			return Rule{}, false
		}
		if name == KindWeekly.String() {
			return WeeklyOn(wd), true
		}
		return FirstOrThird(wd), true
	case KindAfterDays.String():
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return Rule{}, false
		}
		return AfterDays(n), true
	case KindMonthlyOnDay.String():
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > 28 {
			return Rule{}, false
		}
		return MonthlyOnDay(n), true
	}
	return Rule{}, false
}

func parseWeekday(s string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String() == s {
			return wd, true
		}
	}
	return 0, false
}

func (r Rule) String() string {
	switch r.kind {
	case KindWeekly, KindFirstOrThird:
		return fmt.Sprintf("%s(%s)", r.kind, r.weekday)
	case KindAfterDays, KindMonthlyOnDay:
		return fmt.Sprintf("%s(%d)", r.kind, r.n)
	default:
		return r.kind.String()
	}
}
