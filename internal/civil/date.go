package civil

import (
	"fmt"
	"time"
)

// JST is the fixed local civil zone every date and section is computed in.
var JST = time.FixedZone("JST", 9*60*60)

const dateLayout = "2006-01-02"

// Date is a calendar date in local civil time with no time-of-day.
// The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalizing out-of-range values the same way
// time.Date does (e.g. Feb 30 -> Mar 1/2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, JST))
}

// DateOf returns the JST calendar date of t, converting t to JST first.
func DateOf(t time.Time) Date {
	y, m, d := t.In(JST).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, JST)
	if err != nil {
		return Date{}, fmt.Errorf("civil: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Midnight returns local midnight of d in JST.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, JST)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() time.Weekday {
	return d.Midnight().Weekday()
}

// FirstOfNextMonth returns day 1 of the month after d, rolling December into
// January of the next year.
func (d Date) FirstOfNextMonth() Date {
	if d.Month == time.December {
		return Date{Year: d.Year + 1, Month: time.January, Day: 1}
	}
	return Date{Year: d.Year, Month: d.Month + 1, Day: 1}
}

// LastOfMonth returns the last calendar day of d's month.
func (d Date) LastOfMonth() Date {
	return d.FirstOfNextMonth().AddDays(-1)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText / UnmarshalText let Date travel through YAML and JSON as "YYYY-MM-DD".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
