package civil

import "time"

// Instant is a date+time as received from an external source. A naive instant
// carries no zone: its wall-clock fields are taken as UTC. A zoned instant is
// converted through its own offset.
type Instant struct {
	Time  time.Time
	Zoned bool
}

// Naive wraps wall-clock fields that came without zone information. Any
// location attached to t is ignored.
func Naive(t time.Time) Instant {
	return Instant{Time: t, Zoned: false}
}

// Zoned wraps a time whose location/offset is meaningful.
func Zoned(t time.Time) Instant {
	return Instant{Time: t, Zoned: true}
}

// Absolute returns the instant on the UTC timeline.
func (i Instant) Absolute() time.Time {
	if i.Zoned {
		return i.Time
	}
	t := i.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Local returns the instant in JST.
func (i Instant) Local() time.Time {
	return i.Absolute().In(JST)
}

func (i Instant) IsZero() bool {
	return i.Time.IsZero()
}
