package clock

import (
	"time"

	"taskcal/internal/civil"
)

// RolloverHour is the local hour before which "today" still means yesterday
// when rollover is requested.
const RolloverHour = 2

// Clock supplies the current instant. Everything else in taskcal takes dates as
// explicit parameters; only the planner and the scheduler hold a Clock.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().In(civil.JST)
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f).In(civil.JST)
}

// Today returns the local calendar date of c.Now(). With rollover, 00:00 to
// 01:59:59 still counts as the previous day.
func Today(c Clock, rollover bool) civil.Date {
	now := c.Now().In(civil.JST)
	if rollover && now.Hour() < RolloverHour {
		now = now.AddDate(0, 0, -1)
	}
	return civil.DateOf(now)
}

func Tomorrow(c Clock, rollover bool) civil.Date {
	return Today(c, rollover).AddDays(1)
}
