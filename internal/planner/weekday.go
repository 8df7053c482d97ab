package planner

import (
	"time"

	"taskcal/internal/civil"
	"taskcal/internal/clock"
	"taskcal/internal/model"
)

// IsWeekend reports whether d is a Saturday or Sunday.
func IsWeekend(d civil.Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// TargetDate is the date recurring tasks are generated for: today, or
// tomorrow when forTomorrow is set.
func TargetDate(c clock.Clock, rollover, forTomorrow bool) civil.Date {
	if forTomorrow {
		return clock.Tomorrow(c, rollover)
	}
	return clock.Today(c, rollover)
}

// Applicable drops work definitions when target is a weekend.
func Applicable(defs []model.RecurringDefinition, target civil.Date) []model.RecurringDefinition {
	weekend := IsWeekend(target)
	out := make([]model.RecurringDefinition, 0, len(defs))
	for _, d := range defs {
		if weekend && d.Work {
			continue
		}
		out = append(out, d)
	}
	return out
}
