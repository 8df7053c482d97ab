package schedule

import (
	"time"

	"taskcal/internal/civil"
	"taskcal/internal/model"
	"taskcal/internal/section"
)

const sortKeyLayout = "15:04"

// Normalize converts ev into JST and derives duration, sort key and section.
//
// Naive instants are read as UTC. Duration is taken on the absolute timeline,
// floored to whole minutes and clamped at zero when End precedes Start.
func Normalize(ev model.CalendarEvent) model.ScheduleEntry {
	start := ev.Start.Local()
	end := ev.End.Local()

	return model.ScheduleEntry{
		SourceID:        ev.SourceID,
		UID:             ev.UID,
		Title:           ev.Title,
		Start:           start,
		End:             end,
		DurationMinutes: durationMinutes(ev.Start.Absolute(), ev.End.Absolute()),
		SortKey:         SortKey(start),
		Section:         section.Classify(start),
		Occurrence:      ev.Occurrence,
	}
}

// SortKey formats t as zero-padded "HH:MM" in JST.
func SortKey(t time.Time) string {
	return t.In(civil.JST).Format(sortKeyLayout)
}

func durationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Event turns a normalized entry back into an event with zoned JST instants.
// Normalize(Event(e)) == e.
func Event(e model.ScheduleEntry) model.CalendarEvent {
	return model.CalendarEvent{
		SourceID: e.SourceID,
		UID:      e.UID,
		Title:    e.Title,
		Start:    civil.Zoned(e.Start),
		End:      civil.Zoned(e.End),

		Occurrence: e.Occurrence,
	}
}
