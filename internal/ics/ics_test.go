package ics

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/civil"
	"taskcal/internal/model"
	"taskcal/internal/recurrence"
	"taskcal/internal/schedule"
	"taskcal/internal/section"
)

func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var sample = feed(
	"BEGIN:VEVENT",
	"UID:naive-1",
	"DTSTAMP:20240301T000000Z",
	"SUMMARY:standup",
	"DTSTART:20240320T053000",
	"DTEND:20240320T063000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:utc-1",
	"DTSTAMP:20240301T000000Z",
	"SUMMARY:lunch",
	"DTSTART:20240320T030000Z",
	"DTEND:20240320T040000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:tz-1",
	"DTSTAMP:20240301T000000Z",
	"SUMMARY:dinner",
	"DTSTART;TZID=Asia/Tokyo:20240320T190000",
	"DTEND;TZID=Asia/Tokyo:20240320T203000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:allday-1",
	"DTSTAMP:20240301T000000Z",
	"SUMMARY:holiday",
	"DTSTART;VALUE=DATE:20240320",
	"DTEND;VALUE=DATE:20240321",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20240301T000000Z",
	"SUMMARY:gym",
	"DTSTART;TZID=Asia/Tokyo:20240306T070000",
	"DTEND;TZID=Asia/Tokyo:20240306T080000",
	"RRULE:FREQ=WEEKLY;BYDAY=WE",
	"EXDATE;TZID=Asia/Tokyo:20240313T070000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20240301T000000Z",
	"RECURRENCE-ID;TZID=Asia/Tokyo:20240320T070000",
	"SUMMARY:gym moved",
	"DTSTART;TZID=Asia/Tokyo:20240320T180000",
	"DTEND;TZID=Asia/Tokyo:20240320T190000",
	"END:VEVENT",
)

func parseSample(t *testing.T) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(Source{ID: "test", URL: "https://example.com/cal.ics"}, sample)
	require.NoError(t, err)
	require.Len(t, events, 6)
	return events
}

func byUID(events []ParsedEvent, uid string) ParsedEvent {
	for _, ev := range events {
		if ev.UID == uid && !ev.IsOverride {
			return ev
		}
	}
	return ParsedEvent{}
}

func TestParseDistinguishesNaiveAndZoned(t *testing.T) {
	events := parseSample(t)

	naive := byUID(events, "naive-1")
	assert.False(t, naive.Start.Zoned)
	assert.Equal(t, 5, naive.Start.Time.Hour())

	utc := byUID(events, "utc-1")
	assert.True(t, utc.Start.Zoned)

	tz := byUID(events, "tz-1")
	assert.True(t, tz.Start.Zoned)
	assert.Equal(t, "Asia/Tokyo", tz.Start.Time.Location().String())

	allDay := byUID(events, "allday-1")
	assert.True(t, allDay.AllDay)

	weekly := byUID(events, "weekly-1")
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=WE", weekly.RawRRule)
	require.Len(t, weekly.ExDates, 1)
}

func TestParseRejectsEmptyBody(t *testing.T) {
	_, err := ParseICS(Source{ID: "x"}, nil)
	assert.Error(t, err)
}

func TestExpandDay(t *testing.T) {
	events := parseSample(t)
	day := civil.Date{Year: 2024, Month: time.March, Day: 20}

	res, err := Expand(events, DayConfig(day))
	require.NoError(t, err)
	require.Len(t, res.Events, 4)

	got := map[string]model.ScheduleEntry{}
	for _, ev := range res.Events {
		e := schedule.Normalize(ev)
		got[e.Title] = e
	}

	assert.Equal(t, "14:30", got["standup"].SortKey)
	assert.Equal(t, section.C, got["standup"].Section)
	assert.Equal(t, "12:00", got["lunch"].SortKey)
	assert.Equal(t, section.B, got["lunch"].Section)
	assert.Equal(t, "19:00", got["dinner"].SortKey)
	assert.Equal(t, 90, got["dinner"].DurationMinutes)
	assert.Equal(t, "18:00", got["gym moved"].SortKey)
	assert.Equal(t, section.D, got["gym moved"].Section)
	_, hasHoliday := got["holiday"]
	assert.False(t, hasHoliday)

	// The moved occurrence keeps its original slot as identity.
	wantOcc := time.Date(2024, time.March, 19, 22, 0, 0, 0, time.UTC)
	assert.True(t, got["gym moved"].Occurrence.Equal(wantOcc), "occurrence %s", got["gym moved"].Occurrence)
	assert.True(t, got["lunch"].Occurrence.IsZero())
}

func TestExpandHonoursExDate(t *testing.T) {
	events := parseSample(t)

	res, err := Expand(events, DayConfig(civil.Date{Year: 2024, Month: time.March, Day: 13}))
	require.NoError(t, err)
	assert.Empty(t, res.Events)

	res, err = Expand(events, DayConfig(civil.Date{Year: 2024, Month: time.March, Day: 27}))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := schedule.Normalize(res.Events[0])
	assert.Equal(t, "gym", e.Title)
	assert.Equal(t, "07:00", e.SortKey)
	assert.Equal(t, 60, e.DurationMinutes)
}

func TestExpandIncludeAllDay(t *testing.T) {
	events := parseSample(t)
	cfg := DayConfig(civil.Date{Year: 2024, Month: time.March, Day: 20})
	cfg.IncludeAllDay = true
	res, err := Expand(events, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Events, 5)
}

func TestExpandCap(t *testing.T) {
	events := parseSample(t)
	cfg := ExpandConfig{
		RangeStart:             time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 2,
	}
	res, err := Expand(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"weekly-1"}, res.TruncatedEvents)
}

func TestExpandRejectsEmptyRange(t *testing.T) {
	now := time.Now()
	_, err := Expand(nil, ExpandConfig{RangeStart: now, RangeEnd: now})
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	defs := []model.RecurringDefinition{
		{
			ID: "club", Title: "club", Rule: recurrence.FirstOrThird(time.Friday),
			Section: section.E, Basis: civil.Date{Year: 2026, Month: time.January, Day: 2},
		},
		{
			ID: "rent", Title: "rent", Rule: recurrence.MonthEnd(),
			Section: section.A, Basis: civil.Date{Year: 2026, Month: time.January, Day: 31}, Work: true,
		},
		{ID: "broken", Title: "broken"},
	}
	out := ExportRecurring(defs, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, out, "RRULE:FREQ=MONTHLY")
	assert.NotContains(t, out, "broken")

	parsed, err := ParseICS(Source{ID: "export"}, []byte(out))
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	cfg := DayConfig(civil.Date{Year: 2026, Month: time.January, Day: 16})
	cfg.IncludeAllDay = true
	res, err := Expand(parsed, cfg)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "club", res.Events[0].Title)

	cfg = DayConfig(civil.Date{Year: 2026, Month: time.February, Day: 28})
	cfg.IncludeAllDay = true
	res, err = Expand(parsed, cfg)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "rent", res.Events[0].Title)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/token.ics?k=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("/tmp/cal.ics"))
}
