package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"taskcal/internal/civil"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd)
	// an occurrence's start must fall in.
	RangeStart time.Time
	RangeEnd   time.Time

	// IncludeAllDay keeps all-day events. The planner has no slot for them.
	IncludeAllDay bool

	// MaxOccurrencesPerEvent caps a single RRULE expansion. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps expanded events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.CalendarEvent
	TruncatedEvents []string
}

// DayConfig returns an ExpandConfig covering one JST calendar day.
func DayConfig(day civil.Date) ExpandConfig {
	return ExpandConfig{
		RangeStart: day.Midnight(),
		RangeEnd:   day.AddDays(1).Midnight(),
	}
}

// Expand turns parsed VEVENTs into concrete calendar events within the range,
// handling single events, RRULE series, EXDATE and RECURRENCE-ID overrides.
// Each occurrence keeps the naive/zoned kind of its base event so the
// normalizer applies the same timezone convention to all of them.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeStart.Before(cfg.RangeEnd) {
		return result, errors.New("expand: RangeEnd is not after RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	order := make([]string, 0)

	for _, ev := range events {
		if !cfg.IncludeAllDay && ev.AllDay {
			continue
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Events = append(result.Events, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if o, ok := findOverrideForStart(overrides, ev.Start.Absolute()); ok {
		ev = o
	}
	if !inRange(ev.Start.Absolute(), cfg) {
		return nil
	}
	return []model.CalendarEvent{toCalendarEvent(ev, ev.Start, ev.End)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}

	// Expand on the absolute timeline in the event's own zone (UTC for naive
	// events) so DST rules of a TZID still apply.
	base := ev.Start.Absolute()
	if ev.Start.Zoned {
		base = ev.Start.Time
	}
	loc := base.Location()
	r.DTStart(base)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.Absolute().In(loc))
	}

	occTimes := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Absolute().Sub(ev.Start.Absolute())
	for _, occStart := range occTimes {
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			if inRange(o.Start.Absolute(), cfg) {
				moved := toCalendarEvent(o, o.Start, o.End)
				moved.Occurrence = occStart
				out = append(out, moved)
			}
			continue
		}
		if !inRange(occStart, cfg) {
			continue
		}
		start := civil.Instant{Time: occStart, Zoned: ev.Start.Zoned}
		end := civil.Instant{Time: occStart.Add(dur), Zoned: ev.Start.Zoned}
		occ := toCalendarEvent(ev, start, end)
		occ.Occurrence = occStart
		out = append(out, occ)
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the same
// instant as start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Absolute().Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toCalendarEvent(ev ParsedEvent, start, end civil.Instant) model.CalendarEvent {
	return model.CalendarEvent{
		SourceID: ev.Source.ID,
		UID:      ev.UID,
		Title:    ev.Summary,
		Start:    start,
		End:      end,
		AllDay:   ev.AllDay,
	}
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && t.Before(cfg.RangeEnd)
}
