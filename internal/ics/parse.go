package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"taskcal/internal/civil"
	appLog "taskcal/internal/log"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutFloating = "20060102T150405"
	layoutDate     = "20060102"
)

// ParsedEvent is a VEVENT as read from a feed. Recurrence expansion operates
// on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary  string
	Location string

	// Start/End keep the distinction between floating (naive) values and
	// values carrying Z or TZID (zoned).
	Start  civil.Instant
	End    civil.Instant
	AllDay bool

	RawRRule   string
	ExDates    []civil.Instant
	Recurrence *civil.Instant // RECURRENCE-ID, if present
	IsOverride bool
}

// ParseICS parses a single ICS payload into a list of ParsedEvent. Broken
// VEVENTs are logged and skipped.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseInstant(dtStart.Value, dtStart.ICalParameters)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	// Without DTEND the event is treated as a point in time (or one day).
	out.End = start
	if allDay {
		out.End = civil.Instant{Time: start.Time.AddDate(0, 0, 1), Zoned: start.Zoned}
	}
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := parseInstant(dtEnd.Value, dtEnd.ICalParameters)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times and hold comma separated values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if ex, _, err := parseInstant(part, p.ICalParameters); err == nil {
				out.ExDates = append(out.ExDates, ex)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); ridProp != nil {
		if rid, _, err := parseInstant(ridProp.Value, ridProp.ICalParameters); err == nil {
			out.Recurrence = &rid
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseInstant reads an ICS DATE or DATE-TIME value.
//
//   - "...Z"                -> zoned, UTC
//   - TZID=<zone> parameter -> zoned in that zone (naive if the zone is unknown)
//   - floating date-time    -> naive
//   - date only             -> naive midnight, allDay=true
func parseInstant(v string, params map[string][]string) (civil.Instant, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return civil.Instant{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(v, "T")
	if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.Parse(layoutDate, v)
		if err != nil {
			return civil.Instant{}, false, err
		}
		return civil.Naive(t), true, nil
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(layoutUTC, v)
		if err != nil {
			return civil.Instant{}, false, err
		}
		return civil.Zoned(t), false, nil
	}

	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 && tzs[0] != "" {
		loc, err := time.LoadLocation(tzs[0])
		if err == nil {
			t, perr := time.ParseInLocation(layoutFloating, v, loc)
			if perr != nil {
				return civil.Instant{}, false, perr
			}
			return civil.Zoned(t), false, nil
		}
		appLog.Warn("ics: unknown TZID, treating value as floating", "tzid", tzs[0])
	}

	t, err := time.Parse(layoutFloating, v)
	if err != nil {
		return civil.Instant{}, false, err
	}
	return civil.Naive(t), false, nil
}
