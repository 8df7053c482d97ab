package model

import (
	"time"

	"taskcal/internal/civil"
	"taskcal/internal/recurrence"
	"taskcal/internal/section"
)

// RecurringDefinition is a recurring task template. Basis is the date of the
// next occurrence still to be materialized; the planner advances it.
type RecurringDefinition struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Rule    recurrence.Rule `json:"rule"`
	Section section.Section `json:"section"`
	Basis   civil.Date      `json:"basis"`

	// Work marks definitions belonging to a work project; they are not
	// materialized on weekends.
	Work bool `json:"work"`
}

// CalendarEvent is a single event as received from a calendar source, before
// timezone normalization. Start/End may be naive or zoned.
type CalendarEvent struct {
	SourceID string
	UID      string
	Title    string
	Start    civil.Instant
	End      civil.Instant
	AllDay   bool

	// Occurrence is the original start of a recurring-series occurrence
	// (its RECURRENCE-ID). It stays put when a single occurrence is moved
	// and is zero for non-recurring events.
	Occurrence time.Time
}

// ScheduleEntry is a CalendarEvent normalized into JST.
type ScheduleEntry struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`
	Title    string `json:"title"`

	// Start / End are in JST.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	DurationMinutes int             `json:"duration_minutes"`
	SortKey         string          `json:"sort_key"` // "HH:MM"
	Section         section.Section `json:"section"`

	Occurrence time.Time `json:"occurrence,omitzero"`
}

// Origin says where a task came from.
type Origin string

const (
	OriginRecurring Origin = "recurring"
	OriginCalendar  Origin = "calendar"
)

// Task is a board item for one date. It is what the caller hands to the page
// store.
type Task struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Date    civil.Date      `json:"date"`
	Section section.Section `json:"section"`
	SortKey string          `json:"sort_key,omitempty"`
	Origin  Origin          `json:"origin"`

	// DefinitionID is set for recurring tasks, SourceID for calendar tasks.
	DefinitionID string `json:"definition_id,omitempty"`
	SourceID     string `json:"source_id,omitempty"`
	// DurationMinutes is set for calendar tasks.
	DurationMinutes int `json:"duration_minutes,omitempty"`
	// SectionPinned is set when a user moved the task to another section;
	// calendar re-imports keep the pinned section.
	SectionPinned bool `json:"section_pinned,omitempty"`
}
