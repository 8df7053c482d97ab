package app

import (
	"context"
	"errors"
	"fmt"

	"taskcal/internal/civil"
	"taskcal/internal/clock"
	"taskcal/internal/config"
	"taskcal/internal/ics"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/planner"
	"taskcal/internal/store"
)

// FeedFetcher is the part of ics.Fetcher the service needs.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Service wires calendar feeds, the planner and the definition store together.
// The scheduler and the HTTP API both drive it.
type Service struct {
	Clock    clock.Clock
	Rollover bool
	Planner  *planner.Planner
	Defs     store.Repository[model.RecurringDefinition]
	Fetcher  FeedFetcher
	Sources  []ics.Source
}

// Materialize generates recurring tasks for today or tomorrow.
func (s *Service) Materialize(ctx context.Context, forTomorrow bool) (planner.MaterializeResult, error) {
	return s.Planner.MaterializeRecurring(ctx, forTomorrow)
}

// SyncCalendars fetches every feed and imports the events of day as tasks.
// Individual feed failures are logged; the call fails only if nothing could
// be fetched while sources are configured.
func (s *Service) SyncCalendars(ctx context.Context, day civil.Date) ([]model.Task, error) {
	if len(s.Sources) == 0 {
		return nil, nil
	}

	results, fetchErrs := s.Fetcher.FetchAll(ctx, s.Sources)
	if len(results) == 0 && len(fetchErrs) > 0 {
		return nil, fmt.Errorf("all calendar feeds failed: %w", errors.Join(fetchErrs...))
	}

	parsed := make([]ics.ParsedEvent, 0)
	synced := make([]string, 0, len(results))
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("calendar sync: parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
		synced = append(synced, res.Source.ID)
	}

	expanded, err := ics.Expand(parsed, ics.DayConfig(day))
	if err != nil {
		return nil, fmt.Errorf("expand calendar events: %w", err)
	}

	tasks, err := s.Planner.ImportCalendar(ctx, day, synced, expanded.Events)
	if err != nil {
		return tasks, err
	}
	appLog.Info("calendar sync done",
		"day", day,
		"sources", len(results),
		"failed_sources", len(fetchErrs),
		"tasks", len(tasks),
	)
	return tasks, nil
}

// SyncToday syncs calendars for the current local day.
func (s *Service) SyncToday(ctx context.Context) ([]model.Task, error) {
	return s.SyncCalendars(ctx, clock.Today(s.Clock, s.Rollover))
}

// Definitions lists every recurring definition.
func (s *Service) Definitions(ctx context.Context) ([]model.RecurringDefinition, error) {
	return s.Defs.FindAll(ctx, nil)
}

// SourcesFromConfig builds feed sources, falling back to Name or URL as ID.
func SourcesFromConfig(entries []config.ICSConfig) []ics.Source {
	out := make([]ics.Source, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		id := e.ID
		if id == "" {
			id = e.Name
		}
		if id == "" {
			id = e.URL
		}
		out = append(out, ics.Source{ID: id, URL: e.URL})
	}
	return out
}
