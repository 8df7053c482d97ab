package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"taskcal/internal/civil"
	"taskcal/internal/clock"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/recurrence"
	"taskcal/internal/schedule"
	"taskcal/internal/section"
	"taskcal/internal/store"
)

// Planner turns recurring definitions and calendar events into board tasks.
// It owns no state of its own; everything lives in the two repositories.
type Planner struct {
	clock    clock.Clock
	defs     store.Repository[model.RecurringDefinition]
	tasks    store.Repository[model.Task]
	rollover bool
}

// New constructs a Planner. With rollover, 00:00-01:59 still counts as the
// previous day when deciding what "today" is.
func New(c clock.Clock, defs store.Repository[model.RecurringDefinition], tasks store.Repository[model.Task], rollover bool) *Planner {
	return &Planner{
		clock:    c,
		defs:     defs,
		tasks:    tasks,
		rollover: rollover,
	}
}

// MaterializeResult summarizes one MaterializeRecurring run.
type MaterializeResult struct {
	Target civil.Date
	// Created are the tasks written for Target.
	Created []model.Task
	// Skipped lists work definitions held back because Target is a weekend.
	Skipped []string
}

// MaterializeRecurring creates tasks for every definition due on or before the
// target date and advances each materialized definition past the target.
// Work definitions are neither materialized nor advanced on weekends, so they
// come due again on the next weekday run.
func (p *Planner) MaterializeRecurring(ctx context.Context, forTomorrow bool) (MaterializeResult, error) {
	target := TargetDate(p.clock, p.rollover, forTomorrow)
	res := MaterializeResult{Target: target}

	due, err := p.defs.FindAll(ctx, func(d model.RecurringDefinition) bool {
		return !d.Basis.After(target)
	})
	if err != nil {
		return res, fmt.Errorf("list recurring definitions: %w", err)
	}

	applicable := Applicable(due, target)
	if skipped := len(due) - len(applicable); skipped > 0 {
		for _, d := range due {
			if d.Work {
				res.Skipped = append(res.Skipped, d.ID)
			}
		}
		appLog.Info("weekend: holding back work definitions", "target", target, "count", skipped)
	}

	for _, def := range applicable {
		task := recurringTask(def, target)
		if err := p.tasks.Save(ctx, task); err != nil {
			return res, fmt.Errorf("save task %s: %w", task.ID, err)
		}

		prev := def.Basis
		def.Basis = advance(def.Rule, target)
		if err := p.defs.Save(ctx, def); err != nil {
			return res, fmt.Errorf("save definition %s: %w", def.ID, err)
		}

		appLog.Debug("materialized recurring task",
			"definition", def.ID,
			"rule", def.Rule.Label(),
			"target", target,
			"prev_basis", prev,
			"next_basis", def.Basis,
		)
		res.Created = append(res.Created, task)
	}

	appLog.Info("recurring materialization done",
		"target", target,
		"created", len(res.Created),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// advance returns the first occurrence of r strictly after target.
// MonthEnd is the only rule whose Next may return its basis.
func advance(r recurrence.Rule, target civil.Date) civil.Date {
	next := recurrence.Next(r, target)
	for !next.After(target) {
		next = recurrence.Next(r, next.AddDays(1))
	}
	return next
}

func recurringTask(def model.RecurringDefinition, target civil.Date) model.Task {
	return model.Task{
		ID:           def.ID + "@" + target.String(),
		Title:        def.Title,
		Date:         target,
		Section:      def.Section,
		Origin:       model.OriginRecurring,
		DefinitionID: def.ID,
	}
}

// ImportCalendar normalizes the events of day into tasks dated by their JST
// start. All-day events have no time slot and are skipped.
//
// Tasks are keyed by source, UID and occurrence, so a moved event updates its
// existing task and keeps a pinned section. Calendar tasks of day that belong
// to one of sources but were not produced by this import are deleted; sources
// lists only the feeds that were read successfully.
func (p *Planner) ImportCalendar(ctx context.Context, day civil.Date, sources []string, events []model.CalendarEvent) ([]model.Task, error) {
	out := make([]model.Task, 0, len(events))
	produced := make(map[string]bool, len(events))
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		task := calendarTask(schedule.Normalize(ev))

		existing, err := p.tasks.Find(ctx, task.ID)
		switch {
		case err == nil:
			if existing.SectionPinned {
				task.Section = existing.Section
				task.SectionPinned = true
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return out, fmt.Errorf("find task %s: %w", task.ID, err)
		}

		if err := p.tasks.Save(ctx, task); err != nil {
			return out, fmt.Errorf("save task %s: %w", task.ID, err)
		}
		produced[task.ID] = true
		out = append(out, task)
	}

	removed, err := p.removeStale(ctx, day, sources, produced)
	if err != nil {
		return out, err
	}
	appLog.Info("calendar import done",
		"day", day,
		"events", len(events),
		"tasks", len(out),
		"removed", removed,
	)
	return out, nil
}

// removeStale deletes calendar tasks of day from sources that are not in keep.
func (p *Planner) removeStale(ctx context.Context, day civil.Date, sources []string, keep map[string]bool) (int, error) {
	synced := make(map[string]bool, len(sources))
	for _, id := range sources {
		synced[id] = true
	}
	stale, err := p.tasks.FindAll(ctx, func(t model.Task) bool {
		return t.Origin == model.OriginCalendar && t.Date == day && synced[t.SourceID] && !keep[t.ID]
	})
	if err != nil {
		return 0, fmt.Errorf("list calendar tasks for %s: %w", day, err)
	}
	for _, t := range stale {
		if err := p.tasks.Delete(ctx, t.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("delete task %s: %w", t.ID, err)
		}
		appLog.Debug("removed stale calendar task", "task", t.ID, "title", t.Title)
	}
	return len(stale), nil
}

func calendarTask(e model.ScheduleEntry) model.Task {
	return model.Task{
		ID:              calendarTaskID(e),
		Title:           e.Title,
		Date:            civil.DateOf(e.Start),
		Section:         e.Section,
		SortKey:         e.SortKey,
		Origin:          model.OriginCalendar,
		SourceID:        e.SourceID,
		DurationMinutes: e.DurationMinutes,
	}
}

// calendarTaskID is stable across reschedules: occurrences of a series are
// told apart by their original start, never by the current one.
func calendarTaskID(e model.ScheduleEntry) string {
	id := "cal:" + e.SourceID + ":" + e.UID
	if !e.Occurrence.IsZero() {
		id += "@" + e.Occurrence.UTC().Format(time.RFC3339)
	}
	return id
}

// Board returns the tasks of date ordered by section, then sort key, then title.
// Tasks without a sort key come first within their section.
func (p *Planner) Board(ctx context.Context, date civil.Date) ([]model.Task, error) {
	tasks, err := p.tasks.FindAll(ctx, func(t model.Task) bool {
		return t.Date == date
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", date, err)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Section.Order() != b.Section.Order() {
			return a.Section.Order() < b.Section.Order()
		}
		if a.SortKey != b.SortKey {
			return a.SortKey < b.SortKey
		}
		return a.Title < b.Title
	})
	return tasks, nil
}

// OverrideSection moves a task to another section and pins it there.
func (p *Planner) OverrideSection(ctx context.Context, taskID string, s section.Section) (model.Task, error) {
	if _, _, ok := s.Range(); !ok {
		return model.Task{}, fmt.Errorf("%w: %q", section.ErrUnknownSection, s)
	}
	task, err := p.tasks.Find(ctx, taskID)
	if err != nil {
		return model.Task{}, fmt.Errorf("find task %s: %w", taskID, err)
	}
	task.Section = s
	task.SectionPinned = true
	if err := p.tasks.Save(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("save task %s: %w", taskID, err)
	}
	appLog.Info("section overridden", "task", taskID, "section", s)
	return task, nil
}

// NewDefinitionStore and NewTaskStore build in-memory repositories keyed by ID.
func NewDefinitionStore() *store.Memory[model.RecurringDefinition] {
	return store.NewMemory(func(d model.RecurringDefinition) string { return d.ID })
}

func NewTaskStore() *store.Memory[model.Task] {
	return store.NewMemory(func(t model.Task) string { return t.ID })
}
