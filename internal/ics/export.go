package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"taskcal/internal/model"
)

const productID = "-//taskcal//recurring tasks//JA"

// ExportRecurring renders recurring definitions as an iCalendar feed: one
// all-day VEVENT per definition, starting at its basis, with the rule as RRULE.
func ExportRecurring(defs []model.RecurringDefinition, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, d := range defs {
		if !d.Rule.Valid() || d.Basis.IsZero() {
			continue
		}
		ev := cal.AddEvent(d.ID + "@taskcal")
		ev.SetDtStampTime(stamp)
		ev.SetSummary(d.Title)
		ev.SetProperty(ical.ComponentPropertyDtStart, d.Basis.Midnight().Format(layoutDate),
			&ical.KeyValues{Key: "VALUE", Value: []string{"DATE"}})

		opt := d.Rule.ROption(d.Basis)
		opt.Dtstart = time.Time{}
		ev.AddProperty(ical.ComponentPropertyRrule, opt.RRuleString())

		categories := "section-" + d.Section.String()
		if d.Work {
			categories += ",work"
		}
		ev.SetProperty(ical.ComponentPropertyCategories, categories)
	}

	return cal.Serialize()
}
