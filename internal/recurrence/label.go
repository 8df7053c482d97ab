package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRuleLabel is returned when a label matches none of the known rules.
// It is a data/configuration error; retrying will not help.
var ErrUnknownRuleLabel = errors.New("unknown recurrence rule label")

type labeled struct {
	label string
	rule  Rule
}

var labels = []labeled{
	{"毎日", Daily()},
	{"毎週日曜", WeeklyOn(time.Sunday)},
	{"毎週月曜", WeeklyOn(time.Monday)},
	{"毎週火曜", WeeklyOn(time.Tuesday)},
	{"毎週水曜", WeeklyOn(time.Wednesday)},
	{"毎週木曜", WeeklyOn(time.Thursday)},
	{"毎週金曜", WeeklyOn(time.Friday)},
	{"毎週土曜", WeeklyOn(time.Saturday)},
	{"毎週火・金", TueFri()},
	{"3日後", AfterDays(3)},
	{"1週間後", AfterDays(7)},
	{"20日後", AfterDays(20)},
	{"来週", NextWeek()},
	{"毎月1日", MonthlyOnDay(1)},
	{"毎月2日", MonthlyOnDay(2)},
	{"毎月25日", MonthlyOnDay(25)},
	{"月末", MonthEnd()},
	{"第1・3金", FirstOrThird(time.Friday)},
	{"第1・3木", FirstOrThird(time.Thursday)},
}

var (
	ruleByLabel = make(map[string]Rule, len(labels))
	labelByRule = make(map[Rule]string, len(labels))
)

func init() {
	for _, l := range labels {
		ruleByLabel[l.label] = l.rule
		labelByRule[l.rule] = l.label
	}
}

// FromLabel resolves one of the fixed human-readable labels.
func FromLabel(text string) (Rule, error) {
	if r, ok := ruleByLabel[strings.TrimSpace(text)]; ok {
		return r, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRuleLabel, text)
}

// Label returns the display label of r, or r.String() for rules built with
// parameters that have no label (e.g. AfterDays(5)).
func (r Rule) Label() string {
	if l, ok := labelByRule[r]; ok {
		return l
	}
	return r.String()
}

// Labels lists every recognised label in a stable order.
func Labels() []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.label)
	}
	return out
}
