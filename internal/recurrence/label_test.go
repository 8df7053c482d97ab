package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFromLabelKnown(t *testing.T) {
	r, err := FromLabel("毎日")
	require.NoError(t, err)
	assert.Equal(t, Daily(), r)

	r, err = FromLabel("第1・3金")
	require.NoError(t, err)
	assert.Equal(t, FirstOrThird(time.Friday), r)

	r, err = FromLabel(" 毎月25日 ")
	require.NoError(t, err)
	assert.Equal(t, MonthlyOnDay(25), r)
}

func TestFromLabelUnknown(t *testing.T) {
	for _, in := range []string{"", "every day", "毎月3日", "第2・4金"} {
		_, err := FromLabel(in)
		assert.True(t, errors.Is(err, ErrUnknownRuleLabel), "label %q", in)
	}
}

func TestLabelsRoundTrip(t *testing.T) {
	seen := map[Rule]bool{}
	for _, l := range Labels() {
		r, err := FromLabel(l)
		require.NoError(t, err)
		assert.Equal(t, l, r.Label())
		assert.False(t, seen[r], "duplicate rule for %q", l)
		seen[r] = true
	}
	assert.Len(t, seen, 19)
}

func TestRuleYAML(t *testing.T) {
	type doc struct {
		Rule Rule `yaml:"rule"`
	}
	var d doc
	require.NoError(t, yaml.Unmarshal([]byte("rule: 第1・3木\n"), &d))
	assert.Equal(t, FirstOrThird(time.Thursday), d.Rule)

	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	var back doc
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, d.Rule, back.Rule)

	err = yaml.Unmarshal([]byte("rule: someday\n"), &d)
	assert.Error(t, err)
}

func TestLabelFallsBackToString(t *testing.T) {
	assert.Equal(t, "after_days(5)", AfterDays(5).Label())
}

func TestUnlabeledRuleTextRoundTrip(t *testing.T) {
	for _, r := range []Rule{AfterDays(5), MonthlyOnDay(12), WeeklyOn(time.Monday), FirstOrThird(time.Tuesday)} {
		text, err := r.MarshalText()
		require.NoError(t, err)

		var back Rule
		require.NoError(t, back.UnmarshalText(text), "text %q", text)
		assert.Equal(t, r, back)
	}

	// Labeled rules still marshal as their label.
	text, err := MonthlyOnDay(2).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "毎月2日", string(text))
}

func TestUnmarshalTextRejectsBadCanonicalForms(t *testing.T) {
	for _, in := range []string{"after_days(0)", "after_days(x)", "monthly_on_day(31)", "weekly(Funday)", "daily(1)", "after_days(5", "weekly"} {
		var r Rule
		err := r.UnmarshalText([]byte(in))
		assert.True(t, errors.Is(err, ErrUnknownRuleLabel), "text %q", in)
	}
}
