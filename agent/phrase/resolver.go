// Package phrase resolves loosely-formatted spoken date and time phrases
// ("tomorrow", "next Friday", "2pm") into calendar values. Rules are checked
// in a fixed priority order and the first match wins; a phrase no rule
// matches is reported as unresolved so the caller can ask for a rephrase
// instead of guessing.
package phrase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// Explicit date layouts, tried in order. Layouts without a year parse to year
// zero and adopt the reference year.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2",
	"Jan 2",
}

var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"15:04",
	"3 PM",
	"3PM",
}

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

var bareHourPattern = regexp.MustCompile(`^(\d{1,2})\s*(am|pm)?$`)

type dateRule func(phrase string, ref calendar.Date) (calendar.Date, bool)

var dateRules = []dateRule{
	resolveKeyword,
	resolveExplicitFormat,
	resolveWeekdayName,
}

// ResolveDate resolves phrase against the reference date. Returns
// contract.ErrUnresolvedDate when no rule matches.
func ResolveDate(phrase string, ref calendar.Date) (calendar.Date, error) {
	cleaned := strings.ToLower(strings.TrimSpace(phrase))
	if cleaned == "" {
		return calendar.Date{}, contract.ErrUnresolvedDate
	}

	for _, rule := range dateRules {
		if d, ok := rule(cleaned, ref); ok {
			return d, nil
		}
	}
	return calendar.Date{}, contract.ErrUnresolvedDate
}

func resolveKeyword(phrase string, ref calendar.Date) (calendar.Date, bool) {
	switch {
	case strings.Contains(phrase, "today"):
		return ref, true
	case strings.Contains(phrase, "tomorrow"):
		return ref.AddDays(1), true
	}
	return calendar.Date{}, false
}

func resolveExplicitFormat(phrase string, ref calendar.Date) (calendar.Date, bool) {
	// time.Parse layouts are case-sensitive for month names.
	titled := titleWords(phrase)
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, titled)
		if err != nil {
			continue
		}
		d := calendar.DateOf(parsed)
		if d.Year == 0 {
			d.Year = ref.Year
		}
		return d, true
	}
	return calendar.Date{}, false
}

// resolveWeekdayName resolves to the next occurrence strictly after the
// reference date: when the reference date already falls on the named weekday,
// the result is seven days out, never the reference date itself.
func resolveWeekdayName(phrase string, ref calendar.Date) (calendar.Date, bool) {
	for _, entry := range weekdayNames {
		if !strings.Contains(phrase, entry.name) {
			continue
		}
		ahead := int(entry.day) - int(ref.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		return ref.AddDays(ahead), true
	}
	return calendar.Date{}, false
}

// ResolveTime resolves a spoken time phrase. A bare hour from 1 to 8 with no
// meridiem is read as PM ("I need 2" means 2 PM, not 2 AM); this is a
// deliberate bias for casual caller speech and the one place an explicit AM
// request typed without "am" can be misread. Business hours are not enforced
// here. Returns contract.ErrUnresolvedTime when nothing matches.
func ResolveTime(phrase string) (calendar.TimeOfDay, error) {
	cleaned := strings.TrimSpace(phrase)
	if cleaned == "" {
		return calendar.TimeOfDay{}, contract.ErrUnresolvedTime
	}

	upper := strings.ToUpper(cleaned)
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, upper)
		if err != nil {
			continue
		}
		return calendar.TimeOfDayOf(parsed), nil
	}

	match := bareHourPattern.FindStringSubmatch(strings.ToLower(cleaned))
	if match == nil {
		return calendar.TimeOfDay{}, contract.ErrUnresolvedTime
	}

	hour, err := strconv.Atoi(match[1])
	if err != nil {
		return calendar.TimeOfDay{}, contract.ErrUnresolvedTime
	}
	switch match[2] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	default:
		if hour < calendar.OpenHour {
			hour += 12
		}
	}
	if hour < 0 || hour > 23 {
		return calendar.TimeOfDay{}, contract.ErrUnresolvedTime
	}
	return calendar.TimeOfDay{Hour: hour}, nil
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
