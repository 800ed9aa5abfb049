// Package calendar defines the bookable-slot grid and the canonical date and
// time-of-day values the scheduling engines operate on.
package calendar

import (
	"fmt"
	"time"
)

// Business hours: slots start hourly from OpenHour, the last bookable start
// is one hour before CloseHour.
const (
	OpenHour  = 9
	CloseHour = 17
)

// Date is a civil date with no time-of-day or timezone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its civil date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses the ISO form produced by Date.String.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// ParseTimeOfDay parses the 24-hour form produced by TimeOfDay.String.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDayOf(t), nil
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Equal(o Date) bool {
	return d == o
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// String returns the ISO form, e.g. "2026-01-05".
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Spoken returns a voice-friendly form, e.g. "Monday, January 5".
func (d Date) Spoken() string {
	return d.Time().Format("Monday, January 2")
}

// SpokenRelative prefers "today"/"tomorrow" over the full form when the date
// is that close to today.
func (d Date) SpokenRelative(today Date) string {
	switch {
	case d.Equal(today):
		return "today"
	case d.Equal(today.AddDays(1)):
		return "tomorrow"
	default:
		return "on " + d.Spoken()
	}
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// TimeOfDayOf extracts the wall-clock time from t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Equal(o TimeOfDay) bool {
	return t == o
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.minutes() < o.minutes()
}

func (t TimeOfDay) After(o TimeOfDay) bool {
	return t.minutes() > o.minutes()
}

// String returns the 24-hour form, e.g. "14:00".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Spoken returns the 12-hour form without a leading zero, e.g. "2:00 PM".
func (t TimeOfDay) Spoken() string {
	return time.Date(0, time.January, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

// Slot is a bookable (date, time-of-day) pair on the business-hour grid.
type Slot struct {
	Date Date
	Time TimeOfDay
}

func (s Slot) Spoken() string {
	return s.Date.Spoken() + " at " + s.Time.Spoken()
}

// Grid returns the hourly slot starts within business hours, in order.
func Grid() []TimeOfDay {
	grid := make([]TimeOfDay, 0, CloseHour-OpenHour)
	for hour := OpenHour; hour < CloseHour; hour++ {
		grid = append(grid, TimeOfDay{Hour: hour})
	}
	return grid
}

// WithinBusinessHours reports whether t is a valid appointment start.
func WithinBusinessHours(t TimeOfDay) bool {
	return t.Hour >= OpenHour && t.Hour < CloseHour
}
