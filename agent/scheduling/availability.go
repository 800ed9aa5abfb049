package scheduling

import (
	"context"
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// Availability answers "what is open" questions by subtracting scheduled
// appointments from the hourly grid. Results are advisory: booking relies on
// the store's uniqueness constraint, never on a prior availability read.
type Availability struct {
	store contract.Store
}

func NewAvailability(store contract.Store) *Availability {
	return &Availability{store: store}
}

// SlotsOn returns the open times on d in grid order. When d is today, slots
// at or before the current time are excluded. Single-date lookups accept any
// date; only the multi-day overview restricts itself to weekdays.
func (a *Availability) SlotsOn(ctx context.Context, d calendar.Date, now time.Time) ([]calendar.TimeOfDay, error) {
	booked, err := a.store.ScheduledOn(ctx, d)
	if err != nil {
		return nil, err
	}
	taken := make(map[calendar.TimeOfDay]struct{}, len(booked))
	for _, appt := range booked {
		taken[appt.Time] = struct{}{}
	}

	today := calendar.DateOf(now)
	clock := calendar.TimeOfDayOf(now)

	var open []calendar.TimeOfDay
	for _, slot := range calendar.Grid() {
		if _, ok := taken[slot]; ok {
			continue
		}
		if d.Equal(today) && !slot.After(clock) {
			continue
		}
		open = append(open, slot)
	}
	return open, nil
}

// DayAvailability pairs a weekday with its open slots.
type DayAvailability struct {
	Date  calendar.Date
	Slots []calendar.TimeOfDay
}

// NextOpenDays probes the coming week, starting tomorrow, and returns up to
// maxDays weekdays that still have open slots.
func (a *Availability) NextOpenDays(ctx context.Context, now time.Time, maxDays int) ([]DayAvailability, error) {
	today := calendar.DateOf(now)

	var days []DayAvailability
	for offset := 1; offset <= 7 && len(days) < maxDays; offset++ {
		d := today.AddDays(offset)
		if d.IsWeekend() {
			continue
		}
		slots, err := a.SlotsOn(ctx, d, now)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			days = append(days, DayAvailability{Date: d, Slots: slots})
		}
	}
	return days, nil
}
