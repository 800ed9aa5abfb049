package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// Memory implements contract.Store in process memory. It enforces the same
// commit-time slot uniqueness as the Postgres store, which makes it the
// backing store for tests and for running the agent without a database.
type Memory struct {
	mu        sync.Mutex
	users     map[string]contract.User
	byPhone   map[string]string
	appts     map[string]contract.Appointment
	summaries []contract.CallSummary
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]contract.User),
		byPhone: make(map[string]string),
		appts:   make(map[string]contract.Appointment),
	}
}

func (m *Memory) UserByPhone(ctx context.Context, phoneNumber string) (*contract.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byPhone[phoneNumber]
	if !ok {
		return nil, fmt.Errorf("%w: no user with phone %s", contract.ErrNotFound, phoneNumber)
	}
	u := m.users[id]
	return &u, nil
}

func (m *Memory) CreateUser(ctx context.Context, u *contract.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byPhone[u.PhoneNumber]; ok {
		return fmt.Errorf("%w: phone %s", contract.ErrUserExists, u.PhoneNumber)
	}
	m.users[u.ID] = *u
	m.byPhone[u.PhoneNumber] = u.ID
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", contract.ErrNotFound, userID)
	}
	delete(m.users, userID)
	delete(m.byPhone, u.PhoneNumber)
	for id, a := range m.appts {
		if a.UserID == userID {
			delete(m.appts, id)
		}
	}
	kept := m.summaries[:0]
	for _, s := range m.summaries {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	m.summaries = kept
	return nil
}

func (m *Memory) CreateAppointment(ctx context.Context, a *contract.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status == contract.StatusScheduled && m.slotTakenLocked(a.Date, a.Time, "") {
		return fmt.Errorf("%w: %s", contract.ErrSlotTaken, a.Slot().Spoken())
	}
	m.appts[a.ID] = *a
	return nil
}

func (m *Memory) ScheduledOn(ctx context.Context, d calendar.Date) ([]contract.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []contract.Appointment
	for _, a := range m.appts {
		if a.Status == contract.StatusScheduled && a.Date.Equal(d) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *Memory) Upcoming(ctx context.Context, userID string, now time.Time) ([]contract.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := calendar.DateOf(now)
	clock := calendar.TimeOfDayOf(now)

	var out []contract.Appointment
	for _, a := range m.appts {
		if a.UserID != userID || a.Status != contract.StatusScheduled {
			continue
		}
		if a.Date.After(today) || (a.Date.Equal(today) && a.Time.After(clock)) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *Memory) CancelAppointment(ctx context.Context, appointmentID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[appointmentID]
	if !ok || a.Status != contract.StatusScheduled {
		return fmt.Errorf("%w: scheduled appointment %s", contract.ErrNotFound, appointmentID)
	}
	a.Status = contract.StatusCancelled
	a.UpdatedAt = now
	m.appts[appointmentID] = a
	return nil
}

func (m *Memory) MoveAppointment(ctx context.Context, appointmentID string, d calendar.Date, t calendar.TimeOfDay, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[appointmentID]
	if !ok || a.Status != contract.StatusScheduled {
		return fmt.Errorf("%w: scheduled appointment %s", contract.ErrNotFound, appointmentID)
	}
	if m.slotTakenLocked(d, t, appointmentID) {
		return fmt.Errorf("%w: %s", contract.ErrSlotTaken, calendar.Slot{Date: d, Time: t}.Spoken())
	}
	a.Date = d
	a.Time = t
	a.UpdatedAt = now
	m.appts[appointmentID] = a
	return nil
}

func (m *Memory) SaveSummary(ctx context.Context, s *contract.CallSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.summaries = append(m.summaries, *s)
	return nil
}

// Summaries returns saved summaries in insertion order.
func (m *Memory) Summaries() []contract.CallSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]contract.CallSummary(nil), m.summaries...)
}

func (m *Memory) slotTakenLocked(d calendar.Date, t calendar.TimeOfDay, excludeID string) bool {
	for id, a := range m.appts {
		if id == excludeID {
			continue
		}
		if a.Status == contract.StatusScheduled && a.Date.Equal(d) && a.Time.Equal(t) {
			return true
		}
	}
	return false
}

func sortAppointments(appts []contract.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].Time.Before(appts[j].Time)
	})
}
