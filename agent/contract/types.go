package contract

import (
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// User is the identity root, anchored by a unique 10-digit phone number.
// Deleting a user cascades to their appointments and call summaries.
type User struct {
	ID          string
	PhoneNumber string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment occupies one slot on the single-practitioner calendar. At most
// one scheduled appointment may exist per (date, time) system-wide.
// Appointments are never hard-deleted; cancellation is a status change.
type Appointment struct {
	ID        string
	UserID    string
	Date      calendar.Date
	Time      calendar.TimeOfDay
	Status    AppointmentStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Appointment) Slot() calendar.Slot {
	return calendar.Slot{Date: a.Date, Time: a.Time}
}

// BookedAppointment is the session-log projection of an appointment booked
// during a call. Advisory only; the store stays the source of truth.
type BookedAppointment struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Notes string `json:"notes,omitempty"`
}

// CallSummary is the post-call artifact. UserID is empty when the call ended
// before identification.
type CallSummary struct {
	ID                 string
	UserID             string
	SessionID          string
	Summary            string
	AppointmentsBooked []BookedAppointment
	UserPreferences    map[string][]string
	DurationSeconds    int
	CreatedAt          time.Time
}
