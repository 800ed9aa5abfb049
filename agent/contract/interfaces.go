package contract

import (
	"context"
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
)

// Store is the transactional persistence contract shared by the engines and
// the orchestrator. Implementations must enforce the scheduled-slot
// uniqueness constraint at commit time and return ErrSlotTaken on violation;
// callers never rely on a check-then-act availability probe.
type Store interface {
	UserByPhone(ctx context.Context, phoneNumber string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	// DeleteUser removes the user and cascades to appointments and summaries.
	DeleteUser(ctx context.Context, userID string) error

	CreateAppointment(ctx context.Context, a *Appointment) error
	// ScheduledOn returns scheduled appointments on d, ordered by time.
	ScheduledOn(ctx context.Context, d calendar.Date) ([]Appointment, error)
	// Upcoming returns the user's scheduled appointments strictly in the
	// future relative to now (later date, or today with a later time),
	// ordered by date then time. Every caller-facing view goes through this
	// predicate.
	Upcoming(ctx context.Context, userID string, now time.Time) ([]Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID string, now time.Time) error
	// MoveAppointment updates date/time in place, preserving identity.
	// Moving onto an occupied slot returns ErrSlotTaken; moving onto the
	// appointment's own slot does not conflict.
	MoveAppointment(ctx context.Context, appointmentID string, d calendar.Date, t calendar.TimeOfDay, now time.Time) error

	SaveSummary(ctx context.Context, s *CallSummary) error
}
