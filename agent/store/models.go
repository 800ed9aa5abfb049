package store

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// Dates and times-of-day are persisted as their canonical string forms
// ("2006-01-02", "15:04") so lexicographic ordering matches chronological
// ordering and the slot uniqueness constraint stays a plain column pair.
type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	PhoneNumber string    `bun:"phone_number,notnull,unique"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	AppointmentDate string    `bun:"appointment_date,notnull"`
	AppointmentTime string    `bun:"appointment_time,notnull"`
	Status          string    `bun:"status,notnull"`
	Notes           string    `bun:"notes"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

type summaryRow struct {
	bun.BaseModel `bun:"table:call_summaries"`

	ID                 string                       `bun:"id,pk"`
	// nullzero: calls that end before identification have no user row to
	// reference, so an empty ID must insert NULL rather than ''.
	UserID             string                       `bun:"user_id,nullzero"`
	SessionID          string                       `bun:"session_id,notnull"`
	Summary            string                       `bun:"summary,notnull"`
	AppointmentsBooked []contract.BookedAppointment `bun:"appointments_booked,type:jsonb"`
	UserPreferences    map[string][]string          `bun:"user_preferences,type:jsonb"`
	DurationSeconds    int                          `bun:"duration_seconds,notnull"`
	CreatedAt          time.Time                    `bun:"created_at,notnull"`
}

func userFromRow(r userRow) contract.User {
	return contract.User{
		ID:          r.ID,
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func rowFromUser(u contract.User) userRow {
	return userRow{
		ID:          u.ID,
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func appointmentFromRow(r appointmentRow) (contract.Appointment, error) {
	d, err := calendar.ParseDate(r.AppointmentDate)
	if err != nil {
		return contract.Appointment{}, err
	}
	t, err := calendar.ParseTimeOfDay(r.AppointmentTime)
	if err != nil {
		return contract.Appointment{}, err
	}
	return contract.Appointment{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      d,
		Time:      t,
		Status:    contract.AppointmentStatus(r.Status),
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func rowFromAppointment(a contract.Appointment) appointmentRow {
	return appointmentRow{
		ID:              a.ID,
		UserID:          a.UserID,
		AppointmentDate: a.Date.String(),
		AppointmentTime: a.Time.String(),
		Status:          string(a.Status),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func rowFromSummary(s contract.CallSummary) summaryRow {
	return summaryRow{
		ID:                 s.ID,
		UserID:             s.UserID,
		SessionID:          s.SessionID,
		Summary:            s.Summary,
		AppointmentsBooked: s.AppointmentsBooked,
		UserPreferences:    s.UserPreferences,
		DurationSeconds:    s.DurationSeconds,
		CreatedAt:          s.CreatedAt,
	}
}
