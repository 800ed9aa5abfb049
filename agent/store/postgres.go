package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// Postgres implements contract.Store on top of bun. Slot uniqueness is
// enforced by a partial unique index over scheduled appointments, so a lost
// race between two bookings surfaces as ErrSlotTaken at insert time rather
// than a stale availability read.
type Postgres struct {
	db *bun.DB
}

func NewPostgres(db *bun.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the schema if it does not exist. Cancelled and completed
// rows are excluded from the uniqueness index so a freed slot can be rebooked.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*userRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*appointmentRow)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create appointments table: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*summaryRow)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create call_summaries table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_scheduled_slot
		ON appointments (appointment_date, appointment_time)
		WHERE status = 'scheduled'
	`); err != nil {
		return fmt.Errorf("create scheduled slot index: %w", err)
	}

	log.Debug().Msg("store: schema migrated")
	return nil
}

func (s *Postgres) UserByPhone(ctx context.Context, phoneNumber string) (*contract.User, error) {
	var row userRow
	err := s.db.NewSelect().
		Model(&row).
		Where("phone_number = ?", phoneNumber).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no user with phone %s", contract.ErrNotFound, phoneNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("select user by phone: %w", err)
	}
	u := userFromRow(row)
	return &u, nil
}

func (s *Postgres) CreateUser(ctx context.Context, u *contract.User) error {
	row := rowFromUser(*u)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("%w: phone %s", contract.ErrUserExists, u.PhoneNumber)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.NewDelete().
		Model((*userRow)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", contract.ErrNotFound, userID)
	}
	return nil
}

func (s *Postgres) CreateAppointment(ctx context.Context, a *contract.Appointment) error {
	row := rowFromAppointment(*a)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", contract.ErrSlotTaken, a.Slot().Spoken())
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *Postgres) ScheduledOn(ctx context.Context, d calendar.Date) ([]contract.Appointment, error) {
	var rows []appointmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("appointment_date = ?", d.String()).
		Where("status = ?", string(contract.StatusScheduled)).
		Order("appointment_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select appointments on %s: %w", d, err)
	}
	return appointmentsFromRows(rows)
}

func (s *Postgres) Upcoming(ctx context.Context, userID string, now time.Time) ([]contract.Appointment, error) {
	today := calendar.DateOf(now).String()
	clock := calendar.TimeOfDayOf(now).String()

	var rows []appointmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("status = ?", string(contract.StatusScheduled)).
		Where("(appointment_date > ?) OR (appointment_date = ? AND appointment_time > ?)", today, today, clock).
		Order("appointment_date ASC", "appointment_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select upcoming appointments: %w", err)
	}
	return appointmentsFromRows(rows)
}

func (s *Postgres) CancelAppointment(ctx context.Context, appointmentID string, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*appointmentRow)(nil)).
		Set("status = ?", string(contract.StatusCancelled)).
		Set("updated_at = ?", now).
		Where("id = ?", appointmentID).
		Where("status = ?", string(contract.StatusScheduled)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: scheduled appointment %s", contract.ErrNotFound, appointmentID)
	}
	return nil
}

func (s *Postgres) MoveAppointment(ctx context.Context, appointmentID string, d calendar.Date, t calendar.TimeOfDay, now time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*appointmentRow)(nil)).
		Set("appointment_date = ?", d.String()).
		Set("appointment_time = ?", t.String()).
		Set("updated_at = ?", now).
		Where("id = ?", appointmentID).
		Where("status = ?", string(contract.StatusScheduled)).
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", contract.ErrSlotTaken, calendar.Slot{Date: d, Time: t}.Spoken())
		}
		return fmt.Errorf("move appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: scheduled appointment %s", contract.ErrNotFound, appointmentID)
	}
	return nil
}

func (s *Postgres) SaveSummary(ctx context.Context, sum *contract.CallSummary) error {
	row := rowFromSummary(*sum)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert call summary: %w", err)
	}
	return nil
}

func appointmentsFromRows(rows []appointmentRow) ([]contract.Appointment, error) {
	out := make([]contract.Appointment, 0, len(rows))
	for _, r := range rows {
		a, err := appointmentFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
