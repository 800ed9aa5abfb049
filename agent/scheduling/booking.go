package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

// maxAlternatives caps the open slots offered alongside a conflict, and
// maxCandidates caps the appointments read back for disambiguation. Spoken
// responses stay short; a caller cannot absorb a long list.
const (
	maxAlternatives = 3
	maxCandidates   = 3
)

// Engine owns the booking, cancellation and reschedule flows. Every mutation
// goes straight to the store; a slot lost to a concurrent caller comes back
// as a Conflict outcome with nearby alternatives rather than an error.
type Engine struct {
	store contract.Store
	avail *Availability
	clock func() time.Time
	newID func() string
}

type EngineOption func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator overrides how appointment IDs are minted.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(store contract.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		avail: NewAvailability(store),
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Availability() *Availability { return e.avail }

// CreateOutcome reports a booking attempt. Exactly one of Appointment and
// Conflict is meaningful: on conflict, Alternatives holds up to three open
// slots on the same day, possibly none.
type CreateOutcome struct {
	Appointment  *contract.Appointment
	Conflict     bool
	Alternatives []calendar.TimeOfDay
}

// Create books the slot for the user. Times outside business hours are
// rejected before touching the store; slot contention is detected by the
// store's constraint at commit.
func (e *Engine) Create(ctx context.Context, userID string, d calendar.Date, at calendar.TimeOfDay, notes string) (CreateOutcome, error) {
	if !calendar.WithinBusinessHours(at) {
		return CreateOutcome{}, fmt.Errorf("%w: %s", contract.ErrOutsideBusinessHours, at.Spoken())
	}

	now := e.clock()
	appt := contract.Appointment{
		ID:        e.newID(),
		UserID:    userID,
		Date:      d,
		Time:      at,
		Status:    contract.StatusScheduled,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.store.CreateAppointment(ctx, &appt)
	if errors.Is(err, contract.ErrSlotTaken) {
		alts, availErr := e.alternatives(ctx, d, now)
		if availErr != nil {
			log.Warn().Err(availErr).Str("date", d.String()).Msg("booking: alternatives lookup failed")
		}
		return CreateOutcome{Conflict: true, Alternatives: alts}, nil
	}
	if err != nil {
		return CreateOutcome{}, err
	}

	log.Info().
		Str("appointment_id", appt.ID).
		Str("slot", appt.Slot().Spoken()).
		Msg("booking: appointment created")
	return CreateOutcome{Appointment: &appt}, nil
}

// Filter narrows a user's upcoming appointments by date and/or time. A nil
// field matches anything.
type Filter struct {
	Date *calendar.Date
	Time *calendar.TimeOfDay
}

func (f Filter) matches(a contract.Appointment) bool {
	if f.Date != nil && !a.Date.Equal(*f.Date) {
		return false
	}
	if f.Time != nil && !a.Time.Equal(*f.Time) {
		return false
	}
	return true
}

// CancelOutcome reports a cancellation attempt. Cancelled is set on success;
// otherwise Candidates carries up to three matches needing disambiguation
// (empty when nothing matched), and Upcoming is the user's total upcoming
// count so the caller can distinguish "no match" from "nothing booked".
type CancelOutcome struct {
	Cancelled  *contract.Appointment
	Candidates []contract.Appointment
	Upcoming   int
}

// Cancel cancels the single upcoming appointment matching the filter. With
// zero or multiple matches nothing is cancelled and the outcome says why.
func (e *Engine) Cancel(ctx context.Context, userID string, f Filter) (CancelOutcome, error) {
	now := e.clock()
	target, out, err := e.selectTarget(ctx, userID, f, now)
	if err != nil || target == nil {
		return CancelOutcome{Candidates: out.Candidates, Upcoming: out.Upcoming}, err
	}

	if err := e.store.CancelAppointment(ctx, target.ID, now); err != nil {
		// Lost a race with another cancellation of the same row.
		if errors.Is(err, contract.ErrNotFound) {
			return CancelOutcome{Upcoming: out.Upcoming}, nil
		}
		return CancelOutcome{}, err
	}

	log.Info().
		Str("appointment_id", target.ID).
		Str("slot", target.Slot().Spoken()).
		Msg("booking: appointment cancelled")
	cancelled := *target
	cancelled.Status = contract.StatusCancelled
	cancelled.UpdatedAt = now
	return CancelOutcome{Cancelled: &cancelled, Upcoming: out.Upcoming}, nil
}

// RescheduleOutcome reports a reschedule attempt. On success Moved holds the
// appointment at its new slot and Previous the slot it left. Candidates
// mirrors CancelOutcome; Conflict and Alternatives mirror CreateOutcome.
type RescheduleOutcome struct {
	Moved        *contract.Appointment
	Previous     calendar.Slot
	Candidates   []contract.Appointment
	Upcoming     int
	Conflict     bool
	Alternatives []calendar.TimeOfDay
}

// Reschedule moves the single upcoming appointment matching from onto the
// new slot, in place. Identity and notes are preserved.
func (e *Engine) Reschedule(ctx context.Context, userID string, from Filter, d calendar.Date, at calendar.TimeOfDay) (RescheduleOutcome, error) {
	if !calendar.WithinBusinessHours(at) {
		return RescheduleOutcome{}, fmt.Errorf("%w: %s", contract.ErrOutsideBusinessHours, at.Spoken())
	}

	now := e.clock()
	target, sel, err := e.selectTarget(ctx, userID, from, now)
	if err != nil || target == nil {
		return RescheduleOutcome{Candidates: sel.Candidates, Upcoming: sel.Upcoming}, err
	}

	err = e.store.MoveAppointment(ctx, target.ID, d, at, now)
	if errors.Is(err, contract.ErrSlotTaken) {
		alts, availErr := e.alternatives(ctx, d, now)
		if availErr != nil {
			log.Warn().Err(availErr).Str("date", d.String()).Msg("booking: alternatives lookup failed")
		}
		return RescheduleOutcome{Upcoming: sel.Upcoming, Conflict: true, Alternatives: alts}, nil
	}
	if err != nil {
		return RescheduleOutcome{}, err
	}

	log.Info().
		Str("appointment_id", target.ID).
		Str("slot", calendar.Slot{Date: d, Time: at}.Spoken()).
		Msg("booking: appointment rescheduled")
	moved := *target
	moved.Date = d
	moved.Time = at
	moved.UpdatedAt = now
	return RescheduleOutcome{Moved: &moved, Previous: target.Slot(), Upcoming: sel.Upcoming}, nil
}

type selection struct {
	Candidates []contract.Appointment
	Upcoming   int
}

// selectTarget resolves the filter against the user's upcoming appointments.
// It returns a target only on an unambiguous single match.
func (e *Engine) selectTarget(ctx context.Context, userID string, f Filter, now time.Time) (*contract.Appointment, selection, error) {
	upcoming, err := e.store.Upcoming(ctx, userID, now)
	if err != nil {
		return nil, selection{}, err
	}

	var matches []contract.Appointment
	for _, a := range upcoming {
		if f.matches(a) {
			matches = append(matches, a)
		}
	}

	sel := selection{Upcoming: len(upcoming)}
	switch len(matches) {
	case 1:
		return &matches[0], sel, nil
	case 0:
		return nil, sel, nil
	default:
		if len(matches) > maxCandidates {
			matches = matches[:maxCandidates]
		}
		sel.Candidates = matches
		return nil, sel, nil
	}
}

func (e *Engine) alternatives(ctx context.Context, d calendar.Date, now time.Time) ([]calendar.TimeOfDay, error) {
	open, err := e.avail.SlotsOn(ctx, d, now)
	if err != nil {
		return nil, err
	}
	if len(open) > maxAlternatives {
		open = open[:maxAlternatives]
	}
	return open, nil
}
