package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
)

func newAppt(id, userID string, d calendar.Date, t calendar.TimeOfDay) *contract.Appointment {
	return &contract.Appointment{
		ID:     id,
		UserID: userID,
		Date:   d,
		Time:   t,
		Status: contract.StatusScheduled,
	}
}

func TestMemoryUserLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if _, err := m.UserByPhone(ctx, "5551234567"); !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("UserByPhone on empty store: got %v, want ErrNotFound", err)
	}

	u := &contract.User{ID: "u1", Name: "Sarah", PhoneNumber: "5551234567"}
	if err := m.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.CreateUser(ctx, &contract.User{ID: "u2", Name: "Other", PhoneNumber: "5551234567"}); !errors.Is(err, contract.ErrUserExists) {
		t.Fatalf("duplicate phone: got %v, want ErrUserExists", err)
	}

	got, err := m.UserByPhone(ctx, "5551234567")
	if err != nil {
		t.Fatalf("UserByPhone: %v", err)
	}
	if got.ID != "u1" || got.Name != "Sarah" {
		t.Fatalf("UserByPhone returned %+v", got)
	}
}

func TestMemoryDeleteUserCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	if err := m.CreateUser(ctx, &contract.User{ID: "u1", PhoneNumber: "5551234567"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	d := calendar.Date{Year: 2026, Month: time.March, Day: 11}
	if err := m.CreateAppointment(ctx, newAppt("a1", "u1", d, calendar.TimeOfDay{Hour: 10})); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	if err := m.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := m.UserByPhone(ctx, "5551234567"); !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("user survived delete: %v", err)
	}
	appts, err := m.Upcoming(ctx, "u1", now)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(appts) != 0 {
		t.Fatalf("appointments survived user delete: %v", appts)
	}
	// The freed slot is bookable again.
	if err := m.CreateAppointment(ctx, newAppt("a2", "u9", d, calendar.TimeOfDay{Hour: 10})); err != nil {
		t.Fatalf("rebook after cascade: %v", err)
	}
}

func TestMemoryUpcomingPredicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	today := calendar.Date{Year: 2026, Month: time.March, Day: 10}
	tomorrow := today.AddDays(1)
	yesterday := today.AddDays(-1)

	seed := []*contract.Appointment{
		newAppt("past-day", "u1", yesterday, calendar.TimeOfDay{Hour: 10}),
		newAppt("earlier-today", "u1", today, calendar.TimeOfDay{Hour: 9}),
		newAppt("later-today", "u1", today, calendar.TimeOfDay{Hour: 16}),
		newAppt("tomorrow", "u1", tomorrow, calendar.TimeOfDay{Hour: 9}),
		newAppt("other-user", "u2", tomorrow, calendar.TimeOfDay{Hour: 11}),
	}
	for _, a := range seed {
		if err := m.CreateAppointment(ctx, a); err != nil {
			t.Fatalf("CreateAppointment(%s): %v", a.ID, err)
		}
	}
	cancelled := newAppt("cancelled", "u1", tomorrow, calendar.TimeOfDay{Hour: 15})
	cancelled.Status = contract.StatusCancelled
	if err := m.CreateAppointment(ctx, cancelled); err != nil {
		t.Fatalf("CreateAppointment(cancelled): %v", err)
	}

	got, err := m.Upcoming(ctx, "u1", now)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	want := []string{"later-today", "tomorrow"}
	if len(got) != len(want) {
		t.Fatalf("Upcoming returned %d appointments, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Upcoming[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMemoryCancelFreesSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	d := calendar.Date{Year: 2026, Month: time.March, Day: 12}
	at := calendar.TimeOfDay{Hour: 14}

	if err := m.CreateAppointment(ctx, newAppt("a1", "u1", d, at)); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if err := m.CreateAppointment(ctx, newAppt("a2", "u2", d, at)); !errors.Is(err, contract.ErrSlotTaken) {
		t.Fatalf("double book: got %v, want ErrSlotTaken", err)
	}

	if err := m.CancelAppointment(ctx, "a1", now); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if err := m.CancelAppointment(ctx, "a1", now); !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("cancel twice: got %v, want ErrNotFound", err)
	}
	if err := m.CreateAppointment(ctx, newAppt("a2", "u2", d, at)); err != nil {
		t.Fatalf("rebook freed slot: %v", err)
	}
}

func TestMemoryMoveAppointment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	d := calendar.Date{Year: 2026, Month: time.March, Day: 12}

	if err := m.CreateAppointment(ctx, newAppt("a1", "u1", d, calendar.TimeOfDay{Hour: 10})); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if err := m.CreateAppointment(ctx, newAppt("a2", "u2", d, calendar.TimeOfDay{Hour: 11})); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	// Moving onto another scheduled slot conflicts.
	if err := m.MoveAppointment(ctx, "a1", d, calendar.TimeOfDay{Hour: 11}, now); !errors.Is(err, contract.ErrSlotTaken) {
		t.Fatalf("move onto occupied slot: got %v, want ErrSlotTaken", err)
	}
	// Moving onto its own slot is a no-op, not a conflict.
	if err := m.MoveAppointment(ctx, "a1", d, calendar.TimeOfDay{Hour: 10}, now); err != nil {
		t.Fatalf("move onto own slot: %v", err)
	}
	if err := m.MoveAppointment(ctx, "a1", d.AddDays(1), calendar.TimeOfDay{Hour: 9}, now); err != nil {
		t.Fatalf("move to free slot: %v", err)
	}

	got, err := m.Upcoming(ctx, "u1", now)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(got) != 1 || !got[0].Date.Equal(d.AddDays(1)) || got[0].Time.Hour != 9 {
		t.Fatalf("moved appointment not found: %+v", got)
	}
	if got[0].ID != "a1" {
		t.Fatalf("move changed identity: %s", got[0].ID)
	}

	if err := m.MoveAppointment(ctx, "missing", d, calendar.TimeOfDay{Hour: 12}, now); !errors.Is(err, contract.ErrNotFound) {
		t.Fatalf("move missing: got %v, want ErrNotFound", err)
	}
}

func TestMemoryConcurrentBookingOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	d := calendar.Date{Year: 2026, Month: time.March, Day: 12}
	at := calendar.TimeOfDay{Hour: 14}

	errs := make(chan error, 2)
	for _, id := range []string{"a1", "a2"} {
		go func(id string) {
			errs <- m.CreateAppointment(ctx, newAppt(id, "u-"+id, d, at))
		}(id)
	}

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case errors.Is(err, contract.ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("got %d wins and %d conflicts, want exactly one of each", wins, conflicts)
	}
}
