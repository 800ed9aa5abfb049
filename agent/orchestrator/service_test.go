package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/superbryn/echo-agent/agent/scheduling"
	"github.com/superbryn/echo-agent/agent/session"
	"github.com/superbryn/echo-agent/agent/store"
	"github.com/superbryn/echo-agent/agent/summary"
	"github.com/superbryn/echo-agent/agent/tool"
	eventsx "github.com/superbryn/echo-agent/pkg/events"
)

// 2026-03-10 is a Tuesday, mid-morning.
var callNow = time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Generate(ctx context.Context, transcript []session.Turn) (string, error) {
	g.calls++
	return "Recap of the call.", nil
}

type fixture struct {
	orch *Orchestrator
	mem  *store.Memory
	gen  *countingGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	clock := func() time.Time { return callNow }
	engine := scheduling.NewEngine(mem, scheduling.WithClock(clock))
	gen := &countingGenerator{}
	summarizer := summary.New(mem, summary.WithGenerator(gen), summary.WithClock(clock))

	orch, err := New("sess-1", mem, engine, summarizer, WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{orch: orch, mem: mem, gen: gen}
}

func (f *fixture) call(t *testing.T, toolName string, args map[string]any) string {
	t.Helper()
	return f.orch.HandleToolCall(context.Background(), toolName, args)
}

// identifySarah walks a new caller through identification and account
// creation.
func (f *fixture) identifySarah(t *testing.T) {
	t.Helper()

	reply := f.call(t, tool.IdentifyUser, map[string]any{"phone_number": "5551234567"})
	if !strings.Contains(reply, "New user with phone 5551234567") {
		t.Fatalf("identify_user for unseen phone: %q", reply)
	}
	reply = f.call(t, tool.CreateUser, map[string]any{"phone_number": "5551234567", "name": "Sarah"})
	if reply != "Created account for Sarah." {
		t.Fatalf("create_user: %q", reply)
	}
}

func TestNewUserBooksAndListsAppointment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	reply := f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567",
		"date":         "tomorrow",
		"time":         "2pm",
	})
	// Tomorrow is Wednesday, March 11; "2pm" is 2:00 PM.
	want := "Appointment confirmed for Sarah on Wednesday, March 11 at 2:00 PM."
	if reply != want {
		t.Fatalf("book_appointment = %q, want %q", reply, want)
	}

	reply = f.call(t, tool.GetAppointments, map[string]any{"phone_number": "5551234567"})
	if reply != "Sarah have one appointment: Wednesday, March 11 at 2:00 PM." {
		t.Fatalf("get_appointments = %q", reply)
	}

	booked := f.orch.Session().Booked()
	if len(booked) != 1 || booked[0].Date != "2026-03-11" || booked[0].Time != "14:00" {
		t.Fatalf("session booking log: %+v", booked)
	}
}

func TestBookingGateRequiresIdentification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reply := f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567",
		"date":         "tomorrow",
		"time":         "2pm",
	})
	if reply != replyNeedIdentity {
		t.Fatalf("unidentified booking = %q", reply)
	}

	appts, err := f.mem.Upcoming(context.Background(), "5551234567", callNow)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(appts) != 0 {
		t.Fatal("gate let a booking through")
	}
}

func TestInvalidPhoneNumberIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, phone := range []string{"555123", "555123456789", "555-123-4567"} {
		reply := f.call(t, tool.IdentifyUser, map[string]any{"phone_number": phone})
		if reply != replyBadPhone {
			t.Errorf("identify_user(%q) = %q, want format correction", phone, reply)
		}
	}
}

func TestCancelledAppointmentNeverListed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "2pm",
	})

	reply := f.call(t, tool.CancelAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow",
	})
	if !strings.Contains(reply, "I've cancelled the appointment for Sarah on Wednesday, March 11 at 2:00 PM") {
		t.Fatalf("cancel_appointment = %q", reply)
	}

	reply = f.call(t, tool.GetAppointments, map[string]any{"phone_number": "5551234567"})
	if reply != "Sarah don't have any upcoming appointments scheduled." {
		t.Fatalf("get_appointments after cancel = %q", reply)
	}
}

func TestCancelWithoutFilterDisambiguates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "10am",
	})
	f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "friday", "time": "3pm",
	})

	reply := f.call(t, tool.CancelAppointment, map[string]any{"phone_number": "5551234567"})
	if !strings.Contains(reply, "have 2 appointments. Which one would you like to cancel?") {
		t.Fatalf("ambiguous cancel = %q", reply)
	}
	if !strings.Contains(reply, "March 11 at 10:00 AM") || !strings.Contains(reply, "March 13 at 3:00 PM") {
		t.Fatalf("candidates missing from reply: %q", reply)
	}

	// No mutation happened.
	listed := f.call(t, tool.GetAppointments, map[string]any{"phone_number": "5551234567"})
	if !strings.Contains(listed, "have 2 appointments") {
		t.Fatalf("appointments after ambiguous cancel = %q", listed)
	}
}

func TestDoubleBookingConflictOffersAlternatives(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "2pm",
	})
	reply := f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "2pm",
	})
	if !strings.HasPrefix(reply, "Sorry, 2:00 PM is taken. How about ") {
		t.Fatalf("conflict reply = %q", reply)
	}
}

func TestModifyAppointmentMovesSlot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "2pm",
	})

	reply := f.call(t, tool.ModifyAppointment, map[string]any{
		"phone_number": "5551234567",
		"new_date":     "friday",
		"new_time":     "10am",
	})
	want := "I've updated your appointment from Wednesday, March 11 at 2:00 PM to Friday, March 13 at 10:00 AM."
	if reply != want {
		t.Fatalf("modify_appointment = %q, want %q", reply, want)
	}

	listed := f.call(t, tool.GetAppointments, map[string]any{"phone_number": "5551234567"})
	if !strings.Contains(listed, "Friday, March 13 at 10:00 AM") {
		t.Fatalf("appointments after modify = %q", listed)
	}
}

func TestUnresolvedPhrasesAskForClarification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)

	reply := f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "someday", "time": "2pm",
	})
	if !strings.Contains(reply, "couldn't understand the date 'someday'") {
		t.Fatalf("unresolved date = %q", reply)
	}

	reply = f.call(t, tool.BookAppointment, map[string]any{
		"phone_number": "5551234567", "date": "tomorrow", "time": "later",
	})
	if !strings.Contains(reply, "couldn't understand the time 'later'") {
		t.Fatalf("unresolved time = %q", reply)
	}
}

func TestEndConversationGeneratesSummaryOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identifySarah(t)
	f.orch.RecordCallerTurn("I'd like to book an appointment tomorrow at two")
	f.orch.RecordAgentTurn("You're all set for tomorrow at 2 PM")

	reply := f.call(t, tool.EndConversation, map[string]any{"session_id": "sess-1"})
	if reply != "Recap of the call." {
		t.Fatalf("end_conversation = %q", reply)
	}
	if f.gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", f.gen.calls)
	}

	// Tools after the end are refused; a repeated end replays the summary.
	if got := f.call(t, tool.GetAppointments, map[string]any{"phone_number": "5551234567"}); got != replyCallEnded {
		t.Fatalf("tool after end = %q", got)
	}
	if got := f.call(t, tool.EndConversation, map[string]any{"session_id": "sess-1"}); got != "Recap of the call." {
		t.Fatalf("repeated end_conversation = %q", got)
	}
	if f.gen.calls != 1 {
		t.Fatalf("generator called %d times after repeat, want 1", f.gen.calls)
	}

	saved := f.mem.Summaries()
	if len(saved) != 1 || saved[0].SessionID != "sess-1" {
		t.Fatalf("persisted summaries: %+v", saved)
	}
	if saved[0].UserID == "" {
		t.Error("summary lost the identified user")
	}
}

func TestUnknownToolGetsSpokenRefusal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got := f.call(t, "open_garage_door", nil); got != replyUnknownTool {
		t.Fatalf("unknown tool = %q", got)
	}
}

func TestAvailabilityOverviewMentionsTodayAndTomorrow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reply := f.call(t, tool.GetAvailability, nil)
	if !strings.Contains(reply, "Today I have slots at ") {
		t.Fatalf("overview missing today: %q", reply)
	}
	if !strings.Contains(reply, "Tomorrow I have 8 slots starting at 9:00 AM") {
		t.Fatalf("overview missing tomorrow: %q", reply)
	}
	if !strings.HasSuffix(reply, "Which day and time works best for you?") {
		t.Fatalf("overview missing closing question: %q", reply)
	}
	// 11:00 has passed; today's teaser must not include it.
	if strings.Contains(reply, "11:00 AM") {
		t.Fatalf("overview leaked a past slot: %q", reply)
	}
}

func TestSlowEventWebhookDoesNotDelayReply(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	clock := func() time.Time { return callNow }
	engine := scheduling.NewEngine(mem, scheduling.WithClock(clock))
	summarizer := summary.New(mem, summary.WithClock(clock))
	events := eventsx.MustNew(eventsx.Config{URL: srv.URL})

	orch, err := New("sess-events", mem, engine, summarizer,
		WithClock(clock), WithEvents(events))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The webhook handler is still blocked here; if publishes ran on the
	// call path this would never return.
	reply := orch.HandleToolCall(context.Background(), tool.GetAvailability, nil)
	if reply == "" {
		t.Fatal("expected a spoken reply while the webhook was stalled")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for delivered.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := delivered.Load(); got < 2 {
		t.Fatalf("expected tool_start and tool_end to be delivered, got %d", got)
	}
}
