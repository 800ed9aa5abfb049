package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/superbryn/echo-agent/agent/calendar"
	"github.com/superbryn/echo-agent/agent/contract"
	"github.com/superbryn/echo-agent/agent/phrase"
	"github.com/superbryn/echo-agent/agent/scheduling"
	"github.com/superbryn/echo-agent/agent/session"
	"github.com/superbryn/echo-agent/agent/tool"
)

// Canned replies for situations independent of any one tool's data.
const (
	replyInternalError = "I ran into a problem on my end. Could you try that again?"
	replyUnknownTool   = "I'm sorry, I can't help with that. I can book, check, or manage your appointments."
	replyCallEnded     = "This call has already ended. Thanks again for calling!"
	replyNeedIdentity  = "I'll need your phone number first so I can look up your account."
	replyBadPhone      = "That doesn't look like a valid phone number. Could you give me the full 10-digit number?"
	replyBusinessHours = "Our hours are 9 AM to 5 PM. Would you like a morning or afternoon slot?"
)

// maxListedAppointments bounds how many appointments are spoken in one reply.
const maxListedAppointments = 5

func (o *Orchestrator) identifyUser(ctx context.Context, args map[string]any) string {
	phone, err := tool.StringArg(args, "phone_number")
	if err != nil || !session.ValidPhoneNumber(phone) {
		return replyBadPhone
	}

	user, err := o.store.UserByPhone(ctx, phone)
	if errors.Is(err, contract.ErrNotFound) {
		return fmt.Sprintf("New user with phone %s. Ask for their name to create an account.", phone)
	}
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: identify lookup failed")
		return replyInternalError
	}

	if err := o.sess.Identify(user.ID, user.Name, phone); err != nil {
		return replyCallEnded
	}

	upcoming, err := o.store.Upcoming(ctx, user.ID, o.clock())
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: identify appointment lookup failed")
		return replyInternalError
	}

	result := fmt.Sprintf("Found user: %s. ", nameOr(user.Name, "No name"))
	if len(upcoming) == 0 {
		return result + "No upcoming appointments."
	}
	if len(upcoming) > maxListedAppointments {
		upcoming = upcoming[:maxListedAppointments]
	}
	return result + "Upcoming appointments: " + joinSlots(upcoming, ", ")
}

func (o *Orchestrator) createUser(ctx context.Context, args map[string]any) string {
	phone, err := tool.StringArg(args, "phone_number")
	if err != nil || !session.ValidPhoneNumber(phone) {
		return replyBadPhone
	}
	name, err := tool.StringArg(args, "name")
	if err != nil {
		return "Could you tell me your name so I can set up the account?"
	}

	now := o.clock()
	user := &contract.User{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = o.store.CreateUser(ctx, user)
	if errors.Is(err, contract.ErrUserExists) {
		existing, lookupErr := o.store.UserByPhone(ctx, phone)
		if lookupErr != nil {
			log.Error().Err(lookupErr).Msg("orchestrator: existing user lookup failed")
			return replyInternalError
		}
		if identifyErr := o.sess.Identify(existing.ID, existing.Name, phone); identifyErr != nil {
			return replyCallEnded
		}
		return fmt.Sprintf("User already exists: %s", nameOr(existing.Name, phone))
	}
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: create user failed")
		return replyInternalError
	}

	if err := o.sess.Identify(user.ID, user.Name, phone); err != nil {
		return replyCallEnded
	}
	return fmt.Sprintf("Created account for %s.", name)
}

func (o *Orchestrator) getAvailability(ctx context.Context, args map[string]any) string {
	datePhrase, err := tool.OptionalArg(args, "date")
	if err != nil {
		return replyInternalError
	}

	now := o.clock()
	today := calendar.DateOf(now)

	if datePhrase != "" {
		target, resolveErr := phrase.ResolveDate(datePhrase, today)
		if resolveErr != nil {
			return unresolvedDateReply(datePhrase)
		}
		return o.availabilityForDate(ctx, target, today, now)
	}
	return o.availabilityOverview(ctx, today, now)
}

func (o *Orchestrator) availabilityForDate(ctx context.Context, target, today calendar.Date, now time.Time) string {
	open, err := o.engine.Availability().SlotsOn(ctx, target, now)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: availability lookup failed")
		return replyInternalError
	}

	label := target.SpokenRelative(today)
	if len(open) == 0 {
		return fmt.Sprintf("Sorry, no slots available %s. Would you like to check another day?", label)
	}
	if len(open) == 1 {
		return fmt.Sprintf("I have one slot available %s at %s. Would you like to book it?", label, open[0].Spoken())
	}
	return fmt.Sprintf("I have %d slots available %s: %s. Which time works for you?",
		len(open), label, joinTimes(open))
}

// availabilityOverview is the no-date path: today's slots, a teaser for
// tomorrow, and a nod to the rest of the week.
func (o *Orchestrator) availabilityOverview(ctx context.Context, today calendar.Date, now time.Time) string {
	avail := o.engine.Availability()

	todaySlots, err := avail.SlotsOn(ctx, today, now)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: availability lookup failed")
		return replyInternalError
	}

	var parts []string
	switch {
	case len(todaySlots) == 1:
		parts = append(parts, fmt.Sprintf("Today I have one slot at %s", todaySlots[0].Spoken()))
	case len(todaySlots) > 1:
		shown := todaySlots
		if len(shown) > 6 {
			shown = shown[:6]
		}
		parts = append(parts, fmt.Sprintf("Today I have slots at %s", joinTimes(shown)))
	default:
		parts = append(parts, "No slots available today")
	}

	tomorrowSlots, err := avail.SlotsOn(ctx, today.AddDays(1), now)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: availability lookup failed")
		return replyInternalError
	}
	if len(tomorrowSlots) > 0 {
		parts = append(parts, fmt.Sprintf("Tomorrow I have %d slots starting at %s",
			len(tomorrowSlots), tomorrowSlots[0].Spoken()))
	}

	later, err := avail.NextOpenDays(ctx, now, 3)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: availability lookup failed")
		return replyInternalError
	}
	for _, day := range later {
		if !day.Date.Equal(today.AddDays(1)) {
			parts = append(parts, "I also have availability later this week")
			break
		}
	}

	return strings.Join(parts, ". ") + ". Which day and time works best for you?"
}

func (o *Orchestrator) bookAppointment(ctx context.Context, args map[string]any) string {
	user, reply := o.requireUser(ctx, args, "No account found for %s. Please identify the user first.")
	if reply != "" {
		return reply
	}

	today := calendar.DateOf(o.clock())

	datePhrase, err := tool.StringArg(args, "date")
	if err != nil {
		return unresolvedDateReply(datePhrase)
	}
	date, err := phrase.ResolveDate(datePhrase, today)
	if err != nil {
		return unresolvedDateReply(datePhrase)
	}

	timePhrase, err := tool.StringArg(args, "time")
	if err != nil {
		return unresolvedTimeReply(timePhrase)
	}
	at, err := phrase.ResolveTime(timePhrase)
	if err != nil {
		return unresolvedTimeReply(timePhrase)
	}

	notes, _ := tool.OptionalArg(args, "notes")

	out, err := o.engine.Create(ctx, user.ID, date, at, notes)
	if errors.Is(err, contract.ErrOutsideBusinessHours) {
		return replyBusinessHours
	}
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: booking failed")
		return "I ran into an issue booking that appointment. Could you try again?"
	}

	if out.Conflict {
		if len(out.Alternatives) > 0 {
			return fmt.Sprintf("Sorry, %s is taken. How about %s?", at.Spoken(), joinTimes(out.Alternatives))
		}
		return fmt.Sprintf("Sorry, %s is already booked. Would you like to try a different time?", at.Spoken())
	}

	appt := out.Appointment
	o.sess.RecordBooking(contract.BookedAppointment{
		ID:    appt.ID,
		Date:  appt.Date.String(),
		Time:  appt.Time.String(),
		Notes: appt.Notes,
	})
	o.sess.RecordPreference(session.PrefDays, appt.Date.Weekday().String())
	o.sess.RecordPreference(session.PrefTimes, appt.Time.Spoken())
	if notes != "" {
		o.sess.RecordPreference(session.PrefNotes, notes)
	}
	return fmt.Sprintf("Appointment confirmed for %s on %s.",
		nameOr(user.Name, user.PhoneNumber), appt.Slot().Spoken())
}

func (o *Orchestrator) cancelAppointment(ctx context.Context, args map[string]any) string {
	user, reply := o.requireUser(ctx, args, "I don't have any appointments on file for %s.")
	if reply != "" {
		return reply
	}

	filter, badPhrase := o.buildFilter(args)
	if badPhrase != "" {
		return badPhrase
	}

	out, err := o.engine.Cancel(ctx, user.ID, filter)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: cancel failed")
		return "I ran into an issue cancelling that appointment. Could you try again?"
	}

	who := nameOr(user.Name, user.PhoneNumber)
	switch {
	case out.Cancelled != nil:
		return fmt.Sprintf("I've cancelled the appointment for %s on %s.", who, out.Cancelled.Slot().Spoken())
	case len(out.Candidates) > 0:
		return fmt.Sprintf("%s have %d appointments. Which one would you like to cancel? %s",
			nameOr(user.Name, "You"), out.Upcoming, joinSlotsShort(out.Candidates))
	default:
		return fmt.Sprintf("I couldn't find any upcoming appointments for %s.", who)
	}
}

func (o *Orchestrator) modifyAppointment(ctx context.Context, args map[string]any) string {
	user, reply := o.requireUser(ctx, args, "I couldn't find an account with phone number %s. Please verify your number.")
	if reply != "" {
		return reply
	}

	filter, badPhrase := o.buildFilter(args)
	if badPhrase != "" {
		return badPhrase
	}

	today := calendar.DateOf(o.clock())

	newDatePhrase, err := tool.StringArg(args, "new_date")
	if err != nil {
		return unresolvedDateReply(newDatePhrase)
	}
	newDate, err := phrase.ResolveDate(newDatePhrase, today)
	if err != nil {
		return unresolvedDateReply(newDatePhrase)
	}

	newTimePhrase, err := tool.StringArg(args, "new_time")
	if err != nil {
		return unresolvedTimeReply(newTimePhrase)
	}
	newTime, err := phrase.ResolveTime(newTimePhrase)
	if err != nil {
		return unresolvedTimeReply(newTimePhrase)
	}

	out, err := o.engine.Reschedule(ctx, user.ID, filter, newDate, newTime)
	if errors.Is(err, contract.ErrOutsideBusinessHours) {
		return replyBusinessHours
	}
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: reschedule failed")
		return "I ran into an issue modifying that appointment. Could you try again?"
	}

	switch {
	case out.Moved != nil:
		return fmt.Sprintf("I've updated your appointment from %s to %s.",
			out.Previous.Spoken(), out.Moved.Slot().Spoken())
	case out.Conflict:
		return fmt.Sprintf("Sorry, %s at %s is already booked. Would you like a different time?",
			newDate.Spoken(), newTime.Spoken())
	case len(out.Candidates) > 0:
		return fmt.Sprintf("You have multiple appointments: %s. Which one would you like to modify? Please specify the date.",
			joinSlotsShort(out.Candidates))
	default:
		return fmt.Sprintf("I don't see any scheduled appointments to modify for %s.",
			nameOr(user.Name, user.PhoneNumber))
	}
}

func (o *Orchestrator) getAppointments(ctx context.Context, args map[string]any) string {
	user, reply := o.requireUser(ctx, args, "I don't have any appointments on file for %s.")
	if reply != "" {
		return reply
	}

	// Always re-queried, never answered from the session's memory of
	// earlier turns.
	upcoming, err := o.store.Upcoming(ctx, user.ID, o.clock())
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: appointment listing failed")
		return "I had trouble looking up those appointments. Could you try again?"
	}

	who := nameOr(user.Name, "You")
	if len(upcoming) == 0 {
		return fmt.Sprintf("%s don't have any upcoming appointments scheduled.", who)
	}
	if len(upcoming) == 1 {
		return fmt.Sprintf("%s have one appointment: %s.", who, upcoming[0].Slot().Spoken())
	}

	shown := upcoming
	if len(shown) > maxListedAppointments {
		shown = shown[:maxListedAppointments]
	}
	result := fmt.Sprintf("%s have %d appointments: %s", who, len(upcoming), joinSlots(shown, "; "))
	if len(upcoming) > maxListedAppointments {
		result += fmt.Sprintf(" (and %d more)", len(upcoming)-maxListedAppointments)
	}
	return result
}

func (o *Orchestrator) endConversation(ctx context.Context) string {
	// Repeated end signals return the same summary rather than generating
	// a second one.
	if o.final != nil {
		return o.final.Summary
	}

	if err := o.sess.End(); err != nil && !errors.Is(err, contract.ErrSessionEnded) {
		log.Error().Err(err).Msg("orchestrator: end session failed")
		return replyInternalError
	}

	sum := o.summarizer.Finalize(ctx, o.sess, o.sessionID)
	o.final = &sum
	return sum.Summary
}

// requireUser enforces the identification gate, then resolves the phone
// argument to a fresh user record. notFoundFormat is the tool's own phrasing
// for an unknown phone number.
func (o *Orchestrator) requireUser(ctx context.Context, args map[string]any, notFoundFormat string) (*contract.User, string) {
	if !o.sess.Identified() {
		return nil, replyNeedIdentity
	}

	phone, err := tool.StringArg(args, "phone_number")
	if err != nil || !session.ValidPhoneNumber(phone) {
		return nil, replyBadPhone
	}

	user, err := o.store.UserByPhone(ctx, phone)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, fmt.Sprintf(notFoundFormat, phone)
	}
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: user lookup failed")
		return nil, replyInternalError
	}
	return user, ""
}

// buildFilter turns the optional date/time arguments into an appointment
// filter. An unresolvable phrase yields a clarification reply instead of a
// silently unfiltered match.
func (o *Orchestrator) buildFilter(args map[string]any) (scheduling.Filter, string) {
	var filter scheduling.Filter
	today := calendar.DateOf(o.clock())

	if datePhrase, err := tool.OptionalArg(args, "date"); err == nil && datePhrase != "" {
		d, resolveErr := phrase.ResolveDate(datePhrase, today)
		if resolveErr != nil {
			return scheduling.Filter{}, unresolvedDateReply(datePhrase)
		}
		filter.Date = &d
	}
	if timePhrase, err := tool.OptionalArg(args, "time"); err == nil && timePhrase != "" {
		t, resolveErr := phrase.ResolveTime(timePhrase)
		if resolveErr != nil {
			return scheduling.Filter{}, unresolvedTimeReply(timePhrase)
		}
		filter.Time = &t
	}
	return filter, ""
}

func unresolvedDateReply(datePhrase string) string {
	return fmt.Sprintf("I couldn't understand the date '%s'. Could you say it differently? Like 'tomorrow' or 'next Monday'?", datePhrase)
}

func unresolvedTimeReply(timePhrase string) string {
	return fmt.Sprintf("I couldn't understand the time '%s'. Could you try something like '2 PM' or '14:00'?", timePhrase)
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// joinTimes renders times as natural speech: "9:00 AM, 10:00 AM and 11:00 AM".
func joinTimes(times []calendar.TimeOfDay) string {
	spoken := make([]string, len(times))
	for i, t := range times {
		spoken[i] = t.Spoken()
	}
	return joinAnd(spoken)
}

func joinSlots(appts []contract.Appointment, sep string) string {
	spoken := make([]string, len(appts))
	for i, a := range appts {
		spoken[i] = a.Slot().Spoken()
	}
	return strings.Join(spoken, sep)
}

// joinSlotsShort uses the compact "March 11 at 2:00 PM" form for
// disambiguation lists.
func joinSlotsShort(appts []contract.Appointment) string {
	spoken := make([]string, len(appts))
	for i, a := range appts {
		spoken[i] = a.Date.Time().Format("January 2") + " at " + a.Time.Spoken()
	}
	return strings.Join(spoken, ", ")
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
