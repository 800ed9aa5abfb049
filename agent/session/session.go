// Package session holds the transient per-call state: caller identity,
// transcript, and the appointments booked during the call. A session lives
// exactly as long as its call; nothing here survives teardown except through
// the call summary.
package session

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/superbryn/echo-agent/agent/contract"
)

type Status string

const (
	StatusUnidentified Status = "unidentified"
	StatusIdentified   Status = "identified"
	StatusEnded        Status = "ended"
)

type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Turn is one transcript entry. The transcript is append-only and ordered;
// it is the sole input to the call summarizer.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Preference kinds captured during a call.
const (
	PrefTimes = "preferred_times"
	PrefDays  = "preferred_days"
	PrefNotes = "notes"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// ValidPhoneNumber reports whether s is exactly ten digits.
func ValidPhoneNumber(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// Session is owned by a single call. Tool invocations within a call are
// sequential, but transcript turns arrive from transport callbacks, so
// mutation goes through a mutex.
type Session struct {
	ID        string
	StartedAt time.Time

	mu          sync.Mutex
	status      Status
	userID      string
	userName    string
	userPhone   string
	transcript  []Turn
	booked      []contract.BookedAppointment
	preferences map[string][]string
}

func New(id string, now time.Time) *Session {
	return &Session{
		ID:          strings.TrimSpace(id),
		StartedAt:   now.UTC(),
		status:      StatusUnidentified,
		preferences: make(map[string][]string, 3),
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Identify records the caller's identity and moves the session to
// Identified. Re-identification within a call replaces the identity.
func (s *Session) Identify(userID, name, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return contract.ErrSessionEnded
	}
	s.userID = userID
	s.userName = name
	s.userPhone = phone
	s.status = StatusIdentified
	return nil
}

func (s *Session) Identified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusIdentified
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusEnded
}

// End is terminal; a second End returns ErrSessionEnded.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return contract.ErrSessionEnded
	}
	s.status = StatusEnded
	return nil
}

// Identity returns the caller identity fields; empty strings until
// identification happens.
func (s *Session) Identity() (userID, name, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userName, s.userPhone
}

func (s *Session) AppendTurn(role Role, content string, at time.Time) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Turn{Role: role, Content: content, At: at.UTC()})
}

func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// RecordBooking appends to the advisory booked-this-call log.
func (s *Session) RecordBooking(b contract.BookedAppointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booked = append(s.booked, b)
}

func (s *Session) Booked() []contract.BookedAppointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contract.BookedAppointment, len(s.booked))
	copy(out, s.booked)
	return out
}

// RecordPreference captures a freeform caller preference under one of the
// Pref* kinds.
func (s *Session) RecordPreference(kind, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferences == nil {
		s.preferences = make(map[string][]string, 3)
	}
	s.preferences[kind] = append(s.preferences[kind], value)
}

func (s *Session) Preferences() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.preferences))
	for k, v := range s.preferences {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Duration reports elapsed call time in whole seconds.
func (s *Session) Duration(now time.Time) int {
	d := now.UTC().Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
