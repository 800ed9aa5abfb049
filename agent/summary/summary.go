// Package summary produces the post-call record: a short natural-language
// recap of the conversation plus the structured facts gathered during the
// call, persisted once per session.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/superbryn/echo-agent/agent/contract"
	"github.com/superbryn/echo-agent/agent/session"
)

// maxTranscriptTurns bounds how much of the conversation is sent for
// generation; older turns rarely change the recap.
const maxTranscriptTurns = 20

// Generator turns a transcript into a short recap. Implementations may call
// out to a model; errors and empty output both trigger the deterministic
// fallback.
type Generator interface {
	Generate(ctx context.Context, transcript []session.Turn) (string, error)
}

// Summarizer builds and persists call summaries. A nil Generator is valid and
// means every call gets the fallback recap.
type Summarizer struct {
	gen     Generator
	store   contract.Store
	timeout time.Duration
	clock   func() time.Time
	newID   func() string
}

type Option func(*Summarizer)

// WithGenerator installs a recap generator.
func WithGenerator(gen Generator) Option {
	return func(s *Summarizer) { s.gen = gen }
}

// WithTimeout bounds each generation attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) { s.timeout = d }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Summarizer) { s.clock = clock }
}

// WithIDGenerator overrides how summary IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Summarizer) { s.newID = newID }
}

func New(store contract.Store, opts ...Option) *Summarizer {
	s := &Summarizer{
		store:   store,
		timeout: 30 * time.Second,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Finalize builds the summary for an ended session and persists it. The
// returned summary is always non-empty; generation failures fall back to a
// structured recap, and a failed save is logged rather than surfaced so the
// caller still hears a goodbye.
func (s *Summarizer) Finalize(ctx context.Context, sess *session.Session, sessionID string) contract.CallSummary {
	now := s.clock()

	text := s.generate(ctx, sess.Transcript())
	if text == "" {
		text = fallback(sess)
	}

	userID, _, _ := sess.Identity()
	sum := contract.CallSummary{
		ID:                 s.newID(),
		UserID:             userID,
		SessionID:          sessionID,
		Summary:            text,
		AppointmentsBooked: sess.Booked(),
		UserPreferences:    sess.Preferences(),
		DurationSeconds:    sess.Duration(now),
		CreatedAt:          now,
	}

	if err := s.store.SaveSummary(ctx, &sum); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("summary: save failed")
	}
	return sum
}

func (s *Summarizer) generate(ctx context.Context, transcript []session.Turn) string {
	if s.gen == nil || len(transcript) == 0 {
		return ""
	}
	if len(transcript) > maxTranscriptTurns {
		transcript = transcript[len(transcript)-maxTranscriptTurns:]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, transcript)
	if err != nil {
		log.Warn().Err(err).Msg("summary: generation failed, using fallback")
		return ""
	}
	return strings.TrimSpace(text)
}

// fallback is the deterministic recap used when generation is unavailable.
func fallback(sess *session.Session) string {
	_, name, phone := sess.Identity()

	var parts []string
	if name != "" {
		parts = append(parts, "User: "+name)
	}
	if phone != "" {
		parts = append(parts, "Phone: "+phone)
	}
	if n := len(sess.Booked()); n > 0 {
		parts = append(parts, fmt.Sprintf("Booked %d appointment(s)", n))
	}
	if len(parts) == 0 {
		return "No actions taken."
	}
	return strings.Join(parts, " | ")
}
