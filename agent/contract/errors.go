package contract

import "errors"

var (
	// ErrNotFound covers missing users and missing appointments. Surfaced to
	// the caller as a plain-language negative, never as a failure.
	ErrNotFound = errors.New("not found")

	ErrUserExists = errors.New("user already exists")

	// ErrSlotTaken is the canonical conflict signal. Stores return it when a
	// commit trips the scheduled-slot uniqueness constraint.
	ErrSlotTaken = errors.New("slot already scheduled")

	ErrOutsideBusinessHours = errors.New("time is outside business hours")

	// Phrase resolution failures. The orchestrator converts these into a
	// clarification request rather than guessing.
	ErrUnresolvedDate = errors.New("date phrase unresolved")
	ErrUnresolvedTime = errors.New("time phrase unresolved")

	ErrSessionEnded = errors.New("session has ended")
)
