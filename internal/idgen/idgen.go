// Package idgen allocates the time-ordered identifiers used throughout the
// core: aggregate ids, command/correlation/causation ids, and idempotency
// keys are all v7 UUIDs so that ids sort roughly by creation time.
package idgen

import "github.com/google/uuid"

// New returns a fresh v7 UUID. Callers that need determinism (domain command
// handlers) must never call this directly — ids are allocated by the host
// before a command reaches the handler and passed in explicitly.
func New() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the runtime's random source is broken;
		// falling back to v4 keeps the system available rather than panicking.
		return uuid.New()
	}
	return id
}

// Parse parses s into a UUID, returning the zero UUID and an error on
// malformed input.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
