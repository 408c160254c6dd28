// Package eventsourcing provides the append-only event log contract shared
// by every aggregate in the core: StoredEvent/EventEnvelope/CommandEnvelope
// framing, the EventStore interface and its Postgres implementation, and the
// DomainError taxonomy events and commands are validated against.
package eventsourcing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StoredEvent is the on-the-wire shape of one row in the stored_events
// table. EventData is kept as opaque JSON so the store never
// needs to know about any particular aggregate's event types.
type StoredEvent struct {
	Sequence       int64           `json:"sequence"`
	AggregateID    uuid.UUID       `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	EventData      json.RawMessage `json:"event_data"`
	EventVersion   int             `json:"event_version"`
	Timestamp      time.Time       `json:"timestamp"`
	UserID         string          `json:"user_id"`
	IdempotencyKey uuid.UUID       `json:"idempotency_key"`
}

// EventMetadata carries the envelope fields that travel alongside a decoded
// domain event.
type EventMetadata struct {
	Sequence       int64     `json:"sequence"`
	AggregateID    uuid.UUID `json:"aggregate_id"`
	CorrelationID  uuid.UUID `json:"correlation_id"`
	CausationID    uuid.UUID `json:"causation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	IdempotencyKey uuid.UUID `json:"idempotency_key"`
}

// EventEnvelope is a StoredEvent decoded into a typed domain event (the
// concrete Go type is carried as `any`; aggregate packages type-assert it
// back to their own event interface).
type EventEnvelope struct {
	Event    any
	Metadata EventMetadata
}

// CommandMetadata carries the envelope fields for an inbound command.
type CommandMetadata struct {
	AggregateID    uuid.UUID `json:"aggregate_id"`
	CommandID      uuid.UUID `json:"command_id"`
	CorrelationID  uuid.UUID `json:"correlation_id"`
	CausationID    uuid.UUID `json:"causation_id"`
	UserID         string    `json:"user_id"`
	IdempotencyKey uuid.UUID `json:"idempotency_key"`
	Timestamp      time.Time `json:"timestamp"`
}

// CommandEnvelope wraps a typed command with its metadata.
type CommandEnvelope struct {
	Command  any
	Metadata CommandMetadata
}

// AppendResult is returned by EventStore.Append: either the sequence/time
// of the newly inserted row, or — on idempotent replay — the sequence/time
// of the row that was already there.
type AppendResult struct {
	Sequence  int64
	Timestamp time.Time
}
