package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AppendedEvent summarises one event a command produced.
type AppendedEvent struct {
	Sequence  int64     `json:"sequence"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandResponse reports a command's outcome: which events were appended
// (empty for an idempotent replay that appended nothing new).
type CommandResponse struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Events      []AppendedEvent `json:"events"`
}

func commandResponse(aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) CommandResponse {
	events := make([]AppendedEvent, 0, len(envelopes))
	for _, env := range envelopes {
		eventType := ""
		if typed, ok := env.Event.(interface{ EventType() string }); ok {
			eventType = typed.EventType()
		}
		events = append(events, AppendedEvent{
			Sequence:  env.Metadata.Sequence,
			EventType: eventType,
			Timestamp: env.Metadata.Timestamp,
		})
	}
	return CommandResponse{AggregateID: aggregateID, Events: events}
}

// StoredEventResponse is one row of the debugging event-log dump
// (GET /{aggregate}/events).
type StoredEventResponse struct {
	Sequence       int64     `json:"sequence"`
	AggregateID    uuid.UUID `json:"aggregate_id"`
	EventType      string    `json:"event_type"`
	EventData      string    `json:"event_data"`
	EventVersion   int       `json:"event_version"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id"`
	IdempotencyKey uuid.UUID `json:"idempotency_key"`
}

// PageResponse wraps a cursor-paginated result set.
type PageResponse[T any] struct {
	Items      []T    `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}
