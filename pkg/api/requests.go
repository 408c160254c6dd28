package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// validate checks envelope shape before anything reaches a domain handler.
var validate = validator.New()

// MetadataRequest is the JSON metadata block of a command or query
// envelope.
type MetadataRequest struct {
	AggregateID    string    `json:"aggregate_id" validate:"required,uuid"`
	CommandID      string    `json:"command_id" validate:"required,uuid"`
	CorrelationID  string    `json:"correlation_id" validate:"required,uuid"`
	CausationID    string    `json:"causation_id" validate:"omitempty,uuid"`
	UserID         string    `json:"user_id" validate:"required"`
	IdempotencyKey string    `json:"idempotency_key" validate:"required,uuid"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

// CommandBody is the typed-variant half of a command envelope: a type tag
// plus the variant's own fields.
type CommandBody struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// CommandRequest is the full command envelope.
type CommandRequest struct {
	Command  CommandBody     `json:"command" validate:"required"`
	Metadata MetadataRequest `json:"metadata" validate:"required"`
}

// QueryBody mirrors CommandBody for the query route.
type QueryBody struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// QueryRequest is the full query envelope.
type QueryRequest struct {
	Query    QueryBody       `json:"query" validate:"required"`
	Metadata MetadataRequest `json:"metadata" validate:"required"`
}

// commandMetadata converts a validated MetadataRequest into the domain
// envelope metadata. Validation has already established every id parses.
func commandMetadata(m MetadataRequest) eventsourcing.CommandMetadata {
	causation := uuid.Nil
	if m.CausationID != "" {
		causation = uuid.MustParse(m.CausationID)
	}
	return eventsourcing.CommandMetadata{
		AggregateID:    uuid.MustParse(m.AggregateID),
		CommandID:      uuid.MustParse(m.CommandID),
		CorrelationID:  uuid.MustParse(m.CorrelationID),
		CausationID:    causation,
		UserID:         m.UserID,
		IdempotencyKey: uuid.MustParse(m.IdempotencyKey),
		Timestamp:      m.Timestamp.UTC(),
	}
}

// validateEnvelope runs the struct validator and wraps any failure in the
// domain ValidationError so the error mapper returns 400.
func validateEnvelope(req any) error {
	if err := validate.Struct(req); err != nil {
		return &eventsourcing.ValidationError{Msg: fmt.Sprintf("invalid envelope: %v", err)}
	}
	return nil
}

// decodeData unmarshals a command/query body's data into dst, reporting a
// ValidationError on malformed JSON.
func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &eventsourcing.ValidationError{Msg: fmt.Sprintf("invalid command data: %v", err)}
	}
	return nil
}
