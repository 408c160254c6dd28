package eventsourcing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStore is the append-only log contract for the per-entity log. Every
// method is scoped to a single aggregate's log: within one entity sequences
// are contiguous starting at 1, and (aggregate_id, idempotency_key) is
// unique.
type EventStore interface {
	// Append allocates the next sequence for aggregateID and inserts a new
	// row, unless (aggregateID, idempotencyKey) already exists — in which
	// case the prior AppendResult is returned with no new row written.
	Append(ctx context.Context, aggregateID uuid.UUID, eventType string, eventVersion int, eventData json.RawMessage, userID string, idempotencyKey uuid.UUID) (AppendResult, error)

	// Load returns every event for aggregateID in sequence order.
	Load(ctx context.Context, aggregateID uuid.UUID) ([]StoredEvent, error)

	// EventsSince returns up to batchSize events for aggregateID with
	// sequence > sinceSequence, in sequence order.
	EventsSince(ctx context.Context, aggregateID uuid.UUID, sinceSequence int64, batchSize int) ([]StoredEvent, error)
}

// Clock abstracts time.Now so tests can inject a fixed timestamp; the host
// is the only caller that ever constructs one against the real clock,
// keeping command handling itself deterministic.
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time { return time.Now().UTC() }
