// Package repository implements the generic aggregate repository shared by
// each aggregate kind: load-from-events, save-with-enrichment, and an optional
// Redis-backed state cache that degrades to replay on any cache failure.
package repository

import (
	"context"
	"crypto/sha1" //nolint:gosec // used only as a deterministic UUIDv5 namespace hash, not for security
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// Event is the minimal shape every aggregate's event type satisfies.
type Event interface {
	EventType() string
	EventVersion() int
}

// Codec encodes and decodes an aggregate's events. labour.Codec and
// notification.Codec both satisfy this for their respective event types.
type Codec[E Event] interface {
	Encode(event E) (json.RawMessage, error)
	Decode(eventType string, eventVersion int, data json.RawMessage) (E, error)
}

// Aggregate bundles an aggregate's three pure functions
// (FromEvents/Apply/HandleCommand). It is supplied as plain functions rather than an interface value
// because Go generics cannot express "the zero value of a type parameter
// implements an interface" — labour and notification each expose their
// FromEvents/Apply/HandleCommand as free functions with exactly this shape.
type Aggregate[S any, C any, E Event] struct {
	FromEvents    func(events []E) (*S, bool)
	Apply         func(state *S, event E)
	HandleCommand func(state *S, cmd C, now time.Time, newID func() uuid.UUID) ([]E, error)
}

// Repository is the generic, event-store-backed repository for one
// aggregate type. It has no cache of its own; CachedRepository wraps it
// when a cache is wanted.
type Repository[S any, C any, E Event] struct {
	store eventsourcing.EventStore
	codec Codec[E]
	agg   Aggregate[S, C, E]
	newID func() uuid.UUID
}

// New constructs a Repository. newID is the aggregate-local id generator
// (idgen.New in production, a sequential stub in tests) — never
// time.Now/math/rand directly, so that HandleCommand stays deterministic.
func New[S any, C any, E Event](store eventsourcing.EventStore, codec Codec[E], agg Aggregate[S, C, E], newID func() uuid.UUID) *Repository[S, C, E] {
	return &Repository[S, C, E]{store: store, codec: codec, agg: agg, newID: newID}
}

// Load reads an aggregate's event log and folds it into its current state.
// The bool result mirrors Aggregate.FromEvents: false means no events
// exist yet for aggregateID.
func (r *Repository[S, C, E]) Load(ctx context.Context, aggregateID uuid.UUID) (*S, bool, error) {
	events, err := r.loadDecoded(ctx, aggregateID)
	if err != nil {
		return nil, false, err
	}
	state, ok := r.agg.FromEvents(events)
	return state, ok, nil
}

func (r *Repository[S, C, E]) loadDecoded(ctx context.Context, aggregateID uuid.UUID) ([]E, error) {
	stored, err := r.store.Load(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	events := make([]E, 0, len(stored))
	for _, row := range stored {
		event, err := r.codec.Decode(row.EventType, row.EventVersion, row.EventData)
		if err != nil {
			return nil, fmt.Errorf("%w: aggregate %s sequence %d: %v", eventsourcing.ErrDeserialization, aggregateID, row.Sequence, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Execute loads the current state, runs cmd through the aggregate's
// command handler, appends the resulting events, and returns the
// resulting state plus the envelopes downstream consumers (the host's
// alarm step) need. Each event's idempotency key is derived from the
// command's idempotency key and its position in the batch. Retrying the
// exact same command never double-appends: when the log already holds the
// key of the command's first event, Execute returns the current state and
// no envelopes without running the command handler again. Such a retry
// does not append events of the batch that an earlier, partly failed
// attempt left unappended.
func (r *Repository[S, C, E]) Execute(ctx context.Context, aggregateID uuid.UUID, cmd C, meta eventsourcing.CommandMetadata) (*S, []eventsourcing.EventEnvelope, error) {
	stored, err := r.store.Load(ctx, aggregateID)
	if err != nil {
		return nil, nil, err
	}
	firstKey := deriveEventIdempotencyKey(meta.IdempotencyKey, 0)
	for _, row := range stored {
		if row.IdempotencyKey == firstKey {
			state, _, err := r.Load(ctx, aggregateID)
			return state, nil, err
		}
	}

	state, _, err := r.Load(ctx, aggregateID)
	if err != nil {
		return nil, nil, err
	}

	newEvents, err := r.agg.HandleCommand(state, cmd, meta.Timestamp, r.newID)
	if err != nil {
		return nil, nil, err
	}

	envelopes := make([]eventsourcing.EventEnvelope, 0, len(newEvents))
	for i, event := range newEvents {
		data, err := r.codec.Encode(event)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: aggregate %s: %v", eventsourcing.ErrDeserialization, aggregateID, err)
		}

		idempotencyKey := deriveEventIdempotencyKey(meta.IdempotencyKey, i)
		result, err := r.store.Append(ctx, aggregateID, event.EventType(), event.EventVersion(), data, meta.UserID, idempotencyKey)
		if err != nil {
			return nil, nil, err
		}

		if state == nil {
			s, _ := r.agg.FromEvents([]E{event})
			state = s
		} else {
			r.agg.Apply(state, event)
		}

		envelopes = append(envelopes, eventsourcing.EventEnvelope{
			Event: event,
			Metadata: eventsourcing.EventMetadata{
				Sequence:       result.Sequence,
				AggregateID:    aggregateID,
				CorrelationID:  meta.CorrelationID,
				CausationID:    meta.CommandID,
				UserID:         meta.UserID,
				Timestamp:      result.Timestamp,
				IdempotencyKey: idempotencyKey,
			},
		})
	}

	return state, envelopes, nil
}

// deriveEventIdempotencyKey derives a per-event idempotency key from a
// command's idempotency key and the event's position in the batch the
// command produced, using UUIDv5 (SHA-1 over the namespace + name) so the
// derivation is pure and reproducible across retries.
func deriveEventIdempotencyKey(commandIdempotencyKey uuid.UUID, position int) uuid.UUID {
	return uuid.NewHash(sha1.New(), commandIdempotencyKey, []byte(fmt.Sprintf("event:%d", position)), 5)
}
