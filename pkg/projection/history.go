package projection

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// HistoryLoader returns an aggregate's full event log as decoded
// envelopes, in sequence order. The incremental cached projectors use it
// to rebuild their model from scratch when their Redis cache is cold or
// stale — the degrade-to-replay path.
type HistoryLoader func(ctx context.Context, aggregateID uuid.UUID) ([]eventsourcing.EventEnvelope, error)

// NewHistoryLoader builds a HistoryLoader over the event store, decoding
// rows the same way the Processor decodes a batch.
func NewHistoryLoader(store eventsourcing.EventStore, decode EventDecoder) HistoryLoader {
	return func(ctx context.Context, aggregateID uuid.UUID) ([]eventsourcing.EventEnvelope, error) {
		rows, err := store.Load(ctx, aggregateID)
		if err != nil {
			return nil, err
		}
		envelopes := make([]eventsourcing.EventEnvelope, 0, len(rows))
		for _, row := range rows {
			event, err := decode(row.EventType, row.EventVersion, row.EventData)
			if err != nil {
				return nil, fmt.Errorf("%w: sequence %d: %v", eventsourcing.ErrDeserialization, row.Sequence, err)
			}
			envelopes = append(envelopes, eventsourcing.EventEnvelope{
				Event: event,
				Metadata: eventsourcing.EventMetadata{
					Sequence:       row.Sequence,
					AggregateID:    aggregateID,
					UserID:         row.UserID,
					Timestamp:      row.Timestamp,
					IdempotencyKey: row.IdempotencyKey,
				},
			})
		}
		return envelopes, nil
	}
}
