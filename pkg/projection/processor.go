package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// EventDecoder decodes a stored event's opaque payload into the concrete
// domain event type a set of Projectors expects. Each aggregate package
// supplies one backed by its own Codec.
type EventDecoder func(eventType string, eventVersion int, data json.RawMessage) (any, error)

// Processor implements the projection processor loop: for
// each registered projector, load its checkpoint, fetch the next batch of
// events past it, and apply the batch, advancing the checkpoint only on
// success.
type Processor struct {
	store       eventsourcing.EventStore
	checkpoints CheckpointRepository
	decode      EventDecoder
	batchSize   int
	logger      *slog.Logger
}

// NewProcessor constructs a Processor. batchSize <= 0 defaults to
// DefaultBatchSize.
func NewProcessor(store eventsourcing.EventStore, checkpoints CheckpointRepository, decode EventDecoder, batchSize int, logger *slog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, checkpoints: checkpoints, decode: decode, batchSize: batchSize, logger: logger}
}

// ProcessOnce advances every projector in projectors by at most one batch
// against aggregateID's log. A failing projector is logged and left at its
// prior checkpoint; it does not stop the remaining projectors from making
// progress; a failed batch leaves the checkpoint where it was.
func (p *Processor) ProcessOnce(ctx context.Context, aggregateID uuid.UUID, projectors []Projector) {
	for _, proj := range projectors {
		if err := p.advance(ctx, aggregateID, proj); err != nil {
			p.logger.Error("projector batch failed", "projector", proj.Name(), "aggregate_id", aggregateID, "error", err)
		}
	}
}

func (p *Processor) advance(ctx context.Context, aggregateID uuid.UUID, proj Projector) error {
	checkpoint, err := p.checkpoints.Load(ctx, aggregateID, proj.Name())
	if err != nil {
		return err
	}

	rows, err := p.store.EventsSince(ctx, aggregateID, checkpoint.LastProcessedSequence, p.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	envelopes := make([]eventsourcing.EventEnvelope, 0, len(rows))
	for _, row := range rows {
		event, err := p.decode(row.EventType, row.EventVersion, row.EventData)
		if err != nil {
			return fmt.Errorf("%w: %s sequence %d: %v", eventsourcing.ErrDeserialization, proj.Name(), row.Sequence, err)
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

	if err := proj.ProjectBatch(ctx, aggregateID, envelopes); err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", eventsourcing.ErrProjector, proj.Name(), err)
		if markErr := p.checkpoints.MarkFailure(ctx, aggregateID, proj.Name(), wrapped); markErr != nil {
			p.logger.Error("failed to record projector failure", "projector", proj.Name(), "aggregate_id", aggregateID, "error", markErr)
		}
		return wrapped
	}

	last := envelopes[len(envelopes)-1]
	return p.checkpoints.Advance(ctx, Checkpoint{
		AggregateID:           aggregateID,
		ProjectorName:         proj.Name(),
		LastProcessedSequence: last.Metadata.Sequence,
		LastProcessedAt:       last.Metadata.Timestamp,
	})
}
