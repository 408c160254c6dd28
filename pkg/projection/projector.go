// Package projection implements the projection runtime:
// synchronous and asynchronous Projector implementations, a
// checkpointed ProjectionProcessor that advances them batch by batch, and
// an IncrementalCachedProjector variant that folds through a Redis-backed
// {sequence, model} cache before writing through to Postgres.
package projection

import (
	"context"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// Projector is implemented by every read-model projector, synchronous
// (actor-local store) or asynchronous (cross-entity store) alike — the
// two flavours share this shape and differ only in whether ProjectBatch
// may block on a remote call.
type Projector interface {
	// Name identifies the projector for checkpoint storage; it must be
	// stable across deploys.
	Name() string

	// ProjectBatch applies envelopes — already known to be contiguous and
	// newer than the projector's last checkpoint — to the read model for
	// aggregateID. Implementations must be idempotent over any prefix of
	// envelopes already applied, since a crash between a successful
	// ProjectBatch and its checkpoint write causes the same batch to be
	// replayed.
	ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error
}

// DefaultBatchSize bounds how many events one projection pass fetches.
const DefaultBatchSize = 100
