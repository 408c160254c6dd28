// Package readmodel holds the query-side projections written by the
// projection processor and read back by the query routes.
// Local models are scoped to a single labour aggregate and keyed by their
// own id within it; global models are cross-entity and keyed by their own
// primary id, written through by the async projectors in pkg/projection.
package readmodel

import (
	"context"

	"github.com/google/uuid"
)

// SingleItemRepository is the read-side contract for a read model that has
// at most one row per aggregate (the canonical Labour record). It mirrors
// the three operations the original single-item repository trait exposes:
// get, overwrite and delete — there is no get_by_id because the aggregate
// id already identifies the one row.
type SingleItemRepository[M any] interface {
	Get(ctx context.Context, aggregateID uuid.UUID) (M, error)
	Overwrite(ctx context.Context, aggregateID uuid.UUID, model M) error
	Delete(ctx context.Context, aggregateID uuid.UUID) error
}

// Repository is the read-side contract for a read model with many rows per
// scope (contractions, labour updates, subscriptions within one labour).
// The async projections' global rows go through PostgresGlobalStore
// instead. This is the generic many-row counterpart of SingleItemRepository.
type Repository[M any] interface {
	GetByID(ctx context.Context, scope uuid.UUID, id uuid.UUID) (M, error)
	Get(ctx context.Context, scope uuid.UUID) ([]M, error)
	Upsert(ctx context.Context, scope uuid.UUID, model M) error
	Delete(ctx context.Context, scope uuid.UUID, id uuid.UUID) error
}
