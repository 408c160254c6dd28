package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// IncrementalCachedProjector is the "auxiliary cache" projector variant
// of the async projector: it keeps a {sequence, model} pair in Redis, folds only
// the new envelopes onto the cached model, and writes through to the
// backing store only when the fold actually changed the model.
type IncrementalCachedProjector[M any] struct {
	name      string
	redis     *redis.Client
	keyPrefix string
	history   HistoryLoader
	zero      func() M
	fold      func(model M, envelope eventsourcing.EventEnvelope) M
	equal     func(a, b M) bool
	persist   func(ctx context.Context, aggregateID uuid.UUID, model M) error
	logger    *slog.Logger
}

type cachedModel[M any] struct {
	Sequence int64 `json:"sequence"`
	Model    M     `json:"model"`
}

// NewIncrementalCachedProjector constructs an IncrementalCachedProjector.
// history loads the aggregate's full log for the rebuild path; zero
// produces the model's empty value; fold applies one envelope; equal
// decides whether persist must run; persist writes the model through to
// its cross-entity table.
func NewIncrementalCachedProjector[M any](
	name string,
	client *redis.Client,
	keyPrefix string,
	history HistoryLoader,
	zero func() M,
	fold func(model M, envelope eventsourcing.EventEnvelope) M,
	equal func(a, b M) bool,
	persist func(ctx context.Context, aggregateID uuid.UUID, model M) error,
	logger *slog.Logger,
) *IncrementalCachedProjector[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return &IncrementalCachedProjector[M]{
		name: name, redis: client, keyPrefix: keyPrefix, history: history,
		zero: zero, fold: fold, equal: equal, persist: persist, logger: logger,
	}
}

func (p *IncrementalCachedProjector[M]) Name() string { return p.name }

// ProjectBatch folds envelopes onto the cached model, skipping any whose
// sequence is at or below what the cache already reflects (this is what
// makes the projector idempotent over a replayed prefix), writes through
// on change, then updates the cache.
//
// The incremental path is only sound when the cache actually covers every
// event before the batch: the processor's checkpoint has already advanced
// past older events, so folding just the batch from a zero base would
// write through a model missing its creation event. A cold cache (miss,
// Redis failure, no client) or a stale one (cached sequence behind the
// batch's predecessor) therefore rebuilds from the full log instead.
func (p *IncrementalCachedProjector[M]) ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	cached, ok := p.loadCache(ctx, aggregateID)
	if !ok || cached.Sequence < envelopes[0].Metadata.Sequence-1 {
		return p.rebuild(ctx, aggregateID)
	}

	model := cached.Model
	sequence := cached.Sequence
	before := model
	changed := false
	for _, envelope := range envelopes {
		if envelope.Metadata.Sequence <= sequence {
			continue
		}
		model = p.fold(model, envelope)
		sequence = envelope.Metadata.Sequence
		changed = true
	}
	if !changed {
		return nil
	}

	if !p.equal(before, model) {
		if err := p.persist(ctx, aggregateID, model); err != nil {
			return fmt.Errorf("%w: %s: %v", eventsourcing.ErrProjector, p.name, err)
		}
	}

	p.saveCache(ctx, aggregateID, sequence, model)
	return nil
}

// rebuild folds the aggregate's full log from a zero base and writes the
// result through unconditionally. The batch that triggered it is already
// appended, so the history covers it; nothing is lost by ignoring the
// batch argument.
func (p *IncrementalCachedProjector[M]) rebuild(ctx context.Context, aggregateID uuid.UUID) error {
	history, err := p.history(ctx, aggregateID)
	if err != nil {
		return fmt.Errorf("%w: %s: load history: %v", eventsourcing.ErrProjector, p.name, err)
	}
	if len(history) == 0 {
		return nil
	}

	model := p.zero()
	sequence := int64(0)
	for _, envelope := range history {
		model = p.fold(model, envelope)
		sequence = envelope.Metadata.Sequence
	}

	if err := p.persist(ctx, aggregateID, model); err != nil {
		return fmt.Errorf("%w: %s: %v", eventsourcing.ErrProjector, p.name, err)
	}

	p.saveCache(ctx, aggregateID, sequence, model)
	return nil
}

func (p *IncrementalCachedProjector[M]) loadCache(ctx context.Context, aggregateID uuid.UUID) (cachedModel[M], bool) {
	if p.redis == nil {
		return cachedModel[M]{}, false
	}
	data, err := p.redis.Get(ctx, p.key(aggregateID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("incremental projector cache read failed", "projector", p.name, "aggregate_id", aggregateID, "error", err)
		}
		return cachedModel[M]{}, false
	}
	var cached cachedModel[M]
	if err := json.Unmarshal(data, &cached); err != nil {
		p.logger.Warn("incremental projector cache payload corrupt", "projector", p.name, "aggregate_id", aggregateID, "error", err)
		return cachedModel[M]{}, false
	}
	return cached, true
}

func (p *IncrementalCachedProjector[M]) saveCache(ctx context.Context, aggregateID uuid.UUID, sequence int64, model M) {
	if p.redis == nil {
		return
	}
	data, err := json.Marshal(cachedModel[M]{Sequence: sequence, Model: model})
	if err != nil {
		p.logger.Warn("incremental projector cache encode failed", "projector", p.name, "aggregate_id", aggregateID, "error", err)
		return
	}
	if err := p.redis.Set(ctx, p.key(aggregateID), data, 0).Err(); err != nil {
		p.logger.Warn("incremental projector cache write failed", "projector", p.name, "aggregate_id", aggregateID, "error", err)
	}
}

func (p *IncrementalCachedProjector[M]) key(aggregateID uuid.UUID) string {
	return p.keyPrefix + ":" + aggregateID.String()
}
