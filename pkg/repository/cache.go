package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// CachedRepository wraps a Repository with a Redis-backed state cache
// keyed by aggregate id. The cache is cleared before a save
// and repopulated after it succeeds; any Redis error — timeout,
// connection refused, corrupt payload — degrades to a plain replay rather
// than failing the caller, since the event log is always the source of
// truth.
type CachedRepository[S any, C any, E Event] struct {
	repo      *Repository[S, C, E]
	redis     *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCached constructs a CachedRepository. A nil redis client is
// accepted and simply disables caching, so a single call site can serve
// both the "Redis configured" and "Redis not configured" deployments;
// without a client the repository degrades to plain event replay.
func NewCached[S any, C any, E Event](repo *Repository[S, C, E], client *redis.Client, keyPrefix string, ttl time.Duration, logger *slog.Logger) *CachedRepository[S, C, E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository[S, C, E]{repo: repo, redis: client, keyPrefix: keyPrefix, ttl: ttl, logger: logger}
}

// Load returns the cached state when available, otherwise replays the
// event log and repopulates the cache.
func (c *CachedRepository[S, C, E]) Load(ctx context.Context, aggregateID uuid.UUID) (*S, bool, error) {
	if state, ok := c.get(ctx, aggregateID); ok {
		return state, true, nil
	}

	state, ok, err := c.repo.Load(ctx, aggregateID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.set(ctx, aggregateID, state)
	}
	return state, ok, nil
}

// Execute clears the cache entry before delegating to the wrapped
// Repository, then repopulates it with the post-command state on success.
func (c *CachedRepository[S, C, E]) Execute(ctx context.Context, aggregateID uuid.UUID, cmd C, meta eventsourcing.CommandMetadata) (*S, []eventsourcing.EventEnvelope, error) {
	c.invalidate(ctx, aggregateID)

	state, envelopes, err := c.repo.Execute(ctx, aggregateID, cmd, meta)
	if err != nil {
		return nil, nil, err
	}
	c.set(ctx, aggregateID, state)
	return state, envelopes, nil
}

func (c *CachedRepository[S, C, E]) get(ctx context.Context, aggregateID uuid.UUID) (*S, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key(aggregateID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("aggregate cache read failed, degrading to replay", "aggregate_id", aggregateID, "error", err)
		}
		return nil, false
	}
	var state S
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Warn("aggregate cache payload corrupt, degrading to replay", "aggregate_id", aggregateID, "error", err)
		return nil, false
	}
	return &state, true
}

func (c *CachedRepository[S, C, E]) set(ctx context.Context, aggregateID uuid.UUID, state *S) {
	if c.redis == nil || state == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		c.logger.Warn("aggregate cache encode failed", "aggregate_id", aggregateID, "error", err)
		return
	}
	if err := c.redis.Set(ctx, c.key(aggregateID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("aggregate cache write failed", "aggregate_id", aggregateID, "error", err)
	}
}

func (c *CachedRepository[S, C, E]) invalidate(ctx context.Context, aggregateID uuid.UUID) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, c.key(aggregateID)).Err(); err != nil {
		c.logger.Warn("aggregate cache invalidation failed", "aggregate_id", aggregateID, "error", err)
	}
}

func (c *CachedRepository[S, C, E]) key(aggregateID uuid.UUID) string {
	return c.keyPrefix + ":" + aggregateID.String()
}
