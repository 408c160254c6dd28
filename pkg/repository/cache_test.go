package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestCachedRepository_PopulatesCacheOnExecute(t *testing.T) {
	store := newFakeStore()
	client := newTestRedis(t)
	repo := New[counterState, incrementCmd, counterEvent](store, counterCodec{}, counterAggregate(), func() uuid.UUID { return uuid.New() })
	cached := NewCached(repo, client, "counter", time.Minute, nil)
	aggregateID := uuid.New()
	ctx := context.Background()

	_, _, err := cached.Execute(ctx, aggregateID, incrementCmd{Delta: 4}, eventsourcing.CommandMetadata{IdempotencyKey: uuid.New(), Timestamp: time.Now()})
	require.NoError(t, err)

	// Delete the underlying log to prove the second Load is served from cache.
	store.mu.Lock()
	delete(store.rows, aggregateID)
	store.mu.Unlock()

	state, ok, err := cached.Load(ctx, aggregateID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, state.Value)
}

func TestCachedRepository_DegradesToReplayOnCacheMiss(t *testing.T) {
	store := newFakeStore()
	client := newTestRedis(t)
	repo := New[counterState, incrementCmd, counterEvent](store, counterCodec{}, counterAggregate(), func() uuid.UUID { return uuid.New() })
	cached := NewCached(repo, client, "counter", time.Minute, nil)
	aggregateID := uuid.New()
	ctx := context.Background()

	_, err := store.Append(ctx, aggregateID, "Created", 1, []byte(`{"Kind":"Created","Delta":7}`), "u", uuid.New())
	require.NoError(t, err)

	state, ok, err := cached.Load(ctx, aggregateID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, state.Value)
}

func TestCachedRepository_NilClientDisablesCaching(t *testing.T) {
	store := newFakeStore()
	repo := New[counterState, incrementCmd, counterEvent](store, counterCodec{}, counterAggregate(), func() uuid.UUID { return uuid.New() })
	cached := NewCached(repo, nil, "counter", time.Minute, nil)
	aggregateID := uuid.New()
	ctx := context.Background()

	_, _, err := cached.Execute(ctx, aggregateID, incrementCmd{Delta: 1}, eventsourcing.CommandMetadata{IdempotencyKey: uuid.New(), Timestamp: time.Now()})
	require.NoError(t, err)

	state, ok, err := cached.Load(ctx, aggregateID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, state.Value)
}

func TestCachedRepository_InvalidatesBeforeExecute(t *testing.T) {
	store := newFakeStore()
	client := newTestRedis(t)
	repo := New[counterState, incrementCmd, counterEvent](store, counterCodec{}, counterAggregate(), func() uuid.UUID { return uuid.New() })
	cached := NewCached(repo, client, "counter", time.Minute, nil)
	aggregateID := uuid.New()
	ctx := context.Background()
	meta := func() eventsourcing.CommandMetadata {
		return eventsourcing.CommandMetadata{IdempotencyKey: uuid.New(), Timestamp: time.Now()}
	}

	_, _, err := cached.Execute(ctx, aggregateID, incrementCmd{Delta: 2}, meta())
	require.NoError(t, err)
	_, _, err = cached.Execute(ctx, aggregateID, incrementCmd{Delta: 3}, meta())
	require.NoError(t, err)

	state, ok, err := cached.Load(ctx, aggregateID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, state.Value)
}
