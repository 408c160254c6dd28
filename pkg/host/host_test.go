package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestFetchSerialisesPerAggregate(t *testing.T) {
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error { return nil }, nil)
	aggregateID := uuid.New()

	var inCritical atomic.Int32
	var maxConcurrent atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Fetch(context.Background(), aggregateID, func(ctx context.Context) error {
				now := inCritical.Add(1)
				if now > maxConcurrent.Load() {
					maxConcurrent.Store(now)
				}
				time.Sleep(5 * time.Millisecond)
				inCritical.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent.Load(), "input gate admits one write-phase at a time")
}

func TestFetchDistinctAggregatesRunConcurrently(t *testing.T) {
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error { return nil }, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = h.Fetch(context.Background(), uuid.New(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = h.Fetch(context.Background(), uuid.New(), func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a different aggregate's fetch must not wait on another actor's gate")
	}
	close(release)
}

func TestFetchSchedulesAlarmOnSuccess(t *testing.T) {
	var alarms atomic.Int32
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error {
		alarms.Add(1)
		return nil
	}, nil)

	require.NoError(t, h.Fetch(context.Background(), uuid.New(), func(ctx context.Context) error { return nil }))
	waitFor(t, time.Second, func() bool { return alarms.Load() == 1 })
}

func TestFetchDoesNotScheduleAlarmOnFailure(t *testing.T) {
	var alarms atomic.Int32
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error {
		alarms.Add(1)
		return nil
	}, nil)

	err := h.Fetch(context.Background(), uuid.New(), func(ctx context.Context) error {
		return errors.New("domain rejection")
	})
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, alarms.Load())
}

func TestAlarmRetriesWithBackoff(t *testing.T) {
	var calls atomic.Int32
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	require.NoError(t, h.Fetch(context.Background(), uuid.New(), func(ctx context.Context) error { return nil }))
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 2 })
}

func TestAlarmIsExclusivePerAggregate(t *testing.T) {
	var inAlarm atomic.Int32
	var maxConcurrent atomic.Int32
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error {
		now := inAlarm.Add(1)
		if now > maxConcurrent.Load() {
			maxConcurrent.Store(now)
		}
		time.Sleep(5 * time.Millisecond)
		inAlarm.Add(-1)
		return nil
	}, nil)

	aggregateID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Alarm(context.Background(), aggregateID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent.Load(), "at most one alarm invocation per actor at a time")
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	h := New(func(ctx context.Context, aggregateID uuid.UUID) error { return nil }, nil)
	aggregateID := uuid.New()

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = h.Fetch(context.Background(), aggregateID, func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Fetch(ctx, aggregateID, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
