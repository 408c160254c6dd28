package queuebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Consumer routes a claimed Message back into the owning entity's fetch
// path. Host wiring supplies the concrete
// implementation; this package only knows how to claim and retry.
type Consumer interface {
	Handle(ctx context.Context, msg Message) error
}

// ErrNoMessagesAvailable signals an empty poll, distinct from a real
// failure, so the worker loop can back off quietly instead of logging an
// error every tick.
var ErrNoMessagesAvailable = errors.New("queuebus: no messages available")

// WorkerPool runs WorkerCount workers, each independently polling Store and
// routing claimed messages through Consumer. It is the production
// implementation of the command bus's consumer side.
type WorkerPool struct {
	store    Store
	consumer Consumer
	pollBase time.Duration
	jitter   time.Duration
	batch    int
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorkerPool constructs a WorkerPool. batch bounds how many messages a
// single worker claims per tick.
func NewWorkerPool(store Store, consumer Consumer, workerCount int, pollBase, jitter time.Duration, batch int, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if batch < 1 {
		batch = 1
	}
	return &WorkerPool{
		store:    store,
		consumer: consumer,
		pollBase: pollBase,
		jitter:   jitter,
		batch:    batch,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount polling goroutines, each named wN.
func (p *WorkerPool) Start(ctx context.Context, workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		id := fmt.Sprintf("w%d", i)
		go p.run(ctx, id)
	}
}

// Stop signals every worker to stop and waits for them to drain. Safe to
// call multiple times.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, id string) {
	defer p.wg.Done()
	log := p.logger.With("worker_id", id)
	log.Info("queuebus worker started")

	for {
		select {
		case <-p.stopCh:
			log.Info("queuebus worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, queuebus worker shutting down")
			return
		default:
			if err := p.pollAndProcess(ctx, log); err != nil {
				if errors.Is(err, ErrNoMessagesAvailable) {
					p.sleep(p.pollInterval())
					continue
				}
				log.Error("error processing queue message", "error", err)
				p.sleep(time.Second)
			}
		}
	}
}

func (p *WorkerPool) sleep(d time.Duration) {
	select {
	case <-p.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims up to the configured batch size and hands each
// claimed message to the consumer, marking it completed or failed
// according to the consumer's result.
func (p *WorkerPool) pollAndProcess(ctx context.Context, log *slog.Logger) error {
	claimed, err := p.store.Claim(ctx, p.batch)
	if err != nil {
		return fmt.Errorf("claim messages: %w", err)
	}
	if len(claimed) == 0 {
		return ErrNoMessagesAvailable
	}

	for _, msg := range claimed {
		msgLog := log.With("message_id", msg.MessageID, "target_kind", msg.TargetKind, "target_aggregate_id", msg.TargetAggregateID)
		if err := p.consumer.Handle(ctx, msg); err != nil {
			msgLog.Warn("message handling failed", "error", err, "attempts", msg.Attempts)
			if markErr := p.store.MarkFailed(ctx, msg.MessageID); markErr != nil {
				msgLog.Error("failed to mark message failed", "error", markErr)
			}
			continue
		}
		if err := p.store.MarkCompleted(ctx, msg.MessageID); err != nil {
			msgLog.Error("failed to mark message completed", "error", err)
		}
	}
	return nil
}

// pollInterval returns a jittered sleep duration in
// [base-jitter, base+jitter].
func (p *WorkerPool) pollInterval() time.Duration {
	if p.jitter <= 0 {
		return p.pollBase
	}
	offset := time.Duration(rand.Int63n(int64(2 * p.jitter)))
	return p.pollBase - p.jitter + offset
}
