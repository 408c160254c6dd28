// Package host implements the single-writer entity host: each
// aggregate id is modelled as an in-process actor reachable
// through a fetch path (synchronous command/query execution) and an alarm
// path (asynchronous fan-out), with gates that serialise both per actor.
// Go has no durable-object runtime, so the host is a supervisor over
// goroutine-per-actor-on-demand rather than an external scheduler.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxAlarmAttempts bounds the host's own retry loop for a failed alarm.
// Beyond this the failure is logged and left for the next natural trigger
// (the next Fetch on the aggregate, or the queue consumer's own retry) —
// there is no external scheduler to re-deliver a cancelled alarm the way
// an external scheduler would provide in a durable-object runtime.
const maxAlarmAttempts = 5

// alarmBaseBackoff is the first retry delay; each subsequent attempt
// doubles it.
const alarmBaseBackoff = 200 * time.Millisecond

// AlarmFunc runs one full alarm tick for aggregateID: process-manager
// event reaction, synchronous projection, asynchronous projection, in
// that order. It is supplied by the caller because its steps
// differ per aggregate kind (only the Labour host has a policy-driven
// process manager; the Notification host instead runs the priority
// fast-path runner before its own projectors).
type AlarmFunc func(ctx context.Context, aggregateID uuid.UUID) error

// actor is the per-aggregate gate pair: gate
// serialises the write-phase of concurrent Fetch calls against the same
// aggregate (the input gate); alarmMu ensures at most one alarm
// invocation runs per actor at a time.
type actor struct {
	gate    chan struct{}
	alarmMu sync.Mutex
}

func newActor() *actor {
	a := &actor{gate: make(chan struct{}, 1)}
	a.gate <- struct{}{}
	return a
}

// Host supervises one aggregate kind's actors. It holds no event-store or
// repository reference itself — Fetch's caller closure already carries
// whatever repository/authoriser it needs; the host only owns the
// concurrency gates and schedules the alarm.
type Host struct {
	actors sync.Map // uuid.UUID -> *actor
	alarm  AlarmFunc
	logger *slog.Logger
}

// New constructs a Host. alarm runs the full alarm tick for one aggregate;
// it is run in its own goroutine after every successful Fetch (at delay
// zero, retried with backoff on failure) and may also be invoked directly — e.g. by a queue
// consumer reprocessing an aggregate it just dispatched a message to.
func New(alarm AlarmFunc, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{alarm: alarm, logger: logger}
}

func (h *Host) actorFor(aggregateID uuid.UUID) *actor {
	if existing, ok := h.actors.Load(aggregateID); ok {
		return existing.(*actor)
	}
	created, _ := h.actors.LoadOrStore(aggregateID, newActor())
	return created.(*actor)
}

// Fetch is the entity's fetch path: it acquires aggregateID's input
// gate (so a second concurrent fetch for the same aggregate waits for the
// first's write-phase to finish — the output gate withholding a response
// until writes are durable is satisfied because write completes
// synchronously inside fn), runs fn (load → handle → append, wholly
// synchronous), then schedules the alarm at delay
// zero before returning fn's result.
func (h *Host) Fetch(ctx context.Context, aggregateID uuid.UUID, fn func(ctx context.Context) error) error {
	a := h.actorFor(aggregateID)

	select {
	case <-a.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Released via defer so a panicking fn cannot leak the gate and wedge
	// the actor.
	defer func() { a.gate <- struct{}{} }()

	if err := fn(ctx); err != nil {
		return err
	}

	h.scheduleAlarm(aggregateID)
	return nil
}

// scheduleAlarm runs the alarm in its own goroutine, detached from the
// fetch request's context (the alarm's own lifetime outlives the HTTP
// request that triggered it), retrying with exponential backoff on
// failure up to maxAlarmAttempts.
func (h *Host) scheduleAlarm(aggregateID uuid.UUID) {
	go func() {
		ctx := context.Background()
		for attempt := 0; attempt < maxAlarmAttempts; attempt++ {
			if err := h.Alarm(ctx, aggregateID); err != nil {
				h.logger.Warn("alarm tick failed, retrying", "aggregate_id", aggregateID, "attempt", attempt+1, "error", err)
				delay := time.Duration(float64(alarmBaseBackoff) * math.Pow(2, float64(attempt)))
				time.Sleep(delay)
				continue
			}
			return
		}
		h.logger.Error("alarm tick exhausted retries, leaving for next trigger", "aggregate_id", aggregateID, "attempts", maxAlarmAttempts)
	}()
}

// Alarm runs aggregateID's alarm tick exclusively with respect to any
// other alarm invocation for the same aggregate. Exposed directly so a queue
// consumer or an operator's manual reprocessing endpoint can invoke it
// synchronously, independent of Fetch's own scheduling.
func (h *Host) Alarm(ctx context.Context, aggregateID uuid.UUID) error {
	a := h.actorFor(aggregateID)
	a.alarmMu.Lock()
	defer a.alarmMu.Unlock()

	if err := h.alarm(ctx, aggregateID); err != nil {
		return fmt.Errorf("alarm tick for %s: %w", aggregateID, err)
	}
	return nil
}
