package processmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fern-labour/labour-core/pkg/policy"
)

// Dispatcher routes an effect to the Executor registered for its kind,
// wrapping each named executor in its own gobreaker.CircuitBreaker so a
// wedged provider trips open instead of spinning every alarm tick into a
// hot retry loop. The process manager loop
// stays unaware of breaker state: an open breaker simply surfaces as an
// ExecutorError the ledger retries like any other failure.
type Dispatcher struct {
	executors map[string]Executor
	breakers  map[string]*gobreaker.CircuitBreaker
	selector  func(effect policy.Effect) string
	logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher. selector maps an effect to the name
// of the executor that should carry it out; executors is keyed by that
// same name.
func NewDispatcher(executors map[string]Executor, selector func(effect policy.Effect) string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(executors))
	for name := range executors {
		name := name
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				logger.Warn("executor circuit breaker state change", "executor", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return &Dispatcher{executors: executors, breakers: breakers, selector: selector, logger: logger}
}

// Dispatch carries effect out through its selected executor's circuit
// breaker. An open breaker is reported as an executor error so the ledger
// treats it exactly like any other dispatch failure (Failed, retried next
// alarm).
func (d *Dispatcher) Dispatch(ctx context.Context, effect policy.Effect) error {
	name := d.selector(effect)
	executor, ok := d.executors[name]
	if !ok {
		return wrapExecutorError(name, fmt.Errorf("no executor registered"))
	}
	breaker := d.breakers[name]

	_, err := breaker.Execute(func() (any, error) {
		return nil, executor.Execute(ctx, effect)
	})
	if err != nil {
		return wrapExecutorError(name, err)
	}
	return nil
}

// DefaultSelector picks an executor by effect kind, matching the four
// named executors: queue-publish, render-service,
// dispatch-service, token-generator. High-priority notifications reach
// render-service and dispatch-service through the RenderRequest and
// DispatchRequest effects that PriorityRunner emits; SendNotification
// always goes to queue-publish.
func DefaultSelector(effect policy.Effect) string {
	switch effect.(type) {
	case policy.GenerateSubscriptionToken:
		return "token-generator"
	case policy.SendNotification:
		return "queue-publish"
	case RenderRequest:
		return "render-service"
	case DispatchRequest:
		return "dispatch-service"
	default:
		return "unknown"
	}
}
