package processmanager

import (
	"context"
	"fmt"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/policy"
)

// Executor carries one effect out to an external service.
// Implementations are expected to be idempotent at the target — the
// intent's idempotency key is the thing the target honours, not anything
// the executor does locally.
type Executor interface {
	// Name identifies the executor for circuit-breaker and metrics
	// labelling; it must be stable across deploys.
	Name() string

	// Execute carries out effect. A non-nil error is wrapped in
	// ErrExecutor by the caller and drives the ledger's retry/backoff.
	Execute(ctx context.Context, effect policy.Effect) error
}

// wrapExecutorError tags err as an ExecutorError disposition
// without losing the underlying cause.
func wrapExecutorError(executorName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", eventsourcing.ErrExecutor, executorName, err)
}
