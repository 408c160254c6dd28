package host

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/processmanager"
	"github.com/fern-labour/labour-core/pkg/projection"
)

// LabourRepo is the narrow slice of repository.Repository /
// repository.CachedRepository the Labour fetch path needs.
type LabourRepo interface {
	Load(ctx context.Context, aggregateID uuid.UUID) (*labour.State, bool, error)
	Execute(ctx context.Context, aggregateID uuid.UUID, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error)
}

// LabourFetch wires the Labour aggregate's repository and authoriser into
// the host's fetch path.
type LabourFetch struct {
	repo   LabourRepo
	logger *slog.Logger
}

// NewLabourFetch constructs a LabourFetch.
func NewLabourFetch(repo LabourRepo, logger *slog.Logger) *LabourFetch {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabourFetch{repo: repo, logger: logger}
}

// HandleCommand resolves the calling principal against the aggregate's
// current state, authorises action, and — on success — executes cmd. It
// is meant to be called from inside a Host.Fetch closure so the host's
// gate covers the whole operation.
func (f *LabourFetch) HandleCommand(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error) {
	state, _, err := f.repo.Load(ctx, aggregateID)
	if err != nil {
		return nil, nil, err
	}

	principal := authz.Resolve(state, userID)
	if err := authz.Authorise(principal, action); err != nil {
		return nil, nil, err
	}

	return f.repo.Execute(ctx, aggregateID, cmd, meta)
}

// HandleSystemCommand executes cmd as the Internal principal. The
// privileged domain route and in-process system callers (the token
// generator, admin reprocessing) use this path; their identity is
// established by the route they arrive on, not by comparing a user id
// against the aggregate.
func (f *LabourFetch) HandleSystemCommand(ctx context.Context, aggregateID uuid.UUID, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error) {
	if err := authz.Authorise(authz.Internal(), action); err != nil {
		return nil, nil, err
	}
	return f.repo.Execute(ctx, aggregateID, cmd, meta)
}

// Query resolves and authorises a principal for a read-only action without
// executing any command — used by the query routes which still
// flow through the fetch path's authorisation step.
func (f *LabourFetch) Query(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action) (*labour.State, error) {
	state, _, err := f.repo.Load(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	principal := authz.Resolve(state, userID)
	if err := authz.Authorise(principal, action); err != nil {
		return nil, err
	}
	return state, nil
}

// LabourAlarm composes the Labour aggregate's full alarm tick into a single AlarmFunc.
type LabourAlarm struct {
	manager         *processmanager.Manager
	processor       *projection.Processor
	syncProjectors  []projection.Projector
	asyncProjectors []projection.Projector
}

// NewLabourAlarm constructs a LabourAlarm. processor must have been built
// with a decode function that understands Labour events (labour.Codec.Decode).
func NewLabourAlarm(manager *processmanager.Manager, processor *projection.Processor, syncProjectors, asyncProjectors []projection.Projector) *LabourAlarm {
	return &LabourAlarm{manager: manager, processor: processor, syncProjectors: syncProjectors, asyncProjectors: asyncProjectors}
}

// Run implements AlarmFunc.
func (a *LabourAlarm) Run(ctx context.Context, aggregateID uuid.UUID) error {
	if err := a.manager.ProcessNewEvents(ctx, aggregateID); err != nil {
		return err
	}
	if err := a.manager.DispatchPendingEffects(ctx, aggregateID); err != nil {
		return err
	}
	a.processor.ProcessOnce(ctx, aggregateID, a.syncProjectors)
	a.processor.ProcessOnce(ctx, aggregateID, a.asyncProjectors)
	return nil
}

// LabourEventDecoder adapts labour.Codec to projection.EventDecoder.
func LabourEventDecoder(codec labour.Codec) projection.EventDecoder {
	return func(eventType string, eventVersion int, data json.RawMessage) (any, error) {
		return codec.Decode(eventType, eventVersion, data)
	}
}
