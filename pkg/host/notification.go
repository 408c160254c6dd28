package host

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/processmanager"
	"github.com/fern-labour/labour-core/pkg/projection"
)

// NotificationRepo is the narrow slice of repository.Repository /
// repository.CachedRepository the Notification fetch path needs.
type NotificationRepo interface {
	Load(ctx context.Context, aggregateID uuid.UUID) (*notification.State, bool, error)
	Execute(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error)
}

// NotificationFetch wires the Notification aggregate's repository into the
// host's fetch path. Every caller reaching a Notification aggregate is
// already an internal system actor (the queue consumer, an inline
// executor's follow-up command, or the delivery webhook); the
// principal/capability model is defined only over the Labour aggregate, so
// there is no authorisation step here to mirror.
type NotificationFetch struct {
	repo   NotificationRepo
	logger *slog.Logger
}

// NewNotificationFetch constructs a NotificationFetch.
func NewNotificationFetch(repo NotificationRepo, logger *slog.Logger) *NotificationFetch {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationFetch{repo: repo, logger: logger}
}

// HandleCommand executes cmd against aggregateID.
func (f *NotificationFetch) HandleCommand(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error) {
	return f.repo.Execute(ctx, aggregateID, cmd, meta)
}

// Execute implements processmanager.NotificationCommander, letting the
// priority fast-path's inline executors feed follow-up commands back into
// this same repository.
func (f *NotificationFetch) Execute(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error) {
	return f.repo.Execute(ctx, aggregateID, cmd, meta)
}

// NotificationAlarm composes the Notification aggregate's alarm tick: the
// priority fast-path runs first so a High-priority notification's render
// and dispatch are inlined before anything else observes stale state,
// then the async notification_detail projector runs.
type NotificationAlarm struct {
	priorityRunner  *processmanager.PriorityRunner
	processor       *projection.Processor
	asyncProjectors []projection.Projector
	store           eventsourcing.EventStore
}

// NewNotificationAlarm constructs a NotificationAlarm.
func NewNotificationAlarm(priorityRunner *processmanager.PriorityRunner, processor *projection.Processor, asyncProjectors []projection.Projector, store eventsourcing.EventStore) *NotificationAlarm {
	return &NotificationAlarm{priorityRunner: priorityRunner, processor: processor, asyncProjectors: asyncProjectors, store: store}
}

// Run implements AlarmFunc.
func (a *NotificationAlarm) Run(ctx context.Context, aggregateID uuid.UUID) error {
	latest, err := a.store.Load(ctx, aggregateID)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return nil
	}
	sourceSequence := latest[len(latest)-1].Sequence

	if err := a.priorityRunner.Run(ctx, aggregateID, sourceSequence); err != nil {
		return err
	}

	a.processor.ProcessOnce(ctx, aggregateID, a.asyncProjectors)
	return nil
}

// NotificationEventDecoder adapts notification.Codec to projection.EventDecoder.
func NotificationEventDecoder(codec notification.Codec) projection.EventDecoder {
	return func(eventType string, eventVersion int, data json.RawMessage) (any, error) {
		return codec.Decode(eventType, eventVersion, data)
	}
}
