package processmanager

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/policy"
)

// maxPriorityChainSteps bounds the priority fast-path's re-run loop: the
// chain needs render, dispatch and one more pass that observes SENT, so
// four leaves headroom without risking an infinite loop on a misbehaving
// client.
const maxPriorityChainSteps = 4

// NotificationLoader is the narrow slice of
// repository.Repository[notification.State, notification.Command,
// notification.Event] the priority fast-path needs to observe state after
// each follow-up command.
type NotificationLoader interface {
	Load(ctx context.Context, aggregateID uuid.UUID) (*notification.State, bool, error)
}

// PriorityRunner drives the priority fast-path:
// for a High-priority Notification, render and dispatch are inlined into
// the current alarm tick instead of being enqueued, and each resulting
// event immediately re-enters the loop rather than waiting for the next
// alarm.
type PriorityRunner struct {
	loader     NotificationLoader
	ledger     EffectLedger
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewPriorityRunner constructs a PriorityRunner. dispatcher must route
// RenderRequest and DispatchRequest to InlineRenderExecutor and
// InlineDispatchExecutor respectively (see DefaultSelector) for the chain
// to observe each step's effect on aggregate state.
func NewPriorityRunner(loader NotificationLoader, ledger EffectLedger, dispatcher *Dispatcher, logger *slog.Logger) *PriorityRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriorityRunner{loader: loader, ledger: ledger, dispatcher: dispatcher, logger: logger}
}

// Run advances notificationID through render/dispatch inline as long as
// its current state is High priority and not yet terminal, reloading
// state after each step. A Normal-priority notification, or one already past SENT, is a
// no-op: it is left to the ordinary queue-publish path and the
// asynchronous projection/dispatch flow.
func (r *PriorityRunner) Run(ctx context.Context, notificationID uuid.UUID, sourceSequence int64) error {
	for step := 0; step < maxPriorityChainSteps; step++ {
		state, ok, err := r.loader.Load(ctx, notificationID)
		if err != nil {
			return err
		}
		if !ok || state.Priority != notification.PriorityHigh {
			return nil
		}

		var effect policy.Effect
		switch state.Status {
		case notification.StatusRequested:
			effect = RenderRequest{NotificationID: notificationID, Channel: state.Channel, TemplateData: state.TemplateData}
		case notification.StatusRendered:
			effect = DispatchRequest{NotificationID: notificationID, Channel: state.Channel, Destination: state.Destination, RenderedContent: state.RenderedContent}
		default:
			return nil
		}

		if err := r.runStep(ctx, notificationID, sourceSequence, effect); err != nil {
			return err
		}
	}
	r.logger.Warn("priority fast-path did not reach a terminal step", "notification_id", notificationID)
	return nil
}

func (r *PriorityRunner) runStep(ctx context.Context, notificationID uuid.UUID, sourceSequence int64, effect policy.Effect) error {
	effectType, payload, err := encodeEffect(effect)
	if err != nil {
		return err
	}
	effectID := fastPathEffectID(notificationID, effectType)

	if err := r.ledger.Insert(ctx, notificationID, effectID, effectType, payload, sourceSequence); err != nil {
		return err
	}
	if err := r.ledger.MarkDispatched(ctx, effectID); err != nil {
		return err
	}

	decoded, err := decodeEffect(effectType, payload)
	if err != nil {
		return err
	}
	if err := r.dispatcher.Dispatch(ctx, decoded); err != nil {
		if markErr := r.ledger.MarkFailed(ctx, effectID, err); markErr != nil {
			return markErr
		}
		return err
	}
	return r.ledger.MarkCompleted(ctx, effectID)
}

func fastPathEffectID(notificationID uuid.UUID, effectType string) uuid.UUID {
	return uuid.NewSHA1(notificationID, []byte(effectType))
}
