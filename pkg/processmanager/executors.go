package processmanager

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/policy"
)

// QueuePublisher enqueues a command bus message addressed to the
// Notification aggregate that should eventually handle effect. Host
// implementations back this with pkg/queuebus; the concrete message
// framing lives there so this executor only depends on the narrow
// interface it needs.
type QueuePublisher interface {
	Publish(ctx context.Context, targetKind string, targetAggregateID uuid.UUID, idempotencyKey uuid.UUID, payload any) error
}

// QueuePublishExecutor is the non-priority SendNotification path: it
// enqueues the effect's NotificationIntent addressed to a Notification
// aggregate, to be picked up by a queue consumer that turns it into a
// RequestNotification command and closes the loop back through the
// Notification host's fetch path. The target aggregate
// id is derived deterministically from the intent's idempotency key, so
// re-running the owning policy never addresses two different
// notifications for the same logical send.
type QueuePublishExecutor struct {
	publisher QueuePublisher
}

// NewQueuePublishExecutor constructs a QueuePublishExecutor.
func NewQueuePublishExecutor(publisher QueuePublisher) *QueuePublishExecutor {
	return &QueuePublishExecutor{publisher: publisher}
}

func (e *QueuePublishExecutor) Name() string { return "queue-publish" }

func (e *QueuePublishExecutor) Execute(ctx context.Context, effect policy.Effect) error {
	send, ok := effect.(policy.SendNotification)
	if !ok {
		return fmt.Errorf("queue-publish executor received unsupported effect %T", effect)
	}
	notificationID := DeriveNotificationAggregateID(send.Intent.IdempotencyKey)
	return e.publisher.Publish(ctx, "notification", notificationID, send.Intent.IdempotencyKey, send.Intent)
}

// DeriveNotificationAggregateID derives a stable Notification aggregate id
// from a SendNotification intent's idempotency key, so the queue-publish
// executor and its consumer agree on the aggregate without a round trip.
func DeriveNotificationAggregateID(idempotencyKey uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(idempotencyKey, []byte("notification-aggregate"))
}

// TokenGenerator mints a subscription token and stores it against the
// labour it was generated for.
type TokenGenerator interface {
	// Generate returns a freshly minted token string.
	Generate(ctx context.Context, labourID uuid.UUID) (string, error)
	// Store issues SetSubscriptionToken back to the owning labour
	// aggregate so the token becomes part of its durable state.
	Store(ctx context.Context, labourID uuid.UUID, token string, idempotencyKey uuid.UUID) error
}

// TokenGeneratorExecutor handles GenerateSubscriptionToken effects.
type TokenGeneratorExecutor struct {
	generator TokenGenerator
}

// NewTokenGeneratorExecutor constructs a TokenGeneratorExecutor.
func NewTokenGeneratorExecutor(generator TokenGenerator) *TokenGeneratorExecutor {
	return &TokenGeneratorExecutor{generator: generator}
}

func (e *TokenGeneratorExecutor) Name() string { return "token-generator" }

func (e *TokenGeneratorExecutor) Execute(ctx context.Context, effect policy.Effect) error {
	gen, ok := effect.(policy.GenerateSubscriptionToken)
	if !ok {
		return fmt.Errorf("token-generator executor received unsupported effect %T", effect)
	}
	token, err := e.generator.Generate(ctx, gen.LabourID)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	return e.generator.Store(ctx, gen.LabourID, token, gen.IdempotencyKey)
}

// RenderClient renders a notification's template data into its final
// body. The template engine itself is out of scope; this is the
// thin seam an external gateway implements.
type RenderClient interface {
	Render(ctx context.Context, channel notification.Channel, templateData map[string]string) (renderedContent string, err error)
}

// DispatchClient hands rendered content to a channel provider and returns
// the provider's external id. Provider SDKs are out of scope.
type DispatchClient interface {
	Dispatch(ctx context.Context, channel notification.Channel, destination string, renderedContent string) (externalID string, err error)
}

// NotificationCommander is the narrow slice of
// repository.Repository[notification.State, notification.Command,
// notification.Event] the priority fast-path needs to feed follow-up
// commands back into a Notification aggregate within the same alarm tick.
type NotificationCommander interface {
	Execute(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error)
}

// RenderRequest and DispatchRequest are the priority fast-path's own
// effect variants — distinct from policy.Effect since they are produced
// by the Notification aggregate's own process manager step, not the
// Labour policy registry.
type RenderRequest struct {
	NotificationID uuid.UUID
	Channel        notification.Channel
	TemplateData   map[string]string
}

func (RenderRequest) EffectType() string { return "RenderRequest" }

// DispatchRequest carries rendered content to the dispatch step.
type DispatchRequest struct {
	NotificationID  uuid.UUID
	Channel         notification.Channel
	Destination     string
	RenderedContent string
}

func (DispatchRequest) EffectType() string { return "DispatchRequest" }

// InlineRenderExecutor implements the priority fast-path's render step
//: instead of enqueuing, it calls the render client
// directly and feeds the result back as a StoreRenderedContent command on
// the same Notification aggregate within the current alarm tick.
type InlineRenderExecutor struct {
	render    RenderClient
	commander NotificationCommander
	meta      func(notificationID uuid.UUID) eventsourcing.CommandMetadata
}

// NewInlineRenderExecutor constructs an InlineRenderExecutor.
func NewInlineRenderExecutor(render RenderClient, commander NotificationCommander, meta func(uuid.UUID) eventsourcing.CommandMetadata) *InlineRenderExecutor {
	return &InlineRenderExecutor{render: render, commander: commander, meta: meta}
}

func (e *InlineRenderExecutor) Name() string { return "render-service" }

func (e *InlineRenderExecutor) Execute(ctx context.Context, effect policy.Effect) error {
	req, ok := effect.(RenderRequest)
	if !ok {
		return fmt.Errorf("render-service executor received unsupported effect %T", effect)
	}
	content, err := e.render.Render(ctx, req.Channel, req.TemplateData)
	if err != nil {
		return fmt.Errorf("render notification %s: %w", req.NotificationID, err)
	}
	_, _, err = e.commander.Execute(ctx, req.NotificationID, notification.StoreRenderedContent{
		Channel:         req.Channel,
		RenderedContent: content,
	}, e.meta(req.NotificationID))
	return err
}

// InlineDispatchExecutor implements the priority fast-path's dispatch
// step: it calls the dispatch client directly and feeds the result back
// as a MarkAsDispatched command.
type InlineDispatchExecutor struct {
	dispatch  DispatchClient
	commander NotificationCommander
	meta      func(notificationID uuid.UUID) eventsourcing.CommandMetadata
}

// NewInlineDispatchExecutor constructs an InlineDispatchExecutor.
func NewInlineDispatchExecutor(dispatch DispatchClient, commander NotificationCommander, meta func(uuid.UUID) eventsourcing.CommandMetadata) *InlineDispatchExecutor {
	return &InlineDispatchExecutor{dispatch: dispatch, commander: commander, meta: meta}
}

func (e *InlineDispatchExecutor) Name() string { return "dispatch-service" }

func (e *InlineDispatchExecutor) Execute(ctx context.Context, effect policy.Effect) error {
	req, ok := effect.(DispatchRequest)
	if !ok {
		return fmt.Errorf("dispatch-service executor received unsupported effect %T", effect)
	}
	externalID, err := e.dispatch.Dispatch(ctx, req.Channel, req.Destination, req.RenderedContent)
	if err != nil {
		return fmt.Errorf("dispatch notification %s: %w", req.NotificationID, err)
	}
	_, _, err = e.commander.Execute(ctx, req.NotificationID, notification.MarkAsDispatched{
		ExternalID: externalID,
	}, e.meta(req.NotificationID))
	return err
}
