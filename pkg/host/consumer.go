package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/policy"
	"github.com/fern-labour/labour-core/pkg/queuebus"
)

// QueueConsumer routes claimed queue messages back into the owning
// entity's fetch path. The only
// message kind the core itself enqueues is a SendNotification intent
// addressed to a Notification aggregate; anything else is a routing error
// surfaced to the worker pool so the message is retried and eventually
// dead-lettered.
type QueueConsumer struct {
	notifications *Host
	fetch         *NotificationFetch
	logger        *slog.Logger
}

// NewQueueConsumer constructs a QueueConsumer.
func NewQueueConsumer(notifications *Host, fetch *NotificationFetch, logger *slog.Logger) *QueueConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueConsumer{notifications: notifications, fetch: fetch, logger: logger}
}

// Handle implements queuebus.Consumer. The message's idempotency key is
// the intent's own key: a redelivered message re-executes
// RequestNotification with the same key, which the aggregate repository's
// per-event idempotency derivation turns into a no-op append.
func (c *QueueConsumer) Handle(ctx context.Context, msg queuebus.Message) error {
	if msg.TargetKind != "notification" {
		return fmt.Errorf("unroutable queue message %s: unknown target kind %q", msg.MessageID, msg.TargetKind)
	}

	var intent policy.NotificationIntent
	if err := json.Unmarshal(msg.Payload, &intent); err != nil {
		return fmt.Errorf("%w: decode notification intent from message %s: %v", eventsourcing.ErrDeserialization, msg.MessageID, err)
	}

	cmd := notification.RequestNotification{
		Channel:      notification.Channel(intent.Channel),
		Destination:  destinationFor(intent),
		TemplateData: templateDataFor(intent),
		Priority:     notification.PriorityNormal,
	}

	return c.notifications.Fetch(ctx, msg.TargetAggregateID, func(ctx context.Context) error {
		_, _, err := c.fetch.HandleCommand(ctx, msg.TargetAggregateID, cmd, IntentCommandMetadata(msg.TargetAggregateID, msg.IdempotencyKey))
		return err
	})
}

// IntentCommandMetadata builds the command metadata for a system-originated
// command carrying an effect intent's idempotency key. Correlation and
// causation both trace back to the intent so the whole chain — policy,
// ledger row, queue message, notification events — shares one correlation
// id.
func IntentCommandMetadata(aggregateID, idempotencyKey uuid.UUID) eventsourcing.CommandMetadata {
	return eventsourcing.CommandMetadata{
		AggregateID:    aggregateID,
		CommandID:      uuid.NewSHA1(idempotencyKey, []byte("command")),
		CorrelationID:  idempotencyKey,
		CausationID:    idempotencyKey,
		UserID:         "system",
		IdempotencyKey: idempotencyKey,
		Timestamp:      eventsourcing.SystemClock(),
	}
}

// destinationFor resolves the intent's recipient context to the
// destination handle the external gateway will deliver to. Address lookup
// for subscriber/mother ids happens in the gateway (provider SDKs are out
// of scope here); only a bare EmailRecipient already carries its
// address.
func destinationFor(intent policy.NotificationIntent) string {
	switch recipient := intent.Context.(type) {
	case policy.EmailRecipient:
		return recipient.Address
	case policy.SubscriberRecipient:
		return recipient.SubscriberID
	case policy.LabourOwnerRecipient:
		return recipient.MotherID
	default:
		return ""
	}
}

// templateDataFor flattens the intent's typed payload into the string map
// the Notification aggregate stores and the render service consumes.
func templateDataFor(intent policy.NotificationIntent) map[string]string {
	data := map[string]string{
		"kind":      intent.Payload.NotificationKind(),
		"labour_id": intent.LabourID.String(),
		"sender":    intent.Sender,
	}
	switch payload := intent.Payload.(type) {
	case policy.LabourCompleted:
		if payload.Notes != "" {
			data["notes"] = payload.Notes
		}
	case policy.AnnouncementPosted:
		data["message"] = payload.Message
	case policy.SubscriberRequested:
		data["requester_id"] = payload.RequesterID
		data["subscription_id"] = payload.SubscriptionID.String()
	case policy.LabourInvite:
		data["token"] = payload.Token
	}
	return data
}
