package host

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/policy"
	"github.com/fern-labour/labour-core/pkg/queuebus"
)

type capturingNotificationRepo struct {
	lastCmd  notification.Command
	lastMeta eventsourcing.CommandMetadata
	calls    int
}

func (r *capturingNotificationRepo) Load(ctx context.Context, aggregateID uuid.UUID) (*notification.State, bool, error) {
	return nil, false, nil
}

func (r *capturingNotificationRepo) Execute(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error) {
	r.calls++
	r.lastCmd = cmd
	r.lastMeta = meta
	return &notification.State{ID: aggregateID}, nil, nil
}

func noopAlarm(ctx context.Context, aggregateID uuid.UUID) error { return nil }

func TestQueueConsumerRoutesIntentToRequestNotification(t *testing.T) {
	repo := &capturingNotificationRepo{}
	fetch := NewNotificationFetch(repo, nil)
	consumer := NewQueueConsumer(New(noopAlarm, nil), fetch, nil)

	labourID := uuid.New()
	intent := policy.NotificationIntent{
		IdempotencyKey: uuid.New(),
		LabourID:       labourID,
		Context:        policy.SubscriberRecipient{SubscriptionID: uuid.New(), SubscriberID: "bob", Channel: labour.ContactSMS},
		Channel:        labour.ContactSMS,
		Sender:         "alice",
		Payload:        policy.AnnouncementPosted{LabourID: labourID, Message: "nearly there"},
	}
	payload, err := json.Marshal(intent)
	require.NoError(t, err)

	msg := queuebus.Message{
		MessageID:         uuid.New(),
		Variant:           queuebus.VariantService,
		TargetKind:        "notification",
		TargetAggregateID: uuid.New(),
		Payload:           payload,
		IdempotencyKey:    intent.IdempotencyKey,
	}

	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.Equal(t, 1, repo.calls)

	cmd, ok := repo.lastCmd.(notification.RequestNotification)
	require.True(t, ok)
	assert.Equal(t, notification.ChannelSMS, cmd.Channel)
	assert.Equal(t, "bob", cmd.Destination)
	assert.Equal(t, notification.PriorityNormal, cmd.Priority)
	assert.Equal(t, "announcement", cmd.TemplateData["kind"])
	assert.Equal(t, "nearly there", cmd.TemplateData["message"])
	assert.Equal(t, labourID.String(), cmd.TemplateData["labour_id"])

	assert.Equal(t, intent.IdempotencyKey, repo.lastMeta.IdempotencyKey)
	assert.Equal(t, "system", repo.lastMeta.UserID)
}

func TestQueueConsumerRejectsUnknownTargetKind(t *testing.T) {
	repo := &capturingNotificationRepo{}
	consumer := NewQueueConsumer(New(noopAlarm, nil), NewNotificationFetch(repo, nil), nil)

	err := consumer.Handle(context.Background(), queuebus.Message{
		MessageID:  uuid.New(),
		TargetKind: "labour",
	})
	require.Error(t, err)
	assert.Zero(t, repo.calls)
}

func TestQueueConsumerRejectsMalformedPayload(t *testing.T) {
	repo := &capturingNotificationRepo{}
	consumer := NewQueueConsumer(New(noopAlarm, nil), NewNotificationFetch(repo, nil), nil)

	err := consumer.Handle(context.Background(), queuebus.Message{
		MessageID:         uuid.New(),
		TargetKind:        "notification",
		TargetAggregateID: uuid.New(),
		Payload:           json.RawMessage(`{"context_type":`),
	})
	require.ErrorIs(t, err, eventsourcing.ErrDeserialization)
	assert.Zero(t, repo.calls)
}

func TestIntentCommandMetadataIsDeterministic(t *testing.T) {
	aggregateID := uuid.New()
	key := uuid.New()

	a := IntentCommandMetadata(aggregateID, key)
	b := IntentCommandMetadata(aggregateID, key)

	assert.Equal(t, a.CommandID, b.CommandID)
	assert.Equal(t, key, a.IdempotencyKey)
	assert.Equal(t, key, a.CorrelationID)
}
