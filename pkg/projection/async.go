package projection

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// GlobalPersister is the narrow slice of readmodel.PostgresGlobalStore the
// three async projectors below write through to. Declared as an interface
// so tests can substitute an in-memory double without a Postgres fixture.
type GlobalPersister interface {
	PersistLabourStatus(ctx context.Context, labourID uuid.UUID, model readmodel.LabourStatusReadModel) error
	PersistSubscriptionStatus(ctx context.Context, subscriptionID uuid.UUID, model readmodel.SubscriptionStatusReadModel) error
	PersistNotificationDetail(ctx context.Context, notificationID uuid.UUID, model readmodel.NotificationDetailReadModel) error
}

// NewLabourStatusProjector constructs the async "labour_status" projector:
// a Labour aggregate's alarm tick folds its own new envelopes onto the
// cached LabourStatusReadModel and writes through on change.
func NewLabourStatusProjector(client *redis.Client, history HistoryLoader, store GlobalPersister, logger *slog.Logger) *IncrementalCachedProjector[readmodel.LabourStatusReadModel] {
	return NewIncrementalCachedProjector(
		"labour_status",
		client,
		"projector:labour_status",
		history,
		func() readmodel.LabourStatusReadModel { return readmodel.LabourStatusReadModel{} },
		func(model readmodel.LabourStatusReadModel, envelope eventsourcing.EventEnvelope) readmodel.LabourStatusReadModel {
			switch e := envelope.Event.(type) {
			case labour.LabourPlanned:
				model.LabourID = envelope.Metadata.AggregateID
				model.MotherID = e.MotherID
				model.Phase = labour.PhasePlanned
			case labour.LabourPhaseChanged:
				model.Phase = e.Phase
			case labour.LabourCompleted:
				model.Phase = labour.PhaseComplete
			}
			model.UpdatedAt = envelope.Metadata.Timestamp
			return model
		},
		func(a, b readmodel.LabourStatusReadModel) bool {
			return a.Phase == b.Phase && a.MotherID == b.MotherID
		},
		func(ctx context.Context, aggregateID uuid.UUID, model readmodel.LabourStatusReadModel) error {
			return store.PersistLabourStatus(ctx, aggregateID, model)
		},
		logger,
	)
}

// subscriptionStatusModel is the per-subscription fold state: the cached
// model for one Labour aggregate covers every subscription on it, keyed by
// subscription id, since the aggregate kind (Labour) is what produces the
// source events and the persisted table is keyed per-subscription.
type subscriptionStatusModel struct {
	Subscriptions map[uuid.UUID]readmodel.SubscriptionStatusReadModel
}

// NewSubscriptionStatusProjector constructs the async "subscription_status"
// projector, folding a Labour's subscription lifecycle events
// into one row per subscription in the global table.
func NewSubscriptionStatusProjector(client *redis.Client, history HistoryLoader, store GlobalPersister, logger *slog.Logger) *IncrementalCachedProjector[subscriptionStatusModel] {
	return NewIncrementalCachedProjector(
		"subscription_status",
		client,
		"projector:subscription_status",
		history,
		func() subscriptionStatusModel {
			return subscriptionStatusModel{Subscriptions: map[uuid.UUID]readmodel.SubscriptionStatusReadModel{}}
		},
		func(model subscriptionStatusModel, envelope eventsourcing.EventEnvelope) subscriptionStatusModel {
			labourID := envelope.Metadata.AggregateID
			switch e := envelope.Event.(type) {
			case labour.SubscriberRequested:
				model.Subscriptions[e.SubscriptionID] = readmodel.SubscriptionStatusReadModel{
					SubscriberID: e.SubscriberID, SubscriptionID: e.SubscriptionID,
					LabourID: labourID, Status: labour.SubscriptionRequested,
					UpdatedAt: envelope.Metadata.Timestamp,
				}
			case labour.SubscriberApproved:
				if row, ok := model.Subscriptions[e.SubscriptionID]; ok {
					row.Status = labour.SubscriptionSubscribed
					row.UpdatedAt = envelope.Metadata.Timestamp
					model.Subscriptions[e.SubscriptionID] = row
				}
			case labour.SubscriberBlocked:
				if row, ok := model.Subscriptions[e.SubscriptionID]; ok {
					row.Status = labour.SubscriptionBlocked
					row.UpdatedAt = envelope.Metadata.Timestamp
					model.Subscriptions[e.SubscriptionID] = row
				}
			case labour.SubscriberRemoved:
				if row, ok := model.Subscriptions[e.SubscriptionID]; ok {
					row.Status = labour.SubscriptionRemoved
					row.UpdatedAt = envelope.Metadata.Timestamp
					model.Subscriptions[e.SubscriptionID] = row
				}
			case labour.SubscriberUnsubscribed:
				if row, ok := model.Subscriptions[e.SubscriptionID]; ok {
					row.Status = labour.SubscriptionUnsubscribed
					row.UpdatedAt = envelope.Metadata.Timestamp
					model.Subscriptions[e.SubscriptionID] = row
				}
			}
			return model
		},
		func(a, b subscriptionStatusModel) bool {
			if len(a.Subscriptions) != len(b.Subscriptions) {
				return false
			}
			for id, av := range a.Subscriptions {
				bv, ok := b.Subscriptions[id]
				if !ok || av.Status != bv.Status {
					return false
				}
			}
			return true
		},
		func(ctx context.Context, aggregateID uuid.UUID, model subscriptionStatusModel) error {
			for id, row := range model.Subscriptions {
				if err := store.PersistSubscriptionStatus(ctx, id, row); err != nil {
					return err
				}
			}
			return nil
		},
		logger,
	)
}

// notificationDetailModel tracks the fields that feed
// NotificationDetailReadModel, since Notification events only carry deltas
// (e.g. Failed carries just a reason) and the projector must remember
// channel/destination from the creation event.
type notificationDetailModel struct {
	Channel       string
	Destination   string
	Status        string
	Priority      string
	FailureReason string
	UpdatedAt     time.Time
}

// NewNotificationDetailProjector constructs the async "notification_detail"
// projector, folding one Notification aggregate's own event log
// into its single global status row.
func NewNotificationDetailProjector(client *redis.Client, history HistoryLoader, store GlobalPersister, logger *slog.Logger) *IncrementalCachedProjector[notificationDetailModel] {
	return NewIncrementalCachedProjector(
		"notification_detail",
		client,
		"projector:notification_detail",
		history,
		func() notificationDetailModel { return notificationDetailModel{} },
		func(model notificationDetailModel, envelope eventsourcing.EventEnvelope) notificationDetailModel {
			switch e := envelope.Event.(type) {
			case notification.NotificationRequested:
				model.Channel = string(e.Channel)
				model.Destination = e.Destination
				model.Priority = string(e.Priority)
				model.Status = string(notification.StatusRequested)
			case notification.ContentRendered:
				model.Status = string(notification.StatusRendered)
			case notification.Dispatched:
				model.Status = string(notification.StatusSent)
			case notification.Delivered:
				model.Status = string(notification.StatusDelivered)
			case notification.Failed:
				model.Status = string(notification.StatusFailed)
				model.FailureReason = e.Reason
			case notification.RetryRequeued:
				model.Status = string(notification.StatusRequested)
				model.FailureReason = ""
			}
			model.UpdatedAt = envelope.Metadata.Timestamp
			return model
		},
		func(a, b notificationDetailModel) bool {
			return a.Channel == b.Channel && a.Destination == b.Destination && a.Status == b.Status &&
				a.Priority == b.Priority && a.FailureReason == b.FailureReason
		},
		func(ctx context.Context, aggregateID uuid.UUID, model notificationDetailModel) error {
			return store.PersistNotificationDetail(ctx, aggregateID, readmodel.NotificationDetailReadModel{
				NotificationID: aggregateID,
				Channel:        model.Channel,
				Destination:    model.Destination,
				Status:         model.Status,
				Priority:       model.Priority,
				FailureReason:  model.FailureReason,
				UpdatedAt:      model.UpdatedAt,
			})
		},
		logger,
	)
}
