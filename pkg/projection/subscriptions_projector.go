package projection

import (
	"context"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// SubscriptionsProjector maintains the per-labour subscription list read
// model.
type SubscriptionsProjector struct {
	repo readmodel.Repository[readmodel.SubscriptionReadModel]
}

// NewSubscriptionsProjector constructs a SubscriptionsProjector.
func NewSubscriptionsProjector(repo readmodel.Repository[readmodel.SubscriptionReadModel]) *SubscriptionsProjector {
	return &SubscriptionsProjector{repo: repo}
}

func (p *SubscriptionsProjector) Name() string { return "subscriptions" }

func (p *SubscriptionsProjector) ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error {
	for _, envelope := range envelopes {
		switch e := envelope.Event.(type) {
		case labour.SubscriberRequested:
			if err := p.repo.Upsert(ctx, aggregateID, readmodel.SubscriptionReadModel{
				AggregateID:    aggregateID,
				SubscriptionID: e.SubscriptionID,
				SubscriberID:   e.SubscriberID,
				Role:           e.Role,
				Status:         labour.SubscriptionRequested,
				UpdatedAt:      envelope.Metadata.Timestamp,
			}); err != nil {
				return err
			}

		case labour.SubscriberApproved:
			row, err := p.repo.GetByID(ctx, aggregateID, e.SubscriptionID)
			if err != nil {
				return err
			}
			row.Status = labour.SubscriptionSubscribed
			row.AccessLevel = e.AccessLevel
			row.ContactMethods = e.ContactMethods
			row.UpdatedAt = envelope.Metadata.Timestamp
			if err := p.repo.Upsert(ctx, aggregateID, row); err != nil {
				return err
			}

		case labour.SubscriberBlocked:
			row, err := p.repo.GetByID(ctx, aggregateID, e.SubscriptionID)
			if err != nil {
				return err
			}
			row.Status = labour.SubscriptionBlocked
			row.UpdatedAt = envelope.Metadata.Timestamp
			if err := p.repo.Upsert(ctx, aggregateID, row); err != nil {
				return err
			}

		case labour.SubscriberRemoved:
			if err := p.repo.Delete(ctx, aggregateID, e.SubscriptionID); err != nil {
				return err
			}

		case labour.SubscriberUnsubscribed:
			row, err := p.repo.GetByID(ctx, aggregateID, e.SubscriptionID)
			if err != nil {
				return err
			}
			row.Status = labour.SubscriptionUnsubscribed
			row.UpdatedAt = envelope.Metadata.Timestamp
			if err := p.repo.Upsert(ctx, aggregateID, row); err != nil {
				return err
			}

		case labour.SubscriptionAccessLevelUpdated:
			row, err := p.repo.GetByID(ctx, aggregateID, e.SubscriptionID)
			if err != nil {
				return err
			}
			row.AccessLevel = e.AccessLevel
			row.UpdatedAt = envelope.Metadata.Timestamp
			if err := p.repo.Upsert(ctx, aggregateID, row); err != nil {
				return err
			}
		}
	}
	return nil
}
