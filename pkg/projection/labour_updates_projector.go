package projection

import (
	"context"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// LabourUpdatesProjector maintains the paginated per-labour update feed
// read model.
type LabourUpdatesProjector struct {
	repo readmodel.Repository[readmodel.LabourUpdateReadModel]
}

// NewLabourUpdatesProjector constructs a LabourUpdatesProjector.
func NewLabourUpdatesProjector(repo readmodel.Repository[readmodel.LabourUpdateReadModel]) *LabourUpdatesProjector {
	return &LabourUpdatesProjector{repo: repo}
}

func (p *LabourUpdatesProjector) Name() string { return "labour_updates" }

func (p *LabourUpdatesProjector) ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error {
	for _, envelope := range envelopes {
		e, ok := envelope.Event.(labour.LabourUpdatePosted)
		if !ok {
			continue
		}
		if err := p.repo.Upsert(ctx, aggregateID, readmodel.LabourUpdateReadModel{
			AggregateID: aggregateID,
			UpdateID:    e.UpdateID,
			UpdateType:  e.UpdateType,
			Message:     e.Message,
			PostedBy:    e.PostedBy,
			PostedAt:    e.PostedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}
