package projection

import (
	"context"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// ContractionsProjector maintains the per-labour contraction list read
// model.
type ContractionsProjector struct {
	repo readmodel.Repository[readmodel.ContractionReadModel]
}

// NewContractionsProjector constructs a ContractionsProjector.
func NewContractionsProjector(repo readmodel.Repository[readmodel.ContractionReadModel]) *ContractionsProjector {
	return &ContractionsProjector{repo: repo}
}

func (p *ContractionsProjector) Name() string { return "contractions" }

func (p *ContractionsProjector) ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error {
	for _, envelope := range envelopes {
		switch e := envelope.Event.(type) {
		case labour.ContractionStarted:
			if err := p.repo.Upsert(ctx, aggregateID, readmodel.ContractionReadModel{
				AggregateID:   aggregateID,
				ContractionID: e.ContractionID,
				StartTime:     e.StartTime,
			}); err != nil {
				return err
			}

		case labour.ContractionEnded:
			row, err := p.repo.GetByID(ctx, aggregateID, e.ContractionID)
			if err != nil {
				return err
			}
			t := e.EndTime
			row.EndTime = &t
			row.Intensity = e.Intensity
			if err := p.repo.Upsert(ctx, aggregateID, row); err != nil {
				return err
			}

		case labour.ContractionUpdated:
			if err := p.repo.Upsert(ctx, aggregateID, readmodel.ContractionReadModel{
				AggregateID:   aggregateID,
				ContractionID: e.ContractionID,
				StartTime:     e.StartTime,
				EndTime:       e.EndTime,
				Intensity:     e.Intensity,
			}); err != nil {
				return err
			}

		case labour.ContractionRemoved:
			if err := p.repo.Delete(ctx, aggregateID, e.ContractionID); err != nil {
				return err
			}
		}
	}
	return nil
}
