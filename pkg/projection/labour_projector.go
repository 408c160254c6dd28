package projection

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// LabourProjector maintains the canonical single-row labour read model.
// It runs inside the actor's own
// alarm step and never suspends — readmodel.SingleItemRepository's
// Postgres implementation is backed by the same local store as the event
// log.
type LabourProjector struct {
	repo readmodel.SingleItemRepository[readmodel.LabourReadModel]
}

// NewLabourProjector constructs a LabourProjector.
func NewLabourProjector(repo readmodel.SingleItemRepository[readmodel.LabourReadModel]) *LabourProjector {
	return &LabourProjector{repo: repo}
}

func (p *LabourProjector) Name() string { return "labour" }

func (p *LabourProjector) ProjectBatch(ctx context.Context, aggregateID uuid.UUID, envelopes []eventsourcing.EventEnvelope) error {
	model, err := p.repo.Get(ctx, aggregateID)
	exists := true
	if err != nil {
		if !eventsourcing.IsNotFound(err) {
			return err
		}
		exists = false
	}

	for _, envelope := range envelopes {
		switch e := envelope.Event.(type) {
		case labour.LabourPlanned:
			model = readmodel.NewLabourReadModel(aggregateID, e.MotherID, e.MotherName, e.FirstLabour, e.DueDate, envelope.Metadata.Timestamp)
			exists = true

		case labour.LabourBegun:
			t := e.StartTime
			model.StartedAt = &t
			model.UpdatedAt = envelope.Metadata.Timestamp

		case labour.LabourPhaseChanged:
			model.Phase = e.Phase
			model.UpdatedAt = envelope.Metadata.Timestamp

		case labour.LabourCompleted:
			t := e.CompletedAt
			model.CompletedAt = &t
			model.UpdatedAt = envelope.Metadata.Timestamp

		case labour.SubscriptionTokenGenerated:
			model.SubscriptionToken = e.Token
			model.UpdatedAt = envelope.Metadata.Timestamp
		}
	}

	if !exists {
		return fmt.Errorf("%w: labour projector: no LabourPlanned event observed for %s", eventsourcing.ErrProjector, aggregateID)
	}
	return p.repo.Overwrite(ctx, aggregateID, model)
}
