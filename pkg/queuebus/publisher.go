package queuebus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/internal/idgen"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// Publisher implements processmanager.QueuePublisher by enqueuing a Message
// onto Store. It is the production seam between the policy/process-manager
// layer and the command bus.
type Publisher struct {
	store Store
}

// NewPublisher constructs a Publisher.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Publish marshals payload and enqueues it as a Service-variant message.
func (p *Publisher) Publish(ctx context.Context, targetKind string, targetAggregateID uuid.UUID, idempotencyKey uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal queue payload: %v", eventsourcing.ErrStorage, err)
	}
	msg := Message{
		MessageID:         idgen.New(),
		Variant:           VariantService,
		TargetKind:        targetKind,
		TargetAggregateID: targetAggregateID,
		Payload:           data,
		IdempotencyKey:    idempotencyKey,
	}
	return p.store.Enqueue(ctx, msg)
}
