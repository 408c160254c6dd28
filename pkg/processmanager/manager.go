package processmanager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/policy"
)

// MaxEventsPerPass bounds how many new events one alarm tick runs
// through the policy engine.
const MaxEventsPerPass = 100

// Manager implements the process manager loop: turning
// newly committed Labour events into persisted effects via the policy
// registry, then dispatching whatever is Pending or Failed in the effect
// ledger.
type Manager struct {
	store      eventsourcing.EventStore
	codec      labour.Codec
	policyApp  PolicyApplicationRepository
	registry   *policy.Registry
	ledger     EffectLedger
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(store eventsourcing.EventStore, codec labour.Codec, policyApp PolicyApplicationRepository, registry *policy.Registry, ledger EffectLedger, dispatcher *Dispatcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, codec: codec, policyApp: policyApp, registry: registry, ledger: ledger, dispatcher: dispatcher, logger: logger}
}

// ProcessNewEvents is the loop's first half: determine
// last_processed_sequence from the policy-application table, load up to
// MaxEventsPerPass events beyond it, fold the log up to the last of them
// into aggregate state, and for each new event run its policies and persist
// the resulting effects.
func (m *Manager) ProcessNewEvents(ctx context.Context, aggregateID uuid.UUID) error {
	lastProcessed, err := m.policyApp.LastProcessedSequence(ctx, aggregateID)
	if err != nil {
		return err
	}

	rows, err := m.store.EventsSince(ctx, aggregateID, lastProcessed, MaxEventsPerPass)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	allRows, err := m.store.Load(ctx, aggregateID)
	if err != nil {
		return err
	}
	events := make([]labour.Event, 0, len(allRows))
	for _, row := range allRows {
		event, err := m.codec.Decode(row.EventType, row.EventVersion, row.EventData)
		if err != nil {
			return fmt.Errorf("%w: aggregate %s sequence %d: %v", eventsourcing.ErrDeserialization, aggregateID, row.Sequence, err)
		}
		events = append(events, event)
	}

	var state *labour.State
	firstNew, lastNew := rows[0].Sequence, rows[len(rows)-1].Sequence
	for i, event := range events {
		sequence := allRows[i].Sequence
		if sequence > lastNew {
			break
		}
		if state == nil {
			state, _ = labour.FromEvents([]labour.Event{event})
		} else {
			labour.Apply(state, event)
		}
		if sequence < firstNew {
			continue
		}

		if err := m.policyApp.MarkProcessing(ctx, aggregateID, sequence); err != nil {
			return err
		}

		effects := m.registry.Apply(event, policy.Context{State: state, Sequence: sequence})
		if err := m.persistEffects(ctx, aggregateID, sequence, effects); err != nil {
			if markErr := m.policyApp.MarkFailed(ctx, aggregateID, sequence, err); markErr != nil {
				m.logger.Error("failed to record policy-application failure", "aggregate_id", aggregateID, "sequence", sequence, "error", markErr)
			}
			return err
		}

		if err := m.policyApp.MarkProcessed(ctx, aggregateID, sequence); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) persistEffects(ctx context.Context, aggregateID uuid.UUID, sequence int64, effects []policy.Effect) error {
	for _, effect := range effects {
		effectType, payload, err := encodeEffect(effect)
		if err != nil {
			return err
		}
		effectID := effectIDFor(effect)
		if err := m.ledger.Insert(ctx, aggregateID, effectID, effectType, payload, sequence); err != nil {
			return err
		}
	}
	return nil
}

// effectIDFor extracts the stable idempotency key a policy derived for
// effect — the ledger's primary key and the effect's stable
// idempotency key.
func effectIDFor(effect policy.Effect) uuid.UUID {
	switch e := effect.(type) {
	case policy.SendNotification:
		return e.Intent.IdempotencyKey
	case policy.GenerateSubscriptionToken:
		return e.IdempotencyKey
	case RenderRequest:
		return uuid.NewSHA1(e.NotificationID, []byte("render"))
	case DispatchRequest:
		return uuid.NewSHA1(e.NotificationID, []byte("dispatch"))
	default:
		return uuid.New()
	}
}

// DispatchPendingEffects is the loop's second half: fetch effects in
// {Pending, Failed} with attempts < MaxRetryAttempts, mark each
// Dispatched, call the executor, and record the outcome. If any dispatch
// failed it returns a non-nil error so the alarm is retried.
func (m *Manager) DispatchPendingEffects(ctx context.Context, aggregateID uuid.UUID) error {
	candidates, err := m.ledger.DispatchCandidates(ctx, aggregateID)
	if err != nil {
		return err
	}

	var batchErr error
	for _, record := range candidates {
		effect, err := decodeEffect(record.EffectType, record.EffectPayload)
		if err != nil {
			m.logger.Error("undecodable effect, leaving for manual inspection", "effect_id", record.EffectID, "error", err)
			batchErr = err
			continue
		}

		if err := m.ledger.MarkDispatched(ctx, record.EffectID); err != nil {
			return err
		}

		if err := m.dispatcher.Dispatch(ctx, effect); err != nil {
			m.logger.Warn("effect dispatch failed", "effect_id", record.EffectID, "effect_type", record.EffectType, "error", err)
			if markErr := m.ledger.MarkFailed(ctx, record.EffectID, err); markErr != nil {
				return markErr
			}
			batchErr = err
			continue
		}

		if err := m.ledger.MarkCompleted(ctx, record.EffectID); err != nil {
			return err
		}
	}
	return batchErr
}
