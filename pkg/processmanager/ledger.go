// Package processmanager implements the policy → ledger → executor
// pipeline: the effect ledger, the policy-application
// tracking table, the process manager loop that drives both, and the
// executor contract (with a gobreaker-wrapped dispatcher) that carries
// effects out to external services.
package processmanager

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// EffectStatus mirrors the effect_ledger.status column.
type EffectStatus string

const (
	EffectPending    EffectStatus = "Pending"
	EffectDispatched EffectStatus = "Dispatched"
	EffectCompleted  EffectStatus = "Completed"
	EffectFailed     EffectStatus = "Failed"
	EffectExhausted  EffectStatus = "Exhausted"
)

// MaxRetryAttempts bounds effect delivery retries: after
// this many attempts an effect that keeps failing moves to Exhausted.
const MaxRetryAttempts = 6

// EffectRecord is one row of the effect ledger. EffectID is the
// effect's idempotency key — re-deriving the same key for the same event
// and recipient is what makes re-running a policy a no-op.
type EffectRecord struct {
	EffectID       uuid.UUID
	AggregateID    uuid.UUID
	EffectType     string
	EffectPayload  json.RawMessage
	SourceSequence int64
	Status         EffectStatus
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectLedger persists every emitted effect and tracks its delivery
// state. Records are never deleted; the ledger doubles as the audit
// trail.
type EffectLedger interface {
	// Insert writes a new effect record. A duplicate EffectID (the
	// idempotency key) is a no-op: the existing row is left untouched and
	// no error is returned.
	Insert(ctx context.Context, aggregateID uuid.UUID, effectID uuid.UUID, effectType string, payload json.RawMessage, sourceSequence int64) error

	// DispatchCandidates returns effects in {Pending, Failed} with
	// attempts < MaxRetryAttempts for aggregateID, oldest first.
	DispatchCandidates(ctx context.Context, aggregateID uuid.UUID) ([]EffectRecord, error)

	// MarkDispatched transitions an effect to Dispatched immediately
	// before the executor is called, incrementing attempts.
	MarkDispatched(ctx context.Context, effectID uuid.UUID) error

	// MarkCompleted transitions an effect to Completed after a successful
	// executor call.
	MarkCompleted(ctx context.Context, effectID uuid.UUID) error

	// MarkFailed records an executor failure. If the record's attempts
	// have now reached MaxRetryAttempts it transitions to Exhausted
	// instead of Failed.
	MarkFailed(ctx context.Context, effectID uuid.UUID, execErr error) error
}

// PostgresEffectLedger is the production EffectLedger.
type PostgresEffectLedger struct {
	db *sql.DB
}

// NewPostgresEffectLedger constructs a PostgresEffectLedger.
func NewPostgresEffectLedger(db *sql.DB) *PostgresEffectLedger {
	return &PostgresEffectLedger{db: db}
}

func (l *PostgresEffectLedger) Insert(ctx context.Context, aggregateID uuid.UUID, effectID uuid.UUID, effectType string, payload json.RawMessage, sourceSequence int64) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO effect_ledger (effect_id, aggregate_id, effect_type, effect_payload, source_sequence, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'Pending', 0, now(), now())
		ON CONFLICT (effect_id) DO NOTHING
	`, effectID, aggregateID, effectType, payload, sourceSequence)
	if err != nil {
		return fmt.Errorf("%w: insert effect %s: %v", eventsourcing.ErrStorage, effectID, err)
	}
	return nil
}

func (l *PostgresEffectLedger) DispatchCandidates(ctx context.Context, aggregateID uuid.UUID) ([]EffectRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT effect_id, aggregate_id, effect_type, effect_payload, source_sequence, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM effect_ledger
		WHERE aggregate_id = $1 AND status IN ('Pending', 'Failed') AND attempts < $2
		ORDER BY created_at ASC
	`, aggregateID, MaxRetryAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: dispatch candidates %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	defer rows.Close()

	var records []EffectRecord
	for rows.Next() {
		var r EffectRecord
		if err := rows.Scan(&r.EffectID, &r.AggregateID, &r.EffectType, &r.EffectPayload, &r.SourceSequence, &r.Status, &r.Attempts, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan effect row: %v", eventsourcing.ErrStorage, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate effect rows: %v", eventsourcing.ErrStorage, err)
	}
	return records, nil
}

func (l *PostgresEffectLedger) MarkDispatched(ctx context.Context, effectID uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE effect_ledger SET status = 'Dispatched', attempts = attempts + 1, updated_at = now()
		WHERE effect_id = $1
	`, effectID)
	if err != nil {
		return fmt.Errorf("%w: mark dispatched %s: %v", eventsourcing.ErrStorage, effectID, err)
	}
	return nil
}

func (l *PostgresEffectLedger) MarkCompleted(ctx context.Context, effectID uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE effect_ledger SET status = 'Completed', updated_at = now()
		WHERE effect_id = $1
	`, effectID)
	if err != nil {
		return fmt.Errorf("%w: mark completed %s: %v", eventsourcing.ErrStorage, effectID, err)
	}
	return nil
}

func (l *PostgresEffectLedger) MarkFailed(ctx context.Context, effectID uuid.UUID, execErr error) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE effect_ledger SET
			status = CASE WHEN attempts >= $2 THEN 'Exhausted' ELSE 'Failed' END,
			last_error = $3,
			updated_at = now()
		WHERE effect_id = $1
	`, effectID, MaxRetryAttempts, execErr.Error())
	if err != nil {
		return fmt.Errorf("%w: mark failed %s: %v", eventsourcing.ErrStorage, effectID, err)
	}
	return nil
}

// Exhausted returns aggregateID's quarantined effects, oldest first — the
// admin audit view over effects that repeatedly failed and were
// quarantined.
func (l *PostgresEffectLedger) Exhausted(ctx context.Context, aggregateID uuid.UUID) ([]EffectRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT effect_id, aggregate_id, effect_type, effect_payload, source_sequence, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM effect_ledger
		WHERE aggregate_id = $1 AND status = 'Exhausted'
		ORDER BY created_at ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("%w: exhausted effects %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	defer rows.Close()

	var records []EffectRecord
	for rows.Next() {
		var r EffectRecord
		if err := rows.Scan(&r.EffectID, &r.AggregateID, &r.EffectType, &r.EffectPayload, &r.SourceSequence, &r.Status, &r.Attempts, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan effect row: %v", eventsourcing.ErrStorage, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate effect rows: %v", eventsourcing.ErrStorage, err)
	}
	return records, nil
}
