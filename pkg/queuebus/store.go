package queuebus

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// Store persists and claims QueueMessage rows.
type Store interface {
	// Enqueue inserts a new message. A duplicate (targetAggregateID,
	// idempotencyKey) is a no-op, matching the event store's own
	// idempotent-append contract.
	Enqueue(ctx context.Context, msg Message) error

	// Claim atomically claims up to limit pending-or-retryable messages
	// for processing, using FOR UPDATE SKIP LOCKED so concurrent workers
	// never double-claim a row.
	Claim(ctx context.Context, limit int) ([]Message, error)

	// MarkCompleted records a successfully processed message.
	MarkCompleted(ctx context.Context, messageID uuid.UUID) error

	// MarkFailed returns a claimed message to pending for retry, or to
	// dead_letter once MaxClaimAttempts is reached.
	MarkFailed(ctx context.Context, messageID uuid.UUID) error
}

// PostgresStore is the production Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, msg Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_messages
			(message_id, variant, target_aggregate_id, target_kind, payload, idempotency_key, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, now())
		ON CONFLICT (target_aggregate_id, idempotency_key) DO NOTHING
	`, msg.MessageID, msg.Variant, msg.TargetAggregateID, msg.TargetKind, msg.Payload, msg.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("%w: enqueue message %s: %v", eventsourcing.ErrStorage, msg.MessageID, err)
	}
	return nil
}

// Claim uses FOR UPDATE SKIP LOCKED, scoped to a batch rather than one
// row at a time since a single worker tick may process several messages.
func (s *PostgresStore) Claim(ctx context.Context, limit int) ([]Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin claim transaction: %v", eventsourcing.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT message_id, variant, target_aggregate_id, target_kind, payload, idempotency_key, status, attempts, created_at, claimed_at
		FROM queue_messages
		WHERE status = 'pending' AND attempts < $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, MaxClaimAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: claim messages: %v", eventsourcing.ErrStorage, err)
	}

	var claimed []Message
	var ids []uuid.UUID
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, m)
		ids = append(ids, m.MessageID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: iterate claimed messages: %v", eventsourcing.ErrStorage, err)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_messages SET status = 'claimed', attempts = attempts + 1, claimed_at = now()
			WHERE message_id = $1
		`, id); err != nil {
			return nil, fmt.Errorf("%w: mark claimed %s: %v", eventsourcing.ErrStorage, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit claim: %v", eventsourcing.ErrStorage, err)
	}
	for i := range claimed {
		claimed[i].Status = StatusClaimed
		claimed[i].Attempts++
	}
	return claimed, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, messageID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_messages SET status = 'completed' WHERE message_id = $1
	`, messageID)
	if err != nil {
		return fmt.Errorf("%w: mark completed %s: %v", eventsourcing.ErrStorage, messageID, err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, messageID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_messages SET
			status = CASE WHEN attempts >= $2 THEN 'dead_letter' ELSE 'pending' END
		WHERE message_id = $1
	`, messageID, MaxClaimAttempts)
	if err != nil {
		return fmt.Errorf("%w: mark failed %s: %v", eventsourcing.ErrStorage, messageID, err)
	}
	return nil
}

func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	var claimedAt sql.NullTime
	if err := rows.Scan(&m.MessageID, &m.Variant, &m.TargetAggregateID, &m.TargetKind, &m.Payload, &m.IdempotencyKey, &m.Status, &m.Attempts, &m.CreatedAt, &claimedAt); err != nil {
		return Message{}, fmt.Errorf("%w: scan queue message: %v", eventsourcing.ErrStorage, err)
	}
	if claimedAt.Valid {
		m.ClaimedAt = &claimedAt.Time
	}
	return m, nil
}
