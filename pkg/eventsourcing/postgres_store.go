package eventsourcing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore is the Postgres-backed EventStore. Sequence allocation is
// serialised per aggregate with a transaction-scoped advisory lock —
// needed because, unlike a row-level SELECT ... FOR UPDATE, it still
// excludes concurrent writers even when the aggregate has no rows yet (the
// very first append).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgresStore over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, aggregateID uuid.UUID, eventType string, eventVersion int, eventData json.RawMessage, userID string, idempotencyKey uuid.UUID) (AppendResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: begin append tx: %v", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, aggregateID); err != nil {
		return AppendResult{}, fmt.Errorf("%w: acquire aggregate lock: %v", ErrStorage, err)
	}

	// Idempotent replay: a prior append with the same idempotency key
	// already produced a row — return it unchanged, no new insert.
	var existing AppendResult
	err = tx.QueryRowContext(ctx,
		`SELECT sequence, timestamp FROM stored_events WHERE aggregate_id = $1 AND idempotency_key = $2`,
		aggregateID, idempotencyKey,
	).Scan(&existing.Sequence, &existing.Timestamp)
	switch {
	case err == nil:
		return existing, tx.Commit()
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return AppendResult{}, fmt.Errorf("%w: check idempotency: %v", ErrStorage, err)
	}

	var nextSeq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM stored_events WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&nextSeq); err != nil {
		return AppendResult{}, fmt.Errorf("%w: allocate sequence: %v", ErrStorage, err)
	}

	var result AppendResult
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO stored_events
			(aggregate_id, sequence, event_type, event_data, event_version, timestamp, user_id, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, now(), $6, $7)
		 RETURNING sequence, timestamp`,
		aggregateID, nextSeq, eventType, []byte(eventData), eventVersion, userID, idempotencyKey,
	).Scan(&result.Sequence, &result.Timestamp); err != nil {
		return AppendResult{}, fmt.Errorf("%w: insert event: %v", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("%w: commit append: %v", ErrStorage, err)
	}

	return result, nil
}

func (s *PostgresStore) Load(ctx context.Context, aggregateID uuid.UUID) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, aggregate_id, event_type, event_data, event_version, timestamp, user_id, idempotency_key
		 FROM stored_events WHERE aggregate_id = $1 ORDER BY sequence ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load events: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

func (s *PostgresStore) EventsSince(ctx context.Context, aggregateID uuid.UUID, sinceSequence int64, batchSize int) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, aggregate_id, event_type, event_data, event_version, timestamp, user_id, idempotency_key
		 FROM stored_events
		 WHERE aggregate_id = $1 AND sequence > $2
		 ORDER BY sequence ASC
		 LIMIT $3`,
		aggregateID, sinceSequence, batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: events since: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

func scanStoredEvents(rows *sql.Rows) ([]StoredEvent, error) {
	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var data []byte
		if err := rows.Scan(&e.Sequence, &e.AggregateID, &e.EventType, &data, &e.EventVersion, &e.Timestamp, &e.UserID, &e.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("%w: scan event row: %v", ErrStorage, err)
		}
		e.EventData = data
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate event rows: %v", ErrStorage, err)
	}
	return events, nil
}
