package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// CheckpointStatus mirrors the projection_checkpoints.status column.
type CheckpointStatus string

const (
	CheckpointHealthy  CheckpointStatus = "Healthy"
	CheckpointDegraded CheckpointStatus = "Degraded"
	CheckpointFailed   CheckpointStatus = "Failed"
)

// Checkpoint is one projector's progress against one aggregate's log.
type Checkpoint struct {
	AggregateID           uuid.UUID
	ProjectorName         string
	LastProcessedSequence int64
	LastProcessedAt       time.Time
	Status                CheckpointStatus
	ErrorMessage          string
	ErrorCount            int
}

// CheckpointRepository persists projector progress (projection_checkpoints
// table).
type CheckpointRepository interface {
	// Load returns the checkpoint for (aggregateID, projectorName),
	// creating a zero-sequence one if this is the projector's first run
	// against this aggregate.
	Load(ctx context.Context, aggregateID uuid.UUID, projectorName string) (Checkpoint, error)

	// Advance persists a successful batch's resulting checkpoint,
	// resetting Status to Healthy and ErrorCount to 0.
	Advance(ctx context.Context, checkpoint Checkpoint) error

	// MarkFailure records a failed batch without moving
	// LastProcessedSequence, so the same range is retried next pass.
	MarkFailure(ctx context.Context, aggregateID uuid.UUID, projectorName string, batchErr error) error
}

// PostgresCheckpointRepository is the production CheckpointRepository.
type PostgresCheckpointRepository struct {
	db *sql.DB
}

// NewPostgresCheckpointRepository constructs a PostgresCheckpointRepository.
func NewPostgresCheckpointRepository(db *sql.DB) *PostgresCheckpointRepository {
	return &PostgresCheckpointRepository{db: db}
}

func (r *PostgresCheckpointRepository) Load(ctx context.Context, aggregateID uuid.UUID, projectorName string) (Checkpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT aggregate_id, projector_name, last_processed_sequence, last_processed_at, status, error_message, error_count
		FROM projection_checkpoints
		WHERE aggregate_id = $1 AND projector_name = $2
	`, aggregateID, projectorName)

	var cp Checkpoint
	var lastProcessedAt sql.NullTime
	var errorMessage sql.NullString
	err := row.Scan(&cp.AggregateID, &cp.ProjectorName, &cp.LastProcessedSequence, &lastProcessedAt, &cp.Status, &errorMessage, &cp.ErrorCount)
	if err == sql.ErrNoRows {
		return Checkpoint{
			AggregateID:           aggregateID,
			ProjectorName:         projectorName,
			LastProcessedSequence: 0,
			Status:                CheckpointHealthy,
		}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: load checkpoint %s/%s: %v", eventsourcing.ErrStorage, aggregateID, projectorName, err)
	}
	cp.LastProcessedAt = lastProcessedAt.Time
	cp.ErrorMessage = errorMessage.String
	return cp, nil
}

func (r *PostgresCheckpointRepository) Advance(ctx context.Context, checkpoint Checkpoint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projection_checkpoints (aggregate_id, projector_name, last_processed_sequence, last_processed_at, updated_at, status, error_message, error_count)
		VALUES ($1, $2, $3, $4, now(), 'Healthy', NULL, 0)
		ON CONFLICT (aggregate_id, projector_name) DO UPDATE SET
			last_processed_sequence = EXCLUDED.last_processed_sequence,
			last_processed_at = EXCLUDED.last_processed_at,
			updated_at = now(),
			status = 'Healthy',
			error_message = NULL,
			error_count = 0
	`, checkpoint.AggregateID, checkpoint.ProjectorName, checkpoint.LastProcessedSequence, checkpoint.LastProcessedAt)
	if err != nil {
		return fmt.Errorf("%w: advance checkpoint %s/%s: %v", eventsourcing.ErrStorage, checkpoint.AggregateID, checkpoint.ProjectorName, err)
	}
	return nil
}

func (r *PostgresCheckpointRepository) MarkFailure(ctx context.Context, aggregateID uuid.UUID, projectorName string, batchErr error) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projection_checkpoints (aggregate_id, projector_name, last_processed_sequence, last_processed_at, updated_at, status, error_message, error_count)
		VALUES ($1, $2, 0, now(), now(), 'Degraded', $3, 1)
		ON CONFLICT (aggregate_id, projector_name) DO UPDATE SET
			updated_at = now(),
			status = CASE WHEN projection_checkpoints.error_count + 1 >= 5 THEN 'Failed' ELSE 'Degraded' END,
			error_message = $3,
			error_count = projection_checkpoints.error_count + 1
	`, aggregateID, projectorName, batchErr.Error())
	if err != nil {
		return fmt.Errorf("%w: mark checkpoint failure %s/%s: %v", eventsourcing.ErrStorage, aggregateID, projectorName, err)
	}
	return nil
}

// Reset deletes every checkpoint for aggregateID so the next alarm tick
// replays the whole log through every registered projector — the admin
// "rebuild projections" operation. Projector idempotence over
// already-applied prefixes is what makes the replay safe.
func (r *PostgresCheckpointRepository) Reset(ctx context.Context, aggregateID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM projection_checkpoints WHERE aggregate_id = $1
	`, aggregateID)
	if err != nil {
		return fmt.Errorf("%w: reset checkpoints %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	return nil
}
