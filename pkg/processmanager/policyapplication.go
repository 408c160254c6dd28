package processmanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// PolicyApplicationStatus mirrors the policy_application.status column.
type PolicyApplicationStatus string

const (
	PolicyProcessing PolicyApplicationStatus = "Processing"
	PolicyProcessed  PolicyApplicationStatus = "Processed"
	PolicyFailed     PolicyApplicationStatus = "Failed"
)

// PolicyApplicationRepository ensures each event is driven through the
// policy engine at most once to a terminal state.
type PolicyApplicationRepository interface {
	// LastProcessedSequence returns the highest event sequence that has
	// reached Processed for aggregateID, or 0 if none has.
	LastProcessedSequence(ctx context.Context, aggregateID uuid.UUID) (int64, error)

	// MarkProcessing records that sequence is being run through the
	// policy engine.
	MarkProcessing(ctx context.Context, aggregateID uuid.UUID, sequence int64) error

	// MarkProcessed records that sequence completed successfully.
	MarkProcessed(ctx context.Context, aggregateID uuid.UUID, sequence int64) error

	// MarkFailed records a policy-application failure, incrementing
	// retry_count.
	MarkFailed(ctx context.Context, aggregateID uuid.UUID, sequence int64, policyErr error) error
}

// PostgresPolicyApplicationRepository is the production
// PolicyApplicationRepository.
type PostgresPolicyApplicationRepository struct {
	db *sql.DB
}

// NewPostgresPolicyApplicationRepository constructs one.
func NewPostgresPolicyApplicationRepository(db *sql.DB) *PostgresPolicyApplicationRepository {
	return &PostgresPolicyApplicationRepository{db: db}
}

func (r *PostgresPolicyApplicationRepository) LastProcessedSequence(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(event_sequence) FROM policy_application
		WHERE aggregate_id = $1 AND status = 'Processed'
	`, aggregateID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("%w: last processed sequence %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	return seq.Int64, nil
}

func (r *PostgresPolicyApplicationRepository) MarkProcessing(ctx context.Context, aggregateID uuid.UUID, sequence int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policy_application (aggregate_id, event_sequence, status, retry_count)
		VALUES ($1, $2, 'Processing', 0)
		ON CONFLICT (aggregate_id, event_sequence) DO UPDATE SET status = 'Processing'
	`, aggregateID, sequence)
	if err != nil {
		return fmt.Errorf("%w: mark processing %s/%d: %v", eventsourcing.ErrStorage, aggregateID, sequence, err)
	}
	return nil
}

func (r *PostgresPolicyApplicationRepository) MarkProcessed(ctx context.Context, aggregateID uuid.UUID, sequence int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE policy_application SET status = 'Processed' WHERE aggregate_id = $1 AND event_sequence = $2
	`, aggregateID, sequence)
	if err != nil {
		return fmt.Errorf("%w: mark processed %s/%d: %v", eventsourcing.ErrStorage, aggregateID, sequence, err)
	}
	return nil
}

func (r *PostgresPolicyApplicationRepository) MarkFailed(ctx context.Context, aggregateID uuid.UUID, sequence int64, policyErr error) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE policy_application SET status = 'Failed', retry_count = retry_count + 1, last_error = $3
		WHERE aggregate_id = $1 AND event_sequence = $2
	`, aggregateID, sequence, policyErr.Error())
	if err != nil {
		return fmt.Errorf("%w: mark failed %s/%d: %v", eventsourcing.ErrStorage, aggregateID, sequence, err)
	}
	return nil
}
