package readmodel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
)

// PostgresLabourRepository is the SingleItemRepository[LabourReadModel]
// implementation backing the "labour" sync projector.
type PostgresLabourRepository struct {
	db *sql.DB
}

// NewPostgresLabourRepository constructs a PostgresLabourRepository.
func NewPostgresLabourRepository(db *sql.DB) *PostgresLabourRepository {
	return &PostgresLabourRepository{db: db}
}

func (r *PostgresLabourRepository) Get(ctx context.Context, aggregateID uuid.UUID) (LabourReadModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT aggregate_id, mother_id, mother_name, phase, due_date, first_labour,
		       started_at, completed_at, subscription_token, updated_at
		FROM labour_read_model WHERE aggregate_id = $1
	`, aggregateID)

	var m LabourReadModel
	var motherName, token sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&m.AggregateID, &m.MotherID, &motherName, &m.Phase, &m.DueDate, &m.FirstLabour,
		&startedAt, &completedAt, &token, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LabourReadModel{}, &eventsourcing.NotFoundError{Kind: "LabourReadModel", ID: aggregateID.String()}
	}
	if err != nil {
		return LabourReadModel{}, fmt.Errorf("%w: get labour read model %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	m.MotherName = motherName.String
	m.SubscriptionToken = token.String
	if startedAt.Valid {
		m.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		m.CompletedAt = &completedAt.Time
	}
	return m, nil
}

func (r *PostgresLabourRepository) Overwrite(ctx context.Context, aggregateID uuid.UUID, model LabourReadModel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO labour_read_model
			(aggregate_id, mother_id, mother_name, phase, due_date, first_labour,
			 started_at, completed_at, subscription_token, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (aggregate_id) DO UPDATE SET
			mother_id = EXCLUDED.mother_id,
			mother_name = EXCLUDED.mother_name,
			phase = EXCLUDED.phase,
			due_date = EXCLUDED.due_date,
			first_labour = EXCLUDED.first_labour,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			subscription_token = EXCLUDED.subscription_token,
			updated_at = EXCLUDED.updated_at
	`, model.AggregateID, model.MotherID, model.MotherName, model.Phase, model.DueDate, model.FirstLabour,
		model.StartedAt, model.CompletedAt, model.SubscriptionToken, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: overwrite labour read model %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	return nil
}

func (r *PostgresLabourRepository) Delete(ctx context.Context, aggregateID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM labour_read_model WHERE aggregate_id = $1`, aggregateID)
	if err != nil {
		return fmt.Errorf("%w: delete labour read model %s: %v", eventsourcing.ErrStorage, aggregateID, err)
	}
	return nil
}

// PostgresContractionRepository is the Repository[ContractionReadModel]
// implementation backing the "contractions" sync projector.
type PostgresContractionRepository struct {
	db *sql.DB
}

func NewPostgresContractionRepository(db *sql.DB) *PostgresContractionRepository {
	return &PostgresContractionRepository{db: db}
}

func (r *PostgresContractionRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (ContractionReadModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT aggregate_id, contraction_id, start_time, end_time, intensity
		FROM contraction_read_model WHERE aggregate_id = $1 AND contraction_id = $2
	`, scope, id)

	var m ContractionReadModel
	var endTime sql.NullTime
	var intensity sql.NullInt64
	err := row.Scan(&m.AggregateID, &m.ContractionID, &m.StartTime, &endTime, &intensity)
	if errors.Is(err, sql.ErrNoRows) {
		return ContractionReadModel{}, &eventsourcing.NotFoundError{Kind: "ContractionReadModel", ID: id.String()}
	}
	if err != nil {
		return ContractionReadModel{}, fmt.Errorf("%w: get contraction %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	if endTime.Valid {
		m.EndTime = &endTime.Time
	}
	if intensity.Valid {
		v := int(intensity.Int64)
		m.Intensity = &v
	}
	return m, nil
}

func (r *PostgresContractionRepository) Get(ctx context.Context, scope uuid.UUID) ([]ContractionReadModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT aggregate_id, contraction_id, start_time, end_time, intensity
		FROM contraction_read_model WHERE aggregate_id = $1 ORDER BY start_time ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: list contractions %s: %v", eventsourcing.ErrStorage, scope, err)
	}
	defer rows.Close()

	var out []ContractionReadModel
	for rows.Next() {
		var m ContractionReadModel
		var endTime sql.NullTime
		var intensity sql.NullInt64
		if err := rows.Scan(&m.AggregateID, &m.ContractionID, &m.StartTime, &endTime, &intensity); err != nil {
			return nil, fmt.Errorf("%w: scan contraction row: %v", eventsourcing.ErrStorage, err)
		}
		if endTime.Valid {
			m.EndTime = &endTime.Time
		}
		if intensity.Valid {
			v := int(intensity.Int64)
			m.Intensity = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresContractionRepository) Upsert(ctx context.Context, scope uuid.UUID, model ContractionReadModel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contraction_read_model (aggregate_id, contraction_id, start_time, end_time, intensity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aggregate_id, contraction_id) DO UPDATE SET
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, intensity = EXCLUDED.intensity
	`, scope, model.ContractionID, model.StartTime, model.EndTime, model.Intensity)
	if err != nil {
		return fmt.Errorf("%w: upsert contraction %s/%s: %v", eventsourcing.ErrStorage, scope, model.ContractionID, err)
	}
	return nil
}

func (r *PostgresContractionRepository) Delete(ctx context.Context, scope, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contraction_read_model WHERE aggregate_id = $1 AND contraction_id = $2`, scope, id)
	if err != nil {
		return fmt.Errorf("%w: delete contraction %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	return nil
}

// PostgresLabourUpdateRepository is the Repository[LabourUpdateReadModel]
// implementation backing the "labour_updates" sync projector.
type PostgresLabourUpdateRepository struct {
	db *sql.DB
}

func NewPostgresLabourUpdateRepository(db *sql.DB) *PostgresLabourUpdateRepository {
	return &PostgresLabourUpdateRepository{db: db}
}

func (r *PostgresLabourUpdateRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (LabourUpdateReadModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT aggregate_id, update_id, update_type, message, posted_by, posted_at
		FROM labour_update_read_model WHERE aggregate_id = $1 AND update_id = $2
	`, scope, id)
	var m LabourUpdateReadModel
	var message sql.NullString
	err := row.Scan(&m.AggregateID, &m.UpdateID, &m.UpdateType, &message, &m.PostedBy, &m.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LabourUpdateReadModel{}, &eventsourcing.NotFoundError{Kind: "LabourUpdateReadModel", ID: id.String()}
	}
	if err != nil {
		return LabourUpdateReadModel{}, fmt.Errorf("%w: get labour update %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	m.Message = message.String
	return m, nil
}

func (r *PostgresLabourUpdateRepository) Get(ctx context.Context, scope uuid.UUID) ([]LabourUpdateReadModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT aggregate_id, update_id, update_type, message, posted_by, posted_at
		FROM labour_update_read_model WHERE aggregate_id = $1 ORDER BY posted_at DESC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: list labour updates %s: %v", eventsourcing.ErrStorage, scope, err)
	}
	defer rows.Close()

	var out []LabourUpdateReadModel
	for rows.Next() {
		var m LabourUpdateReadModel
		var message sql.NullString
		if err := rows.Scan(&m.AggregateID, &m.UpdateID, &m.UpdateType, &message, &m.PostedBy, &m.PostedAt); err != nil {
			return nil, fmt.Errorf("%w: scan labour update row: %v", eventsourcing.ErrStorage, err)
		}
		m.Message = message.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresLabourUpdateRepository) Upsert(ctx context.Context, scope uuid.UUID, model LabourUpdateReadModel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO labour_update_read_model (aggregate_id, update_id, update_type, message, posted_by, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (aggregate_id, update_id) DO UPDATE SET
			update_type = EXCLUDED.update_type, message = EXCLUDED.message,
			posted_by = EXCLUDED.posted_by, posted_at = EXCLUDED.posted_at
	`, scope, model.UpdateID, model.UpdateType, model.Message, model.PostedBy, model.PostedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert labour update %s/%s: %v", eventsourcing.ErrStorage, scope, model.UpdateID, err)
	}
	return nil
}

func (r *PostgresLabourUpdateRepository) Delete(ctx context.Context, scope, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM labour_update_read_model WHERE aggregate_id = $1 AND update_id = $2`, scope, id)
	if err != nil {
		return fmt.Errorf("%w: delete labour update %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	return nil
}

// PostgresSubscriptionRepository is the Repository[SubscriptionReadModel]
// implementation backing the "subscriptions" sync projector.
type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (SubscriptionReadModel, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT aggregate_id, subscription_id, subscriber_id, role, status, access_level, contact_methods, updated_at
		FROM subscription_read_model WHERE aggregate_id = $1 AND subscription_id = $2
	`, scope, id)
	m, err := scanSubscriptionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubscriptionReadModel{}, &eventsourcing.NotFoundError{Kind: "SubscriptionReadModel", ID: id.String()}
	}
	if err != nil {
		return SubscriptionReadModel{}, fmt.Errorf("%w: get subscription %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	return m, nil
}

func (r *PostgresSubscriptionRepository) Get(ctx context.Context, scope uuid.UUID) ([]SubscriptionReadModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT aggregate_id, subscription_id, subscriber_id, role, status, access_level, contact_methods, updated_at
		FROM subscription_read_model WHERE aggregate_id = $1 ORDER BY updated_at DESC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions %s: %v", eventsourcing.ErrStorage, scope, err)
	}
	defer rows.Close()

	var out []SubscriptionReadModel
	for rows.Next() {
		m, err := scanSubscriptionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan subscription row: %v", eventsourcing.ErrStorage, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, scope uuid.UUID, model SubscriptionReadModel) error {
	methods := make([]string, len(model.ContactMethods))
	for i, m := range model.ContactMethods {
		methods[i] = string(m)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_read_model
			(aggregate_id, subscription_id, subscriber_id, role, status, access_level, contact_methods, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (aggregate_id, subscription_id) DO UPDATE SET
			subscriber_id = EXCLUDED.subscriber_id, role = EXCLUDED.role, status = EXCLUDED.status,
			access_level = EXCLUDED.access_level, contact_methods = EXCLUDED.contact_methods, updated_at = EXCLUDED.updated_at
	`, scope, model.SubscriptionID, model.SubscriberID, model.Role, model.Status, model.AccessLevel,
		pq.Array(methods), model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert subscription %s/%s: %v", eventsourcing.ErrStorage, scope, model.SubscriptionID, err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, scope, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscription_read_model WHERE aggregate_id = $1 AND subscription_id = $2`, scope, id)
	if err != nil {
		return fmt.Errorf("%w: delete subscription %s/%s: %v", eventsourcing.ErrStorage, scope, id, err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting
// scanSubscriptionRow share its Scan call across GetByID and Get.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriptionRow(row rowScanner) (SubscriptionReadModel, error) {
	var m SubscriptionReadModel
	var methods pq.StringArray
	if err := row.Scan(&m.AggregateID, &m.SubscriptionID, &m.SubscriberID, &m.Role, &m.Status, &m.AccessLevel, &methods, &m.UpdatedAt); err != nil {
		return SubscriptionReadModel{}, err
	}
	m.ContactMethods = make([]labour.ContactMethod, len(methods))
	for i, v := range methods {
		m.ContactMethods[i] = labour.ContactMethod(v)
	}
	return m, nil
}

func scanSubscriptionRows(rows *sql.Rows) (SubscriptionReadModel, error) {
	return scanSubscriptionRow(rows)
}
