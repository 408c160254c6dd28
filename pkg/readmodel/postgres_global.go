package readmodel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/internal/cursor"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
)

// PostgresGlobalStore backs the three cross-entity async projections
// (labour_status, subscription_status, notification_detail). Each async
// projector (pkg/projection) is handed one of its Persist* methods as the
// IncrementalCachedProjector's write-through closure; the query-side list
// methods serve the API's list routes directly.
type PostgresGlobalStore struct {
	db *sql.DB
}

// NewPostgresGlobalStore constructs a PostgresGlobalStore.
func NewPostgresGlobalStore(db *sql.DB) *PostgresGlobalStore {
	return &PostgresGlobalStore{db: db}
}

// PersistLabourStatus writes through the labour_status_read_model row.
func (s *PostgresGlobalStore) PersistLabourStatus(ctx context.Context, labourID uuid.UUID, model LabourStatusReadModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labour_status_read_model (labour_id, mother_id, phase, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (labour_id) DO UPDATE SET
			mother_id = EXCLUDED.mother_id, phase = EXCLUDED.phase, updated_at = EXCLUDED.updated_at
	`, labourID, model.MotherID, model.Phase, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: persist labour status %s: %v", eventsourcing.ErrStorage, labourID, err)
	}
	return nil
}

// ActiveLabours lists every labour whose derived phase has not reached
// COMPLETE (Open Question: current_phase <> 'COMPLETE' is a fixed enum
// match, not a free-form string comparison against any other value).
func (s *PostgresGlobalStore) ActiveLabours(ctx context.Context, limit int) ([]LabourStatusReadModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT labour_id, mother_id, phase, updated_at
		FROM labour_status_read_model
		WHERE phase <> $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, string(labour.PhaseComplete), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list active labours: %v", eventsourcing.ErrStorage, err)
	}
	defer rows.Close()

	var out []LabourStatusReadModel
	for rows.Next() {
		var m LabourStatusReadModel
		if err := rows.Scan(&m.LabourID, &m.MotherID, &m.Phase, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan labour status row: %v", eventsourcing.ErrStorage, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PersistSubscriptionStatus writes through the subscription_status_read_model row.
func (s *PostgresGlobalStore) PersistSubscriptionStatus(ctx context.Context, subscriptionID uuid.UUID, model SubscriptionStatusReadModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_status_read_model (subscriber_id, subscription_id, labour_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subscriber_id, subscription_id) DO UPDATE SET
			labour_id = EXCLUDED.labour_id, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, model.SubscriberID, subscriptionID, model.LabourID, model.Status, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: persist subscription status %s: %v", eventsourcing.ErrStorage, subscriptionID, err)
	}
	return nil
}

// SubscriptionsForSubscriber lists a subscriber's subscriptions, newest
// first, keyset-paginated by (updated_at, subscription_id). The WHERE
// clause resolves the Open Question on ties: a row is "before" the cursor
// either because its updated_at is strictly earlier, or because it shares
// the same updated_at but has a lexicographically smaller subscription_id.
func (s *PostgresGlobalStore) SubscriptionsForSubscriber(ctx context.Context, subscriberID string, after string, limit int) (cursor.Page[SubscriptionStatusReadModel], error) {
	var rows *sql.Rows
	var err error

	if after == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT subscriber_id, subscription_id, labour_id, status, updated_at
			FROM subscription_status_read_model
			WHERE subscriber_id = $1
			ORDER BY updated_at DESC, subscription_id DESC
			LIMIT $2
		`, subscriberID, limit+1)
	} else {
		c, decodeErr := cursor.Decode(after)
		if decodeErr != nil {
			return cursor.Page[SubscriptionStatusReadModel]{}, fmt.Errorf("%w: invalid cursor: %v", eventsourcing.ErrStorage, decodeErr)
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT subscriber_id, subscription_id, labour_id, status, updated_at
			FROM subscription_status_read_model
			WHERE subscriber_id = $1 AND (updated_at < $2 OR (updated_at = $2 AND subscription_id < $3))
			ORDER BY updated_at DESC, subscription_id DESC
			LIMIT $4
		`, subscriberID, c.UpdatedAt, c.ID, limit+1)
	}
	if err != nil {
		return cursor.Page[SubscriptionStatusReadModel]{}, fmt.Errorf("%w: list subscriptions for subscriber %s: %v", eventsourcing.ErrStorage, subscriberID, err)
	}
	defer rows.Close()

	var out []SubscriptionStatusReadModel
	for rows.Next() {
		var m SubscriptionStatusReadModel
		if err := rows.Scan(&m.SubscriberID, &m.SubscriptionID, &m.LabourID, &m.Status, &m.UpdatedAt); err != nil {
			return cursor.Page[SubscriptionStatusReadModel]{}, fmt.Errorf("%w: scan subscription status row: %v", eventsourcing.ErrStorage, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return cursor.Page[SubscriptionStatusReadModel]{}, fmt.Errorf("%w: list subscriptions for subscriber %s: %v", eventsourcing.ErrStorage, subscriberID, err)
	}

	return cursor.Paginate(out, limit, func(m SubscriptionStatusReadModel) cursor.Cursor {
		return cursor.Cursor{UpdatedAt: m.UpdatedAt, ID: m.SubscriptionID}
	}), nil
}

// PersistNotificationDetail writes through the notification_detail_read_model row.
func (s *PostgresGlobalStore) PersistNotificationDetail(ctx context.Context, notificationID uuid.UUID, model NotificationDetailReadModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_detail_read_model
			(notification_id, channel, destination, status, priority, failure_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (notification_id) DO UPDATE SET
			channel = EXCLUDED.channel, destination = EXCLUDED.destination, status = EXCLUDED.status,
			priority = EXCLUDED.priority, failure_reason = EXCLUDED.failure_reason, updated_at = EXCLUDED.updated_at
	`, notificationID, model.Channel, model.Destination, model.Status, model.Priority, model.FailureReason, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: persist notification detail %s: %v", eventsourcing.ErrStorage, notificationID, err)
	}
	return nil
}

// NotificationDetail fetches a single notification's status row.
func (s *PostgresGlobalStore) NotificationDetail(ctx context.Context, notificationID uuid.UUID) (NotificationDetailReadModel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT notification_id, channel, destination, status, priority, failure_reason, updated_at
		FROM notification_detail_read_model WHERE notification_id = $1
	`, notificationID)
	var m NotificationDetailReadModel
	var failureReason sql.NullString
	err := row.Scan(&m.NotificationID, &m.Channel, &m.Destination, &m.Status, &m.Priority, &failureReason, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationDetailReadModel{}, &eventsourcing.NotFoundError{Kind: "NotificationDetailReadModel", ID: notificationID.String()}
	}
	if err != nil {
		return NotificationDetailReadModel{}, fmt.Errorf("%w: get notification detail %s: %v", eventsourcing.ErrStorage, notificationID, err)
	}
	return m, nil
}
