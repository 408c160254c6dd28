package readmodel

import (
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/labour"
)

// LabourReadModel is the canonical single-row read model for a labour
// (local to the aggregate, table labour_read_model). NewLabourReadModel is
// its one constructor; the name-bearing arity is the canonical one, so
// motherName is always part of the call.
type LabourReadModel struct {
	AggregateID       uuid.UUID
	MotherID          string
	MotherName        string
	Phase             labour.Phase
	DueDate           time.Time
	FirstLabour       bool
	StartedAt         *time.Time
	CompletedAt       *time.Time
	SubscriptionToken string
	UpdatedAt         time.Time
}

// NewLabourReadModel constructs a freshly-planned labour's read model: a
// labour always starts in PhasePlanned with no start/completion time.
func NewLabourReadModel(aggregateID uuid.UUID, motherID, motherName string, firstLabour bool, dueDate time.Time, createdAt time.Time) LabourReadModel {
	return LabourReadModel{
		AggregateID: aggregateID,
		MotherID:    motherID,
		MotherName:  motherName,
		Phase:       labour.PhasePlanned,
		DueDate:     dueDate,
		FirstLabour: firstLabour,
		UpdatedAt:   createdAt,
	}
}

// ContractionReadModel is one row of the per-labour contraction list.
type ContractionReadModel struct {
	AggregateID   uuid.UUID
	ContractionID uuid.UUID
	StartTime     time.Time
	EndTime       *time.Time
	Intensity     *int
}

// LabourUpdateReadModel is one row of the per-labour update feed.
type LabourUpdateReadModel struct {
	AggregateID uuid.UUID
	UpdateID    uuid.UUID
	UpdateType  labour.UpdateType
	Message     string
	PostedBy    string
	PostedAt    time.Time
}

// SubscriptionReadModel is one row of the per-labour subscription list.
type SubscriptionReadModel struct {
	AggregateID    uuid.UUID
	SubscriptionID uuid.UUID
	SubscriberID   string
	Role           labour.SubscriberRole
	Status         labour.SubscriptionStatus
	AccessLevel    labour.AccessLevel
	ContactMethods []labour.ContactMethod
	UpdatedAt      time.Time
}

// LabourStatusReadModel is the global, cross-entity table mothers' and
// subscribers' list views query — one row per labour, keyed by labour id.
type LabourStatusReadModel struct {
	LabourID  uuid.UUID
	MotherID  string
	Phase     labour.Phase
	UpdatedAt time.Time
}

// SubscriptionStatusReadModel is the global per-subscriber table, keyed by
// (subscriber_id, subscription_id) and paginated by (updated_at, subscription_id).
type SubscriptionStatusReadModel struct {
	SubscriberID   string
	SubscriptionID uuid.UUID
	LabourID       uuid.UUID
	Status         labour.SubscriptionStatus
	UpdatedAt      time.Time
}

// NotificationDetailReadModel is the global per-notification status table,
// fed by the Notification aggregate's own event log.
type NotificationDetailReadModel struct {
	NotificationID uuid.UUID
	Channel        string
	Destination    string
	Status         string
	Priority       string
	FailureReason  string
	UpdatedAt      time.Time
}
