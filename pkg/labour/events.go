package labour

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every Labour domain event. EventType is the
// string stored in StoredEvent.event_type; EventVersion lets the codec
// evolve payloads without breaking old rows.
type Event interface {
	EventType() string
	EventVersion() int
}

// LabourPlanned is the aggregate's creation event — every Labour log must
// begin with one.
type LabourPlanned struct {
	LabourID    uuid.UUID
	MotherID    string
	MotherName  string
	DueDate     time.Time
	FirstLabour bool
}

func (LabourPlanned) EventType() string { return "LabourPlanned" }
func (LabourPlanned) EventVersion() int { return 1 }

// LabourBegun records the start of labour.
type LabourBegun struct {
	StartTime time.Time
}

func (LabourBegun) EventType() string { return "LabourBegun" }
func (LabourBegun) EventVersion() int { return 1 }

// ContractionStarted records a new, currently-active contraction.
type ContractionStarted struct {
	ContractionID uuid.UUID
	StartTime     time.Time
}

func (ContractionStarted) EventType() string { return "ContractionStarted" }
func (ContractionStarted) EventVersion() int { return 1 }

// ContractionEnded closes a contraction.
type ContractionEnded struct {
	ContractionID uuid.UUID
	EndTime       time.Time
	Intensity     *int
}

func (ContractionEnded) EventType() string { return "ContractionEnded" }
func (ContractionEnded) EventVersion() int { return 1 }

// ContractionUpdated adjusts a previously recorded contraction's window or
// intensity.
type ContractionUpdated struct {
	ContractionID uuid.UUID
	StartTime     time.Time
	EndTime       *time.Time
	Intensity     *int
}

func (ContractionUpdated) EventType() string { return "ContractionUpdated" }
func (ContractionUpdated) EventVersion() int { return 1 }

// ContractionRemoved deletes a contraction record entirely.
type ContractionRemoved struct {
	ContractionID uuid.UUID
}

func (ContractionRemoved) EventType() string { return "ContractionRemoved" }
func (ContractionRemoved) EventVersion() int { return 1 }

// LabourPhaseChanged is emitted by the phase-progression rule whenever the
// derived phase advances.
type LabourPhaseChanged struct {
	Phase Phase
}

func (LabourPhaseChanged) EventType() string { return "LabourPhaseChanged" }
func (LabourPhaseChanged) EventVersion() int { return 1 }

// LabourCompleted marks the labour as finished.
type LabourCompleted struct {
	CompletedAt time.Time
	Notes       string
}

func (LabourCompleted) EventType() string { return "LabourCompleted" }
func (LabourCompleted) EventVersion() int { return 1 }

// SubscriberRequested records a subscription request against the labour's
// current token.
type SubscriberRequested struct {
	SubscriptionID uuid.UUID
	SubscriberID   string
	Role           SubscriberRole
}

func (SubscriberRequested) EventType() string { return "SubscriberRequested" }
func (SubscriberRequested) EventVersion() int { return 1 }

// SubscriberApproved moves a subscription from REQUESTED to SUBSCRIBED.
type SubscriberApproved struct {
	SubscriptionID uuid.UUID
	AccessLevel    AccessLevel
	ContactMethods []ContactMethod
}

func (SubscriberApproved) EventType() string { return "SubscriberApproved" }
func (SubscriberApproved) EventVersion() int { return 1 }

// SubscriberBlocked moves a subscription to BLOCKED.
type SubscriberBlocked struct {
	SubscriptionID uuid.UUID
}

func (SubscriberBlocked) EventType() string { return "SubscriberBlocked" }
func (SubscriberBlocked) EventVersion() int { return 1 }

// SubscriberRemoved moves a subscription to REMOVED.
type SubscriberRemoved struct {
	SubscriptionID uuid.UUID
}

func (SubscriberRemoved) EventType() string { return "SubscriberRemoved" }
func (SubscriberRemoved) EventVersion() int { return 1 }

// SubscriberUnsubscribed moves a subscription to UNSUBSCRIBED (self-service).
type SubscriberUnsubscribed struct {
	SubscriptionID uuid.UUID
}

func (SubscriberUnsubscribed) EventType() string { return "SubscriberUnsubscribed" }
func (SubscriberUnsubscribed) EventVersion() int { return 1 }

// SubscriptionAccessLevelUpdated changes a subscriber's access level.
type SubscriptionAccessLevelUpdated struct {
	SubscriptionID uuid.UUID
	AccessLevel    AccessLevel
}

func (SubscriptionAccessLevelUpdated) EventType() string { return "SubscriptionAccessLevelUpdated" }
func (SubscriptionAccessLevelUpdated) EventVersion() int { return 1 }

// SubscriptionTokenGenerated records the token subscribers must present to
// RequestAccess.
type SubscriptionTokenGenerated struct {
	Token string
}

func (SubscriptionTokenGenerated) EventType() string { return "SubscriptionTokenGenerated" }
func (SubscriptionTokenGenerated) EventVersion() int { return 1 }

// LabourUpdatePosted records a status update or announcement. The policy
// engine keys off UpdateType to pick the notification the subscribers
// receive — there is no separate "type changed" event (see DESIGN.md,
// Open Question resolution for LabourUpdateTypeUpdated).
type LabourUpdatePosted struct {
	UpdateID   uuid.UUID
	UpdateType UpdateType
	Message    string
	PostedBy   string
	PostedAt   time.Time
}

func (LabourUpdatePosted) EventType() string { return "LabourUpdatePosted" }
func (LabourUpdatePosted) EventVersion() int { return 1 }

// AllEventTypes lists every registered event type, used to build the codec.
func AllEventTypes() []Event {
	return []Event{
		LabourPlanned{}, LabourBegun{}, ContractionStarted{}, ContractionEnded{},
		ContractionUpdated{}, ContractionRemoved{}, LabourPhaseChanged{}, LabourCompleted{},
		SubscriberRequested{}, SubscriberApproved{}, SubscriberBlocked{}, SubscriberRemoved{},
		SubscriberUnsubscribed{}, SubscriptionAccessLevelUpdated{}, SubscriptionTokenGenerated{},
		LabourUpdatePosted{},
	}
}
