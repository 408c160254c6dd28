// Package labour implements the Labour aggregate: its state, the events
// that can mutate it, the commands accepted against it, the pure command
// handler, and the derived phase-progression rule.
package labour

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the labour lifecycle stage. Phases only ever advance, except
// that nothing advances out of Complete.
type Phase string

const (
	PhasePlanned    Phase = "PLANNED"
	PhaseEarly      Phase = "EARLY"
	PhaseActive     Phase = "ACTIVE"
	PhaseTransition Phase = "TRANSITION"
	PhaseComplete   Phase = "COMPLETE"
)

// rank gives phases their natural order for the monotonicity check.
var rank = map[Phase]int{
	PhasePlanned:    0,
	PhaseEarly:      1,
	PhaseActive:     2,
	PhaseTransition: 3,
	PhaseComplete:   4,
}

// AtLeast reports whether p is at or beyond other in the natural order.
func (p Phase) AtLeast(other Phase) bool {
	return rank[p] >= rank[other]
}

// SubscriberRole distinguishes how a subscriber relates to the labour.
type SubscriberRole string

const (
	RolePartner            SubscriberRole = "PARTNER"
	RoleFriendsAndFamily   SubscriberRole = "FRIENDS_AND_FAMILY"
	RoleHealthcareProvider SubscriberRole = "HEALTHCARE_PROVIDER"
)

// SubscriptionStatus is the lifecycle of one subscription.
type SubscriptionStatus string

const (
	SubscriptionRequested    SubscriptionStatus = "REQUESTED"
	SubscriptionSubscribed   SubscriptionStatus = "SUBSCRIBED"
	SubscriptionUnsubscribed SubscriptionStatus = "UNSUBSCRIBED"
	SubscriptionRemoved      SubscriptionStatus = "REMOVED"
	SubscriptionBlocked      SubscriptionStatus = "BLOCKED"
)

// AccessLevel gates how much of the labour a subscriber may see.
type AccessLevel string

const (
	AccessBasic AccessLevel = "BASIC"
	AccessFull  AccessLevel = "FULL"
)

// ContactMethod is a channel a subscriber can be notified through.
type ContactMethod string

const (
	ContactEmail    ContactMethod = "EMAIL"
	ContactSMS      ContactMethod = "SMS"
	ContactWhatsApp ContactMethod = "WHATSAPP"
)

// UpdateType distinguishes a routine status update from a broadcast
// announcement (rate-limited).
type UpdateType string

const (
	UpdateTypeStatusUpdate UpdateType = "STATUS_UPDATE"
	UpdateTypeAnnouncement UpdateType = "ANNOUNCEMENT"
)

// Contraction is one recorded contraction. EndTime absent means the
// contraction is still active.
type Contraction struct {
	ID        uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
	Intensity *int
}

// Active reports whether the contraction has not yet ended.
func (c Contraction) Active() bool {
	return c.EndTime == nil
}

// Duration returns the contraction's length; zero if still active.
func (c Contraction) Duration() time.Duration {
	if c.EndTime == nil {
		return 0
	}
	return c.EndTime.Sub(c.StartTime)
}

// LabourUpdate is one posted update (status or announcement).
type LabourUpdate struct {
	ID         uuid.UUID
	UpdateType UpdateType
	Message    string
	PostedBy   string
	PostedAt   time.Time
}

// Subscription is one subscriber's relationship to the labour.
type Subscription struct {
	ID             uuid.UUID
	SubscriberID   string
	Role           SubscriberRole
	Status         SubscriptionStatus
	AccessLevel    AccessLevel
	ContactMethods []ContactMethod
}
