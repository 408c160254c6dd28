package labour

import (
	"time"

	"github.com/google/uuid"
)

// Command is implemented by every Labour domain command.
type Command interface {
	CommandType() string
}

// PlanLabour creates a new Labour aggregate.
type PlanLabour struct {
	MotherID    string
	MotherName  string
	DueDate     time.Time
	FirstLabour bool
}

func (PlanLabour) CommandType() string { return "PlanLabour" }

// BeginLabour transitions PLANNED -> EARLY.
type BeginLabour struct {
	StartTime time.Time
}

func (BeginLabour) CommandType() string { return "BeginLabour" }

// StartContraction records a new contraction, implicitly beginning labour
// if it is still PLANNED.
type StartContraction struct {
	StartTime time.Time
}

func (StartContraction) CommandType() string { return "StartContraction" }

// EndContraction closes the currently active contraction.
type EndContraction struct {
	ContractionID uuid.UUID
	EndTime       time.Time
	Intensity     *int
}

func (EndContraction) CommandType() string { return "EndContraction" }

// UpdateContraction edits a previously recorded contraction's window or
// intensity.
type UpdateContraction struct {
	ContractionID uuid.UUID
	StartTime     time.Time
	EndTime       *time.Time
	Intensity     *int
}

func (UpdateContraction) CommandType() string { return "UpdateContraction" }

// RemoveContraction deletes a contraction record.
type RemoveContraction struct {
	ContractionID uuid.UUID
}

func (RemoveContraction) CommandType() string { return "RemoveContraction" }

// RequestAccess is a subscriber's request to follow the labour, gated by
// the labour's current subscription token.
type RequestAccess struct {
	SubscriberID string
	Role         SubscriberRole
	Token        string
}

func (RequestAccess) CommandType() string { return "RequestAccess" }

// ApproveSubscriber moves a REQUESTED subscription to SUBSCRIBED.
type ApproveSubscriber struct {
	SubscriptionID uuid.UUID
	AccessLevel    AccessLevel
	ContactMethods []ContactMethod
}

func (ApproveSubscriber) CommandType() string { return "ApproveSubscriber" }

// BlockSubscriber moves a subscription to BLOCKED.
type BlockSubscriber struct {
	SubscriptionID uuid.UUID
}

func (BlockSubscriber) CommandType() string { return "BlockSubscriber" }

// RemoveSubscriber moves a subscription to REMOVED.
type RemoveSubscriber struct {
	SubscriptionID uuid.UUID
}

func (RemoveSubscriber) CommandType() string { return "RemoveSubscriber" }

// Unsubscribe lets a subscriber remove themselves.
type Unsubscribe struct {
	SubscriptionID uuid.UUID
}

func (Unsubscribe) CommandType() string { return "Unsubscribe" }

// UpdateSubscriptionAccessLevel changes a subscriber's access level.
type UpdateSubscriptionAccessLevel struct {
	SubscriptionID uuid.UUID
	AccessLevel    AccessLevel
}

func (UpdateSubscriptionAccessLevel) CommandType() string { return "UpdateSubscriptionAccessLevel" }

// PostLabourUpdate posts a status update or (rate-limited) announcement.
type PostLabourUpdate struct {
	UpdateType UpdateType
	Message    string
	PostedBy   string
	PostedAt   time.Time
}

func (PostLabourUpdate) CommandType() string { return "PostLabourUpdate" }

// CompleteLabour marks the labour COMPLETE from any non-terminal phase.
type CompleteLabour struct {
	CompletedAt time.Time
	Notes       string
}

func (CompleteLabour) CommandType() string { return "CompleteLabour" }

// SetSubscriptionToken is a privileged, system-only command (issued by the
// TokenGeneratorExecutor following a GenerateSubscriptionToken effect) that
// records a freshly minted token.
type SetSubscriptionToken struct {
	Token string
}

func (SetSubscriptionToken) CommandType() string { return "SetSubscriptionToken" }
