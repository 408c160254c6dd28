package labour

import (
	"time"

	"github.com/google/uuid"
)

// State is the Labour aggregate's folded state. It is never
// persisted directly — only the event log is durable; State is rebuilt by
// FromEvents on every load.
type State struct {
	ID                 uuid.UUID
	MotherID           string
	MotherName         string
	Phase              Phase
	DueDate            time.Time
	FirstLabour        bool
	StartedAt          *time.Time
	CompletedAt        *time.Time
	Contractions       map[uuid.UUID]Contraction
	LabourUpdates      []LabourUpdate
	Subscriptions      map[uuid.UUID]Subscription
	SubscriptionToken  string
	LastAnnouncementAt *time.Time
}

func newState() *State {
	return &State{
		Contractions:  make(map[uuid.UUID]Contraction),
		Subscriptions: make(map[uuid.UUID]Subscription),
	}
}

// ActiveContraction returns the currently open contraction, if any.
func (s *State) ActiveContraction() *Contraction {
	for _, c := range s.Contractions {
		if c.Active() {
			cc := c
			return &cc
		}
	}
	return nil
}

// SubscriptionBySubscriber finds a subscriber's subscription, if one exists.
func (s *State) SubscriptionBySubscriber(subscriberID string) *Subscription {
	for _, sub := range s.Subscriptions {
		if sub.SubscriberID == subscriberID {
			ss := sub
			return &ss
		}
	}
	return nil
}

// CanSendAnnouncement rate-limits announcement-type updates: at most one
// per minute, tracked by the last-announcement clock.
func (s *State) CanSendAnnouncement(now time.Time) bool {
	if s.LastAnnouncementAt == nil {
		return true
	}
	return now.Sub(*s.LastAnnouncementAt) >= AnnouncementCooldown
}

// AnnouncementCooldown is the minimum spacing between announcement-type
// labour updates.
const AnnouncementCooldown = time.Minute
