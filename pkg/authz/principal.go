// Package authz implements the authorisation layer:
// principal resolution against a Labour aggregate's current state, a
// capability enum, and the per-action capability map that the host's
// fetch path consults before running a command or query handler.
package authz

import (
	"github.com/fern-labour/labour-core/pkg/labour"
)

// PrincipalKind distinguishes the four ways a verified caller can relate
// to a Labour aggregate.
type PrincipalKind string

const (
	KindMother       PrincipalKind = "Mother"
	KindSubscriber   PrincipalKind = "Subscriber"
	KindInternal     PrincipalKind = "Internal"
	KindUnassociated PrincipalKind = "Unassociated"
)

// Principal is a verified caller's role relative to one Labour aggregate.
// Subscriber carries the fields the capability map needs to
// tell a SUBSCRIBED friend-and-family member apart from one who has since
// been blocked or removed.
type Principal struct {
	Kind           PrincipalKind
	SubscriptionID string
	Role           labour.SubscriberRole
	Status         labour.SubscriptionStatus
}

// Mother returns the Mother principal.
func Mother() Principal { return Principal{Kind: KindMother} }

// Internal returns the Internal (system caller) principal.
func Internal() Principal { return Principal{Kind: KindInternal} }

// Unassociated returns the Unassociated principal — a verified user with
// no relationship to the aggregate at all.
func Unassociated() Principal { return Principal{Kind: KindUnassociated} }

// Resolve determines a caller's principal: compare userID to the
// labour's mother_id; else look for a subscription belonging to userID;
// else Unassociated. state may be nil (no aggregate yet, e.g. PlanLabour),
// in which case the caller is always Unassociated — the act of creating
// the aggregate is what makes them its Mother, and PlanLabour's required
// capability is granted to Unassociated for exactly this reason (see
// capability.go).
func Resolve(state *labour.State, userID string) Principal {
	if state == nil {
		return Unassociated()
	}
	if userID != "" && userID == state.MotherID {
		return Mother()
	}
	if sub := state.SubscriptionBySubscriber(userID); sub != nil {
		return Principal{
			Kind:           KindSubscriber,
			SubscriptionID: sub.ID.String(),
			Role:           sub.Role,
			Status:         sub.Status,
		}
	}
	return Unassociated()
}
