package authz

import "github.com/fern-labour/labour-core/pkg/labour"

// Capability is a named permission; principals hold sets of them and
// every action requires exactly one.
type Capability string

const (
	CapManageLabour                  Capability = "ManageLabour"
	CapExecuteLabourCommand          Capability = "ExecuteLabourCommand"
	CapReadLabour                    Capability = "ReadLabour"
	CapManageOwnSubscription         Capability = "ManageOwnSubscription"
	CapManageLabourSubscriptions     Capability = "ManageLabourSubscriptions"
	CapManageSubscriptionToken       Capability = "ManageSubscriptionToken"
	CapReadSubscriptions             Capability = "ReadSubscriptions"
	CapReadOwnSubscription           Capability = "ReadOwnSubscription"
	CapPostApplicationLabourUpdates  Capability = "PostApplicationLabourUpdates"
	CapUpdateSubscriptionAccessLevel Capability = "UpdateSubscriptionAccessLevel"
)

// CapabilitiesFor returns the full set a principal holds. Subscribers
// whose status is not SUBSCRIBED get the empty set — a REQUESTED,
// BLOCKED, REMOVED, or UNSUBSCRIBED subscription confers nothing.
func CapabilitiesFor(p Principal) map[Capability]struct{} {
	switch p.Kind {
	case KindMother:
		// Access-level promotion is deliberately absent: it is a
		// system-level operation held only by Internal callers.
		return set(
			CapManageLabour,
			CapExecuteLabourCommand,
			CapReadLabour,
			CapManageLabourSubscriptions,
			CapReadSubscriptions,
		)
	case KindSubscriber:
		if p.Status != labour.SubscriptionSubscribed {
			return set()
		}
		return set(
			CapReadLabour,
			CapManageOwnSubscription,
			CapReadOwnSubscription,
		)
	case KindInternal:
		// "Internal holds only system-level capabilities (application
		// updates, token management, access-level promotion) — it cannot
		// impersonate the mother".
		return set(
			CapPostApplicationLabourUpdates,
			CapManageSubscriptionToken,
			CapUpdateSubscriptionAccessLevel,
		)
	case KindUnassociated:
		// PlanLabour is the one action an Unassociated caller may take:
		// creating a labour is what makes them its Mother.
		return set(CapManageLabour)
	default:
		return set()
	}
}

func set(caps ...Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}

// Has reports whether capabilities contains cap.
func Has(capabilities map[Capability]struct{}, cap Capability) bool {
	_, ok := capabilities[cap]
	return ok
}
