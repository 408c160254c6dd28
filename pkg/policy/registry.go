package policy

import (
	"github.com/fern-labour/labour-core/pkg/labour"
)

// Context carries the aggregate state and the committed event's sequence
// number into a Policy — the "(event, context{state, sequence})" shape
// every policy receives.
type Context struct {
	State    *labour.State
	Sequence int64
}

// Policy is a pure function from one committed event plus its context to
// zero or more effects.
type Policy func(event labour.Event, ctx Context) []Effect

// Registry maps an event type name to the policies registered against it.
// The set is closed at construction time.
type Registry struct {
	byEventType map[string][]Policy
}

// NewRegistry builds the registry with the full production policy set
// wired in.
func NewRegistry() *Registry {
	r := &Registry{byEventType: make(map[string][]Policy)}
	r.Register(labour.LabourPlanned{}.EventType(), generateSubscriptionToken)
	r.Register(labour.LabourBegun{}.EventType(), notifySubscribersLabourBegun)
	r.Register(labour.LabourCompleted{}.EventType(), notifySubscribersLabourCompleted)
	r.Register(labour.SubscriberRequested{}.EventType(), notifyOwnerOfRequest)
	r.Register(labour.SubscriberApproved{}.EventType(), notifySubscriberApproved)
	r.Register(labour.LabourUpdatePosted{}.EventType(), notifySubscribersOfUpdate)
	return r
}

// Register adds a policy for eventType. Exposed so tests can build a
// narrower registry than NewRegistry's default set.
func (r *Registry) Register(eventType string, p Policy) {
	r.byEventType[eventType] = append(r.byEventType[eventType], p)
}

// Apply runs every policy registered for event's type and concatenates
// their effects, in registration order.
func (r *Registry) Apply(event labour.Event, ctx Context) []Effect {
	var effects []Effect
	for _, p := range r.byEventType[event.EventType()] {
		effects = append(effects, p(event, ctx)...)
	}
	return effects
}
