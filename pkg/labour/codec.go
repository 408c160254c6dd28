package labour

import (
	"encoding/json"
	"fmt"
)

// Codec encodes and decodes Labour events to and from the opaque
// json.RawMessage payloads the event store persists.
type Codec struct{}

// NewCodec constructs a Codec. It takes no arguments; event types are
// dispatched by name rather than via a registry, mirroring the small,
// fixed event set of a single aggregate.
func NewCodec() Codec { return Codec{} }

// Encode marshals event to JSON.
func (Codec) Encode(event Event) (json.RawMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", errEncode, event.EventType(), err)
	}
	return data, nil
}

// Decode unmarshals data into the concrete event named by eventType. An
// unrecognised eventType or version is reported rather than silently
// ignored, since a projector replaying history cannot skip events.
func (Codec) Decode(eventType string, eventVersion int, data json.RawMessage) (Event, error) {
	if eventVersion != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d for %s", errDecode, eventVersion, eventType)
	}

	var event Event
	switch eventType {
	case "LabourPlanned":
		var e LabourPlanned
		event = &e
	case "LabourBegun":
		var e LabourBegun
		event = &e
	case "ContractionStarted":
		var e ContractionStarted
		event = &e
	case "ContractionEnded":
		var e ContractionEnded
		event = &e
	case "ContractionUpdated":
		var e ContractionUpdated
		event = &e
	case "ContractionRemoved":
		var e ContractionRemoved
		event = &e
	case "LabourPhaseChanged":
		var e LabourPhaseChanged
		event = &e
	case "LabourCompleted":
		var e LabourCompleted
		event = &e
	case "SubscriberRequested":
		var e SubscriberRequested
		event = &e
	case "SubscriberApproved":
		var e SubscriberApproved
		event = &e
	case "SubscriberBlocked":
		var e SubscriberBlocked
		event = &e
	case "SubscriberRemoved":
		var e SubscriberRemoved
		event = &e
	case "SubscriberUnsubscribed":
		var e SubscriberUnsubscribed
		event = &e
	case "SubscriptionAccessLevelUpdated":
		var e SubscriptionAccessLevelUpdated
		event = &e
	case "SubscriptionTokenGenerated":
		var e SubscriptionTokenGenerated
		event = &e
	case "LabourUpdatePosted":
		var e LabourUpdatePosted
		event = &e
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", errDecode, eventType)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errDecode, eventType, err)
	}
	return dereference(event), nil
}

// dereference unwraps the pointer Decode builds so callers get the same
// value type Apply and HandleCommand produce.
func dereference(event Event) Event {
	switch e := event.(type) {
	case *LabourPlanned:
		return *e
	case *LabourBegun:
		return *e
	case *ContractionStarted:
		return *e
	case *ContractionEnded:
		return *e
	case *ContractionUpdated:
		return *e
	case *ContractionRemoved:
		return *e
	case *LabourPhaseChanged:
		return *e
	case *LabourCompleted:
		return *e
	case *SubscriberRequested:
		return *e
	case *SubscriberApproved:
		return *e
	case *SubscriberBlocked:
		return *e
	case *SubscriberRemoved:
		return *e
	case *SubscriberUnsubscribed:
		return *e
	case *SubscriptionAccessLevelUpdated:
		return *e
	case *SubscriptionTokenGenerated:
		return *e
	case *LabourUpdatePosted:
		return *e
	default:
		return event
	}
}

var (
	errEncode = fmt.Errorf("labour: event encode error")
	errDecode = fmt.Errorf("labour: event decode error")
)
