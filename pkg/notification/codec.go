package notification

import (
	"encoding/json"
	"fmt"
)

// Codec encodes and decodes Notification events to and from the opaque
// json.RawMessage payloads the event store persists.
type Codec struct{}

// NewCodec constructs a Codec.
func NewCodec() Codec { return Codec{} }

// Encode marshals event to JSON.
func (Codec) Encode(event Event) (json.RawMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", errEncode, event.EventType(), err)
	}
	return data, nil
}

// Decode unmarshals data into the concrete event named by eventType.
func (Codec) Decode(eventType string, eventVersion int, data json.RawMessage) (Event, error) {
	if eventVersion != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d for %s", errDecode, eventVersion, eventType)
	}

	var event Event
	switch eventType {
	case "NotificationRequested":
		var e NotificationRequested
		event = &e
	case "ContentRendered":
		var e ContentRendered
		event = &e
	case "Dispatched":
		var e Dispatched
		event = &e
	case "Delivered":
		var e Delivered
		event = &e
	case "Failed":
		var e Failed
		event = &e
	case "RetryRequeued":
		var e RetryRequeued
		event = &e
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", errDecode, eventType)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errDecode, eventType, err)
	}
	return dereference(event), nil
}

func dereference(event Event) Event {
	switch e := event.(type) {
	case *NotificationRequested:
		return *e
	case *ContentRendered:
		return *e
	case *Dispatched:
		return *e
	case *Delivered:
		return *e
	case *Failed:
		return *e
	case *RetryRequeued:
		return *e
	default:
		return event
	}
}

var (
	errEncode = fmt.Errorf("notification: event encode error")
	errDecode = fmt.Errorf("notification: event decode error")
)
