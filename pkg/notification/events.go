package notification

import "github.com/google/uuid"

// Event is implemented by every Notification domain event.
type Event interface {
	EventType() string
	EventVersion() int
}

// NotificationRequested is the aggregate's creation event.
type NotificationRequested struct {
	NotificationID uuid.UUID
	Channel        Channel
	Destination    string
	TemplateData   map[string]string
	Priority       Priority
}

func (NotificationRequested) EventType() string { return "NotificationRequested" }
func (NotificationRequested) EventVersion() int { return 1 }

// ContentRendered records the rendered body for a REQUESTED notification.
type ContentRendered struct {
	RenderedContent string
}

func (ContentRendered) EventType() string { return "ContentRendered" }
func (ContentRendered) EventVersion() int { return 1 }

// Dispatched records that the executor handed the rendered content to the
// channel provider.
type Dispatched struct {
	ExternalID string
}

func (Dispatched) EventType() string { return "Dispatched" }
func (Dispatched) EventVersion() int { return 1 }

// Delivered records provider-confirmed delivery (typically via webhook).
type Delivered struct{}

func (Delivered) EventType() string { return "Delivered" }
func (Delivered) EventVersion() int { return 1 }

// Failed records a terminal (until retried) delivery failure.
type Failed struct {
	Reason string
}

func (Failed) EventType() string { return "Failed" }
func (Failed) EventVersion() int { return 1 }

// RetryRequeued moves a FAILED notification back to REQUESTED so it can be
// rendered and dispatched again.
type RetryRequeued struct{}

func (RetryRequeued) EventType() string { return "RetryRequeued" }
func (RetryRequeued) EventVersion() int { return 1 }

// AllEventTypes lists every registered event type, used to build the codec.
func AllEventTypes() []Event {
	return []Event{
		NotificationRequested{}, ContentRendered{}, Dispatched{}, Delivered{},
		Failed{}, RetryRequeued{},
	}
}
