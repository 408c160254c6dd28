package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// FromEvents folds a Notification's event log into its current State.
func FromEvents(events []Event) (*State, bool) {
	if len(events) == 0 {
		return nil, false
	}
	state := newState()
	for _, event := range events {
		Apply(state, event)
	}
	return state, true
}

// Apply mutates state in place for a single event.
func Apply(state *State, event Event) {
	switch e := event.(type) {
	case NotificationRequested:
		state.ID = e.NotificationID
		state.Channel = e.Channel
		state.Destination = e.Destination
		state.TemplateData = e.TemplateData
		state.Priority = e.Priority
		state.Status = StatusRequested

	case ContentRendered:
		state.RenderedContent = e.RenderedContent
		state.Status = StatusRendered

	case Dispatched:
		state.ExternalID = e.ExternalID
		state.Status = StatusSent

	case Delivered:
		state.Status = StatusDelivered

	case Failed:
		state.FailureReason = e.Reason
		state.Status = StatusFailed

	case RetryRequeued:
		state.FailureReason = ""
		state.ExternalID = ""
		state.Status = StatusRequested
	}
}

// HandleCommand validates cmd against state and returns the events it
// produces.
func HandleCommand(state *State, cmd Command, now time.Time, newID func() uuid.UUID) ([]Event, error) {
	switch c := cmd.(type) {

	case RequestNotification:
		if state != nil {
			return nil, &eventsourcing.AlreadyExistsError{Kind: "Notification", ID: state.ID.String()}
		}
		return []Event{NotificationRequested{
			NotificationID: newID(),
			Channel:        c.Channel,
			Destination:    c.Destination,
			TemplateData:   c.TemplateData,
			Priority:       c.Priority,
		}}, nil

	case StoreRenderedContent:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Status != StatusRequested {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Status), To: "RENDERED"}
		}
		if c.Channel != state.Channel {
			return nil, &eventsourcing.ValidationError{Msg: "channel does not match notification's channel"}
		}
		return []Event{ContentRendered{RenderedContent: c.RenderedContent}}, nil

	case MarkAsDispatched:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Status != StatusRendered && state.Status != StatusFailed {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Status), To: "SENT"}
		}
		return []Event{Dispatched{ExternalID: c.ExternalID}}, nil

	case MarkAsDelivered:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Status != StatusSent {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Status), To: "DELIVERED"}
		}
		if state.ExternalID == "" {
			return nil, &eventsourcing.ValidationError{Msg: "external id must be set before delivery confirmation"}
		}
		return []Event{Delivered{}}, nil

	case MarkAsFailed:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Status != StatusSent {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Status), To: "FAILED"}
		}
		if state.ExternalID == "" {
			return nil, &eventsourcing.ValidationError{Msg: "external id must be set before failure can be recorded"}
		}
		return []Event{Failed{Reason: c.Reason}}, nil

	case RetryNotification:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Status != StatusFailed {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Status), To: "REQUESTED"}
		}
		return []Event{RetryRequeued{}}, nil

	default:
		return nil, &eventsourcing.InvalidCommandError{Msg: "unrecognised command"}
	}
}

func requireExists(state *State) error {
	if state == nil {
		return &eventsourcing.NotFoundError{Kind: "Notification", ID: ""}
	}
	return nil
}
