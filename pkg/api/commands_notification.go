package api

import (
	"fmt"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/notification"
)

type requestNotificationBody struct {
	Channel      string            `json:"channel" validate:"required,oneof=EMAIL SMS WHATSAPP"`
	Destination  string            `json:"destination" validate:"required"`
	TemplateData map[string]string `json:"template_data"`
	Priority     string            `json:"priority" validate:"omitempty,oneof=Normal High"`
}

type storeRenderedContentBody struct {
	Channel         string `json:"channel" validate:"required,oneof=EMAIL SMS WHATSAPP"`
	RenderedContent string `json:"rendered_content" validate:"required"`
}

type markAsDispatchedBody struct {
	ExternalID string `json:"external_id" validate:"required"`
}

type markAsFailedBody struct {
	Reason string `json:"reason" validate:"required"`
}

// decodeNotificationCommand turns a command body into the Notification
// domain command it names. The Notification aggregate has no
// principal/capability model;
// callers of these routes are system actors — the delivery webhook
// adapter, the queue consumer, an operator.
func decodeNotificationCommand(body CommandBody) (notification.Command, error) {
	switch body.Type {
	case "RequestNotification":
		var b requestNotificationBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, err
		}
		priority := notification.PriorityNormal
		if b.Priority != "" {
			priority = notification.Priority(b.Priority)
		}
		return notification.RequestNotification{
			Channel:      notification.Channel(b.Channel),
			Destination:  b.Destination,
			TemplateData: b.TemplateData,
			Priority:     priority,
		}, nil

	case "StoreRenderedContent":
		var b storeRenderedContentBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, err
		}
		return notification.StoreRenderedContent{
			Channel:         notification.Channel(b.Channel),
			RenderedContent: b.RenderedContent,
		}, nil

	case "MarkAsDispatched":
		var b markAsDispatchedBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, err
		}
		return notification.MarkAsDispatched{ExternalID: b.ExternalID}, nil

	case "MarkAsDelivered":
		return notification.MarkAsDelivered{}, nil

	case "MarkAsFailed":
		var b markAsFailedBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, err
		}
		return notification.MarkAsFailed{Reason: b.Reason}, nil

	case "RetryNotification":
		return notification.RetryNotification{}, nil

	default:
		return nil, &eventsourcing.InvalidCommandError{Msg: fmt.Sprintf("unknown notification command type %q", body.Type)}
	}
}
