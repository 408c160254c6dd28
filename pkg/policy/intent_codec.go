package policy

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/labour"
)

// NotificationIntent embeds two interface-typed fields (Context, Payload)
// that encoding/json cannot round-trip without help — these tagged-union
// Marshal/Unmarshal methods mirror the {type, payload} envelope
// policy.EncodeEffect uses for the outer Effect.

type notificationIntentWire struct {
	IdempotencyKey uuid.UUID            `json:"idempotency_key"`
	LabourID       uuid.UUID            `json:"labour_id"`
	ContextType    string               `json:"context_type"`
	Context        json.RawMessage      `json:"context"`
	Channel        labour.ContactMethod `json:"channel"`
	Sender         string               `json:"sender"`
	PayloadKind    string               `json:"payload_kind"`
	Payload        json.RawMessage      `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (n NotificationIntent) MarshalJSON() ([]byte, error) {
	contextType, contextData, err := marshalRecipientContext(n.Context)
	if err != nil {
		return nil, err
	}
	payloadData, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}
	return json.Marshal(notificationIntentWire{
		IdempotencyKey: n.IdempotencyKey,
		LabourID:       n.LabourID,
		ContextType:    contextType,
		Context:        contextData,
		Channel:        n.Channel,
		Sender:         n.Sender,
		PayloadKind:    n.Payload.NotificationKind(),
		Payload:        payloadData,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NotificationIntent) UnmarshalJSON(data []byte) error {
	var wire notificationIntentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	context, err := unmarshalRecipientContext(wire.ContextType, wire.Context)
	if err != nil {
		return err
	}
	payload, err := unmarshalNotificationPayload(wire.PayloadKind, wire.Payload)
	if err != nil {
		return err
	}
	n.IdempotencyKey = wire.IdempotencyKey
	n.LabourID = wire.LabourID
	n.Context = context
	n.Channel = wire.Channel
	n.Sender = wire.Sender
	n.Payload = payload
	return nil
}

func marshalRecipientContext(ctx RecipientContext) (string, json.RawMessage, error) {
	var kind string
	switch ctx.(type) {
	case SubscriberRecipient:
		kind = "Subscriber"
	case LabourOwnerRecipient:
		kind = "LabourOwner"
	case EmailRecipient:
		kind = "Email"
	default:
		return "", nil, fmt.Errorf("marshal recipient context: unknown type %T", ctx)
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("marshal recipient context: %w", err)
	}
	return kind, data, nil
}

func unmarshalRecipientContext(kind string, data json.RawMessage) (RecipientContext, error) {
	switch kind {
	case "Subscriber":
		var c SubscriberRecipient
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal Subscriber context: %w", err)
		}
		return c, nil
	case "LabourOwner":
		var c LabourOwnerRecipient
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal LabourOwner context: %w", err)
		}
		return c, nil
	case "Email":
		var c EmailRecipient
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal Email context: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unmarshal recipient context: unknown kind %q", kind)
	}
}

func unmarshalNotificationPayload(kind string, data json.RawMessage) (NotificationPayload, error) {
	switch kind {
	case "labour_begun":
		var p LabourStarted
		err := json.Unmarshal(data, &p)
		return p, err
	case "labour_completed":
		var p LabourCompleted
		err := json.Unmarshal(data, &p)
		return p, err
	case "announcement":
		var p AnnouncementPosted
		err := json.Unmarshal(data, &p)
		return p, err
	case "subscription_approved":
		var p SubscriptionApproved
		err := json.Unmarshal(data, &p)
		return p, err
	case "subscriber_requested":
		var p SubscriberRequested
		err := json.Unmarshal(data, &p)
		return p, err
	case "labour_invite":
		var p LabourInvite
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unmarshal notification payload: unknown kind %q", kind)
	}
}
