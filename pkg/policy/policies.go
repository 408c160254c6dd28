package policy

import (
	"github.com/fern-labour/labour-core/pkg/labour"
)

// generateSubscriptionToken implements "LabourPlanned → generate
// subscription token".
func generateSubscriptionToken(event labour.Event, ctx Context) []Effect {
	e := event.(labour.LabourPlanned)
	return []Effect{GenerateSubscriptionToken{
		IdempotencyKey: DeriveTokenIdempotencyKey(e.LabourID),
		LabourID:       e.LabourID,
		MotherID:       e.MotherID,
	}}
}

// notifySubscribersLabourBegun implements "LabourBegun → notify every
// SUBSCRIBED subscription across each of its contact_methods".
func notifySubscribersLabourBegun(_ labour.Event, ctx Context) []Effect {
	return notifyEachSubscriberContactMethod(ctx, func(sub labour.Subscription) NotificationPayload {
		return LabourStarted{LabourID: ctx.State.ID}
	})
}

// notifySubscribersLabourCompleted notifies every SUBSCRIBED subscription
// when the labour completes, the symmetric counterpart of the
// begun notification.
func notifySubscribersLabourCompleted(event labour.Event, ctx Context) []Effect {
	e := event.(labour.LabourCompleted)
	return notifyEachSubscriberContactMethod(ctx, func(sub labour.Subscription) NotificationPayload {
		return LabourCompleted{LabourID: ctx.State.ID, Notes: e.Notes}
	})
}

// notifyOwnerOfRequest implements "SubscriberRequested → notify labour
// owner via email".
func notifyOwnerOfRequest(event labour.Event, ctx Context) []Effect {
	e := event.(labour.SubscriberRequested)
	kind := SubscriberRequested{}.NotificationKind()
	return []Effect{SendNotification{Intent: NotificationIntent{
		IdempotencyKey: DeriveNotificationIdempotencyKey(ctx.State.ID, ctx.Sequence, ctx.State.MotherID, kind),
		LabourID:       ctx.State.ID,
		Context:        LabourOwnerRecipient{MotherID: ctx.State.MotherID},
		Channel:        labour.ContactEmail,
		Sender:         "system",
		Payload: SubscriberRequested{
			LabourID:       ctx.State.ID,
			RequesterID:    e.SubscriberID,
			SubscriptionID: e.SubscriptionID,
		},
	}}}
}

// notifySubscriberApproved notifies the approved subscriber across each of
// their contact methods.
func notifySubscriberApproved(event labour.Event, ctx Context) []Effect {
	e := event.(labour.SubscriberApproved)
	sub, ok := ctx.State.Subscriptions[e.SubscriptionID]
	if !ok {
		return nil
	}
	kind := SubscriptionApproved{}.NotificationKind()
	effects := make([]Effect, 0, len(e.ContactMethods))
	for _, method := range e.ContactMethods {
		effects = append(effects, SendNotification{Intent: NotificationIntent{
			IdempotencyKey: DeriveNotificationIdempotencyKey(ctx.State.ID, ctx.Sequence, sub.SubscriberID+":"+string(method), kind),
			LabourID:       ctx.State.ID,
			Context: SubscriberRecipient{
				SubscriptionID: e.SubscriptionID,
				SubscriberID:   sub.SubscriberID,
				Channel:        method,
			},
			Channel: method,
			Sender:  "system",
			Payload: SubscriptionApproved{LabourID: ctx.State.ID},
		}})
	}
	return effects
}

// notifySubscribersOfUpdate handles posted labour updates. Update type is
// modelled on LabourUpdatePosted directly rather than as a separate
// "type changed" event (see DESIGN.md): an
// ANNOUNCEMENT update notifies every subscriber; a STATUS_UPDATE is
// suppressed — it is visible through the labour_updates read model, not
// pushed.
func notifySubscribersOfUpdate(event labour.Event, ctx Context) []Effect {
	e := event.(labour.LabourUpdatePosted)
	if e.UpdateType != labour.UpdateTypeAnnouncement {
		return nil
	}
	return notifyEachSubscriberContactMethod(ctx, func(sub labour.Subscription) NotificationPayload {
		return AnnouncementPosted{LabourID: ctx.State.ID, Message: e.Message}
	})
}

// notifyEachSubscriberContactMethod fans an effect out across every
// SUBSCRIBED subscription's contact methods, deriving one idempotency key
// per (subscriber, channel) pair so a duplicate policy run never produces
// a duplicate ledger row.
func notifyEachSubscriberContactMethod(ctx Context, payload func(sub labour.Subscription) NotificationPayload) []Effect {
	var effects []Effect
	for _, sub := range ctx.State.Subscriptions {
		if sub.Status != labour.SubscriptionSubscribed {
			continue
		}
		p := payload(sub)
		for _, method := range sub.ContactMethods {
			effects = append(effects, SendNotification{Intent: NotificationIntent{
				IdempotencyKey: DeriveNotificationIdempotencyKey(ctx.State.ID, ctx.Sequence, sub.SubscriberID+":"+string(method), p.NotificationKind()),
				LabourID:       ctx.State.ID,
				Context: SubscriberRecipient{
					SubscriptionID: sub.ID,
					SubscriberID:   sub.SubscriberID,
					Channel:        method,
				},
				Channel: method,
				Sender:  "system",
				Payload: p,
			}})
		}
	}
	return effects
}
