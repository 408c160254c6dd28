// Package policy implements the policy engine: pure
// functions mapping a committed Labour event plus its aggregate context to
// zero or more declarative effect intents. Effects are persisted by the
// process manager (pkg/processmanager) before anything external is called.
package policy

import (
	"crypto/sha1" //nolint:gosec // deterministic UUIDv5 namespace hash, not security-sensitive
	"fmt"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/labour"
)

// Effect is implemented by every variant a policy can emit.
type Effect interface {
	EffectType() string
}

// RecipientContext tags who a SendNotification effect's intent is for, per
// tagged as Subscriber, LabourOwner or Email.
type RecipientContext interface {
	recipientContext()
}

// SubscriberRecipient addresses one of the labour's subscriptions.
type SubscriberRecipient struct {
	SubscriptionID uuid.UUID
	SubscriberID   string
	Channel        labour.ContactMethod
}

func (SubscriberRecipient) recipientContext() {}

// LabourOwnerRecipient addresses the labouring mother herself.
type LabourOwnerRecipient struct {
	MotherID string
}

func (LabourOwnerRecipient) recipientContext() {}

// EmailRecipient addresses a bare email address with no subscription or
// mother association. No policy in the registry produces it;
// SubscriberRequested's notify-the-owner path uses LabourOwnerRecipient.
type EmailRecipient struct {
	Address string
}

func (EmailRecipient) recipientContext() {}

// NotificationPayload is implemented by every typed notification body a
// policy can request.
type NotificationPayload interface {
	NotificationKind() string
}

// LabourStarted is sent to subscribers when a labour begins.
type LabourStarted struct {
	LabourID uuid.UUID
}

func (LabourStarted) NotificationKind() string { return "labour_begun" }

// LabourCompleted is sent to subscribers when a labour completes.
type LabourCompleted struct {
	LabourID uuid.UUID
	Notes    string
}

func (LabourCompleted) NotificationKind() string { return "labour_completed" }

// AnnouncementPosted is sent to subscribers for an ANNOUNCEMENT-type
// labour update.
type AnnouncementPosted struct {
	LabourID uuid.UUID
	Message  string
}

func (AnnouncementPosted) NotificationKind() string { return "announcement" }

// SubscriptionApproved is sent to a subscriber once the mother approves
// their request.
type SubscriptionApproved struct {
	LabourID uuid.UUID
}

func (SubscriptionApproved) NotificationKind() string { return "subscription_approved" }

// SubscriberRequested is sent to the labour owner when someone requests
// access.
type SubscriberRequested struct {
	LabourID       uuid.UUID
	RequesterID    string
	SubscriptionID uuid.UUID
}

func (SubscriberRequested) NotificationKind() string { return "subscriber_requested" }

// LabourInvite carries a freshly generated subscription token to the
// mother so she can share it.
type LabourInvite struct {
	LabourID uuid.UUID
	Token    string
}

func (LabourInvite) NotificationKind() string { return "labour_invite" }

// NotificationIntent is the payload of a SendNotification effect: enough
// information for an executor to hand a notification request off to the
// Notification aggregate.
type NotificationIntent struct {
	IdempotencyKey uuid.UUID
	LabourID       uuid.UUID
	Context        RecipientContext
	Channel        labour.ContactMethod
	Sender         string
	Payload        NotificationPayload
}

// SendNotification requests that the process manager dispatch a
// notification intent.
type SendNotification struct {
	Intent NotificationIntent
}

func (SendNotification) EffectType() string { return "SendNotification" }

// GenerateSubscriptionToken requests a freshly minted subscription token
// for a newly planned labour.
type GenerateSubscriptionToken struct {
	IdempotencyKey uuid.UUID
	LabourID       uuid.UUID
	MotherID       string
}

func (GenerateSubscriptionToken) EffectType() string { return "GenerateSubscriptionToken" }

// DeriveNotificationIdempotencyKey derives
// hash(labour_id, source_sequence, recipient_id, notification_kind).
// Re-running a policy for the same event sequence yields byte-identical
// keys, so the ledger's idempotency check makes re-application a no-op.
func DeriveNotificationIdempotencyKey(labourID uuid.UUID, sourceSequence int64, recipientID string, notificationKind string) uuid.UUID {
	name := fmt.Sprintf("%s:%d:%s:%s", labourID, sourceSequence, recipientID, notificationKind)
	return uuid.NewHash(sha1.New(), namespaceNotification, []byte(name), 5)
}

// DeriveTokenIdempotencyKey derives the idempotency key for a
// GenerateSubscriptionToken effect: one token per labour, so the key is
// stable across any number of re-runs against the same aggregate.
func DeriveTokenIdempotencyKey(labourID uuid.UUID) uuid.UUID {
	return uuid.NewHash(sha1.New(), namespaceNotification, []byte("token:"+labourID.String()), 5)
}

// namespaceNotification is a fixed UUIDv5 namespace for effect idempotency
// keys, analogous to the well-known DNS/URL namespaces google/uuid ships.
var namespaceNotification = uuid.MustParse("6f6e9f2e-2f4b-4f0a-9f3d-9f0b7b5b9c11")
