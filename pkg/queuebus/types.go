// Package queuebus implements the command bus: a
// Postgres-backed queue of typed QueueMessage envelopes that the
// QueuePublishExecutor (pkg/processmanager) enqueues for non-priority
// SendNotification effects, and that a worker pool claims and routes back
// into the owning entity's fetch path, closing the loop. Claiming uses
// FOR UPDATE SKIP LOCKED with jittered polling so concurrent workers
// never double-claim a row.
package queuebus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Variant distinguishes how a QueueMessage should be routed once claimed.
type Variant string

const (
	VariantPublic   Variant = "Public"
	VariantInternal Variant = "Internal"
	VariantService  Variant = "Service"
	VariantAdmin    Variant = "Admin"
)

// Status mirrors the queue_messages.status column.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusCompleted  Status = "completed"
	StatusDeadLetter Status = "dead_letter"
)

// MaxClaimAttempts bounds the queue's own retry count before a message is
// quarantined. It mirrors MaxRetryAttempts (pkg/processmanager), the
// effect ledger's at-least-once delivery retry bound.
const MaxClaimAttempts = 6

// Message is one row of the queue_messages table: an
// envelope addressed to a target aggregate, carrying the idempotency key
// the target's command handler uses to deduplicate.
type Message struct {
	MessageID         uuid.UUID
	Variant           Variant
	TargetKind        string
	TargetAggregateID uuid.UUID
	Payload           json.RawMessage
	IdempotencyKey    uuid.UUID
	Status            Status
	Attempts          int
	CreatedAt         time.Time
	ClaimedAt         *time.Time
}
