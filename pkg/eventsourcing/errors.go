package eventsourcing

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure dispositions that don't carry
// per-occurrence detail.
var (
	// ErrStorage wraps any backing-store fault from the event store, the
	// checkpoint repository, or the effect ledger.
	ErrStorage = errors.New("storage error")

	// ErrDeserialization indicates a stored event's JSON payload could not
	// be decoded into its domain event type. Projectors halt on this; the
	// command path never sees it.
	ErrDeserialization = errors.New("event deserialization error")

	// ErrExecutor wraps a failure from a process-manager executor.
	ErrExecutor = errors.New("executor error")

	// ErrProjector wraps a failure from a projector's batch application.
	ErrProjector = errors.New("projector error")

	// ErrAuthorisation indicates a principal lacks the capability required
	// for an action.
	ErrAuthorisation = errors.New("authorisation failed")
)

// NotFoundError indicates the referenced aggregate, read-model row, or
// projector checkpoint does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// AlreadyExistsError indicates a command attempted to create an aggregate
// (or sub-entity) that already exists. Idempotent replay of the same
// command must not surface this — it is only raised for a genuine second
// creation attempt under a different idempotency key.
type AlreadyExistsError struct {
	Kind string
	ID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.ID)
}

// InvalidStateTransitionError indicates a command is not valid from the
// aggregate's current state.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// ValidationError indicates a command failed domain-level validation
// (distinct from envelope/JSON-shape validation, which is rejected before
// the command ever reaches the handler).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// InvalidCommandError indicates the command is structurally well-formed
// JSON but not a command the handler recognises or accepts in any state.
type InvalidCommandError struct {
	Msg string
}

func (e *InvalidCommandError) Error() string {
	return e.Msg
}

// IsNotFound reports whether err (or something it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAlreadyExists reports whether err (or something it wraps) is an
// AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}
