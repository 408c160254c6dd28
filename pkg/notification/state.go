package notification

import (
	"github.com/google/uuid"
)

// State is the Notification aggregate's folded state.
type State struct {
	ID              uuid.UUID
	Channel         Channel
	Destination     string
	TemplateData    map[string]string
	Priority        Priority
	Status          Status
	RenderedContent string
	ExternalID      string
	FailureReason   string
}

func newState() *State {
	return &State{TemplateData: make(map[string]string)}
}
