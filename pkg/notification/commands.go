package notification

// Command is implemented by every Notification domain command.
type Command interface {
	CommandType() string
}

// RequestNotification creates a new Notification aggregate.
type RequestNotification struct {
	Channel      Channel
	Destination  string
	TemplateData map[string]string
	Priority     Priority
}

func (RequestNotification) CommandType() string { return "RequestNotification" }

// StoreRenderedContent records the rendered body; requires REQUESTED state
// and that the caller's channel matches the aggregate's.
type StoreRenderedContent struct {
	Channel         Channel
	RenderedContent string
}

func (StoreRenderedContent) CommandType() string { return "StoreRenderedContent" }

// MarkAsDispatched records that the rendered content was handed off to the
// channel provider; allowed only from {RENDERED, FAILED}.
type MarkAsDispatched struct {
	ExternalID string
}

func (MarkAsDispatched) CommandType() string { return "MarkAsDispatched" }

// MarkAsDelivered records provider-confirmed delivery; only from SENT and
// only once ExternalID is set.
type MarkAsDelivered struct{}

func (MarkAsDelivered) CommandType() string { return "MarkAsDelivered" }

// MarkAsFailed records a delivery failure; only from SENT and only once
// ExternalID is set.
type MarkAsFailed struct {
	Reason string
}

func (MarkAsFailed) CommandType() string { return "MarkAsFailed" }

// RetryNotification re-enters REQUESTED from FAILED, supplementing the
// terminal-looking {DELIVERED|FAILED} pair with the retry path the process
// manager's ledger retry model requires somewhere in the domain.
type RetryNotification struct{}

func (RetryNotification) CommandType() string { return "RetryNotification" }
