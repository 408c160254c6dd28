// Package notification implements the Notification aggregate: its state,
// events, commands and pure command handler.
package notification

// Status is the Notification lifecycle stage.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusRendered  Status = "RENDERED"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
)

// Channel is the transport a notification is sent over.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Priority distinguishes the latency-critical fast path from ordinary queued dispatch.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)
