package core

import "time"

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus string

const (
	// NotificationPending is the initial state of a created notification.
	NotificationPending NotificationStatus = "pending"
	// NotificationSent means the notification was handed to a sink.
	NotificationSent NotificationStatus = "sent"
	// NotificationFailed means the sink rejected the notification.
	NotificationFailed NotificationStatus = "failed"
)

// Notification represents a message queued for a recipient. Delivery
// transports are intentionally out of scope; the record tracks state and
// a Sink decides what "sent" means.
type Notification struct {
	ID        string             `json:"id"`
	Message   string             `json:"message"`
	Recipient string             `json:"recipient"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
