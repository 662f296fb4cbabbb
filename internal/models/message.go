package models

import (
	"time"
)

// DeliveryState represents the lifecycle state of a broadcast message
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryScheduled DeliveryState = "scheduled"
	DeliverySending   DeliveryState = "sending"
	DeliverySent      DeliveryState = "sent"
	DeliveryFailed    DeliveryState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s DeliveryState) Terminal() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// Attachment is an opaque blob reference passed through to the send backend.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Message is one broadcast composed against a device. The device reference
// is not ownership: the device may be deleted while the message remains.
type Message struct {
	ID            string        `db:"id"`
	DeviceID      string        `db:"device_id"`
	UserID        string        `db:"user_id"`
	Body          string        `db:"body"`
	Attachment    *Attachment   `db:"-"`
	TargetGroups  []string      `db:"-"`
	DeliveryState DeliveryState `db:"delivery_state"`
	ScheduledFor  *time.Time    `db:"scheduled_for"`
	SentAt        *time.Time    `db:"sent_at"`
	ErrorDetail   *string       `db:"error_detail"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// MessageFilter narrows a message listing. Zero values mean "any".
type MessageFilter struct {
	UserID   string
	DeviceID string
	State    DeliveryState
	DueBy    *time.Time
	Limit    int
}
