package types

import "time"

// SessionStatus is the connection status reported by the gateway service
// that hosts the actual WhatsApp Web sessions.
type SessionStatus string

const (
	SessionStatusStopped  SessionStatus = "stopped"
	SessionStatusStarting SessionStatus = "starting"
	SessionStatusScanQR   SessionStatus = "scan_qr"
	SessionStatusWorking  SessionStatus = "working"
	SessionStatusFailed   SessionStatus = "failed"
)

// Session is the gateway's view of a hosted WhatsApp Web session.
type Session struct {
	DeviceID    string        `json:"deviceId"`
	Status      SessionStatus `json:"status"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// BroadcastRequest is the payload handed to the gateway for fan-out
// delivery to the target groups.
type BroadcastRequest struct {
	MessageID     string   `json:"messageId"`
	DeviceID      string   `json:"deviceId"`
	Body          string   `json:"body"`
	AttachmentURL string   `json:"attachmentUrl,omitempty"`
	TargetGroups  []string `json:"targetGroups"`
}

// BroadcastResponse acknowledges that the gateway accepted a broadcast
// for delivery. The terminal outcome arrives later via callback.
type BroadcastResponse struct {
	MessageID string `json:"messageId"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// EventKind identifies a session lifecycle event on the event stream.
type EventKind string

const (
	EventCredential     EventKind = "credential"
	EventPairingSuccess EventKind = "pairing_success"
	EventPairingFailure EventKind = "pairing_failure"
	EventSessionLost    EventKind = "session_lost"
	EventHeartbeat      EventKind = "heartbeat"
)

// SessionEvent is one frame from the gateway's websocket event stream.
type SessionEvent struct {
	DeviceID    string    `json:"deviceId"`
	Kind        EventKind `json:"kind"`
	Credential  string    `json:"credential,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
