package models

import (
	"time"
)

// ConnectionState represents the lifecycle state of a paired WhatsApp device
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
)

// PendingCredential is the placeholder stored when pairing starts, before
// the session backend has produced a real QR payload.
const PendingCredential = "pending"

// Device is one connected WhatsApp account owned by a user.
type Device struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	Name               string          `db:"name"`
	ConnectionState    ConnectionState `db:"connection_state"`
	PairingCredential  *string         `db:"pairing_credential"`
	CredentialIssuedAt *time.Time      `db:"credential_issued_at"`
	PhoneNumber        *string         `db:"phone_number"`
	LastSeenAt         *time.Time      `db:"last_seen_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// HasFreshCredential reports whether the device holds a pairing credential
// issued within the staleness threshold. A concurrent pairing request must
// not supersede a live handshake.
func (d *Device) HasFreshCredential(threshold time.Duration, now time.Time) bool {
	if d.ConnectionState != ConnectionConnecting {
		return false
	}
	if d.PairingCredential == nil || d.CredentialIssuedAt == nil {
		return false
	}
	return now.Sub(*d.CredentialIssuedAt) < threshold
}

// PairingEventKind identifies an event reported by the session backend.
type PairingEventKind string

const (
	PairingEventCredential PairingEventKind = "credential"
	PairingEventSuccess    PairingEventKind = "success"
	PairingEventFailure    PairingEventKind = "failure"
	PairingEventLost       PairingEventKind = "lost"
)

// PairingEvent carries a session backend event into the device state machine.
type PairingEvent struct {
	Kind    PairingEventKind `json:"kind"`
	Payload string           `json:"payload,omitempty"`
}

// Valid reports whether the event kind is one the state machine understands.
func (e *PairingEvent) Valid() bool {
	switch e.Kind {
	case PairingEventCredential, PairingEventSuccess, PairingEventFailure, PairingEventLost:
		return true
	}
	return false
}
