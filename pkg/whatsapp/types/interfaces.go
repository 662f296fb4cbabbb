package types

import "context"

// SessionGateway manages hosted WhatsApp Web sessions on the external
// gateway service.
type SessionGateway interface {
	StartSession(ctx context.Context, deviceID string) error
	StopSession(ctx context.Context, deviceID string) error
	DeleteSession(ctx context.Context, deviceID string) error
	GetSessionStatus(ctx context.Context, deviceID string) (*Session, error)
}

// BroadcastSender hands a composed broadcast to the gateway for delivery.
type BroadcastSender interface {
	SendBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResponse, error)
}

// Client is the full gateway surface.
type Client interface {
	SessionGateway
	BroadcastSender
}
