package service

import (
	"context"
	"time"

	"wabroadcast/internal/models"
	"wabroadcast/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// SessionEventBridge translates gateway event stream frames into device
// state machine transitions. It is the handler the websocket event stream
// invokes per frame.
type SessionEventBridge struct {
	devices *DeviceSessionService
	logger  *logrus.Logger
}

func NewSessionEventBridge(devices *DeviceSessionService, logger *logrus.Logger) *SessionEventBridge {
	return &SessionEventBridge{
		devices: devices,
		logger:  logger,
	}
}

// HandleEvent applies one gateway event. Unknown kinds are logged and
// dropped so a newer gateway cannot wedge the stream.
func (b *SessionEventBridge) HandleEvent(ctx context.Context, event types.SessionEvent) error {
	if event.DeviceID == "" {
		b.logger.WithField(LogFieldEvent, string(event.Kind)).Warn("Dropping session event without device id")
		return nil
	}

	switch event.Kind {
	case types.EventCredential:
		_, err := b.devices.ApplyPairingEvent(ctx, event.DeviceID, models.PairingEvent{
			Kind:    models.PairingEventCredential,
			Payload: event.Credential,
		})
		return err
	case types.EventPairingSuccess:
		_, err := b.devices.ApplyPairingEvent(ctx, event.DeviceID, models.PairingEvent{
			Kind:    models.PairingEventSuccess,
			Payload: event.PhoneNumber,
		})
		return err
	case types.EventPairingFailure:
		_, err := b.devices.ApplyPairingEvent(ctx, event.DeviceID, models.PairingEvent{
			Kind: models.PairingEventFailure,
		})
		return err
	case types.EventSessionLost:
		_, err := b.devices.ApplyPairingEvent(ctx, event.DeviceID, models.PairingEvent{
			Kind: models.PairingEventLost,
		})
		return err
	case types.EventHeartbeat:
		seenAt := event.Timestamp
		if seenAt.IsZero() {
			seenAt = time.Now()
		}
		return b.devices.RefreshLiveness(ctx, event.DeviceID, seenAt)
	default:
		b.logger.WithFields(logrus.Fields{
			LogFieldDeviceID: event.DeviceID,
			LogFieldEvent:    string(event.Kind),
		}).Warn("Dropping unknown session event kind")
		return nil
	}
}
