package service

import (
	"context"
	"time"

	"wabroadcast/internal/database"
	"wabroadcast/internal/errors"
	"wabroadcast/internal/metrics"
	"wabroadcast/internal/models"
	"wabroadcast/internal/validation"
	"wabroadcast/pkg/whatsapp/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeviceStore is the persistence surface the device state machine drives.
type DeviceStore interface {
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context, userID string) ([]*models.Device, error)
	UpdateDeviceState(ctx context.Context, id string, expected *models.ConnectionState, t database.DeviceTransition) (*models.Device, error)
	TouchDeviceLastSeen(ctx context.Context, id string, seenAt time.Time) error
	DeleteDevice(ctx context.Context, id string) error
}

// DeviceSessionService owns the device connection lifecycle. All state
// lives in the store; every call re-reads current state so that multiple
// instances can drive the same device without acting on stale data.
type DeviceSessionService struct {
	store         DeviceStore
	sessions      types.SessionGateway
	logger        *logrus.Logger
	credentialTTL time.Duration
}

func NewDeviceSessionService(store DeviceStore, sessions types.SessionGateway, credentialTTL time.Duration, logger *logrus.Logger) *DeviceSessionService {
	return &DeviceSessionService{
		store:         store,
		sessions:      sessions,
		logger:        logger,
		credentialTTL: credentialTTL,
	}
}

// CreateDevice registers a device and immediately begins the pairing
// handshake: the row is born Connecting with a placeholder credential,
// and the session gateway is asked to start a hosted session.
func (s *DeviceSessionService) CreateDevice(ctx context.Context, userID, name string) (*models.Device, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateDeviceName(name); err != nil {
		return nil, err
	}

	now := time.Now()
	placeholder := models.PendingCredential
	device := &models.Device{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               name,
		ConnectionState:    models.ConnectionConnecting,
		PairingCredential:  &placeholder,
		CredentialIssuedAt: &now,
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := s.sessions.StartSession(ctx, device.ID); err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, device.ID).Error("Failed to start external session for new device")
		return s.abandonPairing(ctx, device.ID, models.ConnectionConnecting, err)
	}

	metrics.IncrementCounter("devices_created_total", nil, "Devices registered")
	s.logger.WithFields(logrus.Fields{
		LogFieldDeviceID: device.ID,
		LogFieldUserID:   device.UserID,
	}).Info("Device created, pairing started")

	return device, nil
}

// RequestPairing begins (or restarts) the pairing handshake for an
// existing device. A Connecting device whose credential is younger than
// the staleness threshold is treated as a live handshake and returned
// untouched; a stale handshake is superseded.
func (s *DeviceSessionService) RequestPairing(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.NewNotFoundError("device", deviceID)
	}

	if device.ConnectionState == models.ConnectionConnected {
		return nil, errors.NewInvalidStateError("device", string(device.ConnectionState), "start pairing")
	}
	if device.HasFreshCredential(s.credentialTTL, time.Now()) {
		return device, nil
	}

	observed := device.ConnectionState
	now := time.Now()
	placeholder := models.PendingCredential
	updated, err := s.store.UpdateDeviceState(ctx, deviceID, &observed, database.DeviceTransition{
		State:              models.ConnectionConnecting,
		PairingCredential:  &placeholder,
		CredentialIssuedAt: &now,
		PhoneNumber:        nil,
		LastSeenAt:         device.LastSeenAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.StartSession(ctx, deviceID); err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, deviceID).Error("Failed to start external pairing session")
		return s.abandonPairing(ctx, deviceID, models.ConnectionConnecting, err)
	}

	metrics.IncrementCounter("pairing_requests_total", nil, "Pairing handshakes started")
	s.logger.WithFields(logrus.Fields{
		LogFieldDeviceID:  deviceID,
		LogFieldFromState: string(observed),
		LogFieldToState:   string(models.ConnectionConnecting),
	}).Info("Pairing started")

	return updated, nil
}

// abandonPairing rolls a Connecting device back to Disconnected after the
// external session could not be started, then surfaces the external error.
func (s *DeviceSessionService) abandonPairing(ctx context.Context, deviceID string, expected models.ConnectionState, cause error) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var phone *string
	var lastSeen *time.Time
	if device != nil {
		phone = device.PhoneNumber
		lastSeen = device.LastSeenAt
	}

	if _, rollbackErr := s.store.UpdateDeviceState(ctx, deviceID, &expected, database.DeviceTransition{
		State:       models.ConnectionDisconnected,
		PhoneNumber: phone,
		LastSeenAt:  lastSeen,
	}); rollbackErr != nil {
		s.logger.WithError(rollbackErr).WithField(LogFieldDeviceID, deviceID).Warn("Failed to roll back abandoned pairing")
	}

	return nil, errors.NewExternalError("start session", cause)
}

// ApplyPairingEvent advances the state machine with an event reported by
// the session gateway. Events incompatible with the current state are
// stale and ignored without error; the current device is returned.
func (s *DeviceSessionService) ApplyPairingEvent(ctx context.Context, deviceID string, event models.PairingEvent) (*models.Device, error) {
	if !event.Valid() {
		return nil, errors.NewValidationError("kind", "unknown pairing event kind")
	}

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.NewNotFoundError("device", deviceID)
	}

	switch event.Kind {
	case models.PairingEventCredential:
		return s.applyCredentialIssued(ctx, device, event.Payload)
	case models.PairingEventSuccess:
		return s.applyPairingSucceeded(ctx, device, event.Payload)
	case models.PairingEventFailure, models.PairingEventLost:
		return s.applyConnectionLost(ctx, device, event.Kind)
	}
	return device, nil
}

func (s *DeviceSessionService) applyCredentialIssued(ctx context.Context, device *models.Device, credential string) (*models.Device, error) {
	if device.ConnectionState != models.ConnectionConnecting {
		s.logger.WithFields(logrus.Fields{
			LogFieldDeviceID: device.ID,
			LogFieldState:    string(device.ConnectionState),
		}).Debug("Ignoring stale credential event")
		return device, nil
	}
	if credential == "" {
		return nil, errors.NewValidationError("payload", "credential payload cannot be empty")
	}

	expected := models.ConnectionConnecting
	now := time.Now()
	updated, err := s.store.UpdateDeviceState(ctx, device.ID, &expected, database.DeviceTransition{
		State:              models.ConnectionConnecting,
		PairingCredential:  &credential,
		CredentialIssuedAt: &now,
		LastSeenAt:         device.LastSeenAt,
	})
	if err != nil {
		return s.resolveEventConflict(ctx, device.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldDeviceID: device.ID,
		"credential":     SanitizeCredential(credential),
	}).Info("Pairing credential issued")
	return updated, nil
}

func (s *DeviceSessionService) applyPairingSucceeded(ctx context.Context, device *models.Device, phoneNumber string) (*models.Device, error) {
	if device.ConnectionState != models.ConnectionConnecting {
		s.logger.WithFields(logrus.Fields{
			LogFieldDeviceID: device.ID,
			LogFieldState:    string(device.ConnectionState),
		}).Debug("Ignoring stale pairing success event")
		return device, nil
	}
	if err := validation.ValidatePhoneNumber(phoneNumber); err != nil {
		return nil, err
	}

	expected := models.ConnectionConnecting
	now := time.Now()
	updated, err := s.store.UpdateDeviceState(ctx, device.ID, &expected, database.DeviceTransition{
		State:       models.ConnectionConnected,
		PhoneNumber: &phoneNumber,
		LastSeenAt:  &now,
	})
	if err != nil {
		return s.resolveEventConflict(ctx, device.ID, err)
	}

	metrics.IncrementCounter("pairing_success_total", nil, "Devices that completed pairing")
	s.logger.WithFields(logrus.Fields{
		LogFieldDeviceID: device.ID,
		"phone_number":   SanitizePhoneNumber(phoneNumber),
	}).Info("Device connected")

	return updated, nil
}

func (s *DeviceSessionService) applyConnectionLost(ctx context.Context, device *models.Device, kind models.PairingEventKind) (*models.Device, error) {
	if device.ConnectionState == models.ConnectionDisconnected {
		return device, nil
	}

	// The phone number is kept for display history; only the credential
	// is cleared, and lastSeenAt gains no new timestamp.
	expected := device.ConnectionState
	updated, err := s.store.UpdateDeviceState(ctx, device.ID, &expected, database.DeviceTransition{
		State:       models.ConnectionDisconnected,
		PhoneNumber: device.PhoneNumber,
		LastSeenAt:  device.LastSeenAt,
	})
	if err != nil {
		return s.resolveEventConflict(ctx, device.ID, err)
	}

	metrics.IncrementCounter("sessions_lost_total", map[string]string{
		"kind": string(kind),
	}, "Sessions lost or failed pairing")
	s.logger.WithFields(logrus.Fields{
		LogFieldDeviceID: device.ID,
		LogFieldEvent:    string(kind),
	}).Warn("Device disconnected by session event")

	return updated, nil
}

// resolveEventConflict treats a lost conditional write as a stale event:
// something newer already advanced the device, so the current row wins.
func (s *DeviceSessionService) resolveEventConflict(ctx context.Context, deviceID string, err error) (*models.Device, error) {
	if !errors.IsCode(err, errors.ErrCodeConflict) {
		return nil, err
	}

	s.logger.WithField(LogFieldDeviceID, deviceID).Debug("Pairing event lost a write race, keeping newer state")
	current, getErr := s.store.GetDevice(ctx, deviceID)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, errors.NewNotFoundError("device", deviceID)
	}
	return current, nil
}

// Disconnect is the explicit user-initiated teardown. Releasing the
// external session is best effort; the local state write always proceeds.
func (s *DeviceSessionService) Disconnect(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.NewNotFoundError("device", deviceID)
	}

	if err := s.sessions.StopSession(ctx, deviceID); err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, deviceID).Warn("Failed to release external session, disconnecting locally anyway")
	}

	updated, err := s.store.UpdateDeviceState(ctx, deviceID, nil, database.DeviceTransition{
		State:       models.ConnectionDisconnected,
		PhoneNumber: device.PhoneNumber,
		LastSeenAt:  device.LastSeenAt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField(LogFieldDeviceID, deviceID).Info("Device disconnected")
	return updated, nil
}

// QueryStatus returns the current device projection. For a Connected
// device the session gateway is polled as a liveness signal: a working
// session refreshes lastSeenAt. The poll is best effort and never blocks
// the status read.
func (s *DeviceSessionService) QueryStatus(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.NewNotFoundError("device", deviceID)
	}
	if device.ConnectionState != models.ConnectionConnected {
		return device, nil
	}

	session, err := s.sessions.GetSessionStatus(ctx, deviceID)
	if err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, deviceID).Debug("Session status poll failed, returning stored state")
		return device, nil
	}
	if session.Status != types.SessionStatusWorking {
		return device, nil
	}

	// lastSeenAt only moves forward; an explicit liveness report newer
	// than this poll wins.
	now := time.Now()
	if device.LastSeenAt != nil && !now.After(*device.LastSeenAt) {
		return device, nil
	}
	if err := s.store.TouchDeviceLastSeen(ctx, deviceID, now); err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, deviceID).Warn("Failed to refresh device liveness")
		return device, nil
	}
	device.LastSeenAt = &now

	return device, nil
}

// ListDevices returns all devices owned by a user.
func (s *DeviceSessionService) ListDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.store.ListDevices(ctx, userID)
}

// RefreshLiveness records a liveness signal for a device.
func (s *DeviceSessionService) RefreshLiveness(ctx context.Context, deviceID string, seenAt time.Time) error {
	return s.store.TouchDeviceLastSeen(ctx, deviceID, seenAt)
}

// DeleteDevice hard-removes the device after requesting release of its
// external session. Historical messages referencing it remain.
func (s *DeviceSessionService) DeleteDevice(ctx context.Context, deviceID string) error {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return errors.NewNotFoundError("device", deviceID)
	}

	if err := s.sessions.DeleteSession(ctx, deviceID); err != nil {
		s.logger.WithError(err).WithField(LogFieldDeviceID, deviceID).Warn("Failed to delete external session, removing device anyway")
	}

	if err := s.store.DeleteDevice(ctx, deviceID); err != nil {
		return err
	}

	s.logger.WithField(LogFieldDeviceID, deviceID).Info("Device deleted")
	return nil
}
