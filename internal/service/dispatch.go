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

// MessageStore is the persistence surface the dispatch pipeline drives.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	UpdateMessageState(ctx context.Context, id string, expected models.DeliveryState, t database.MessageTransition) (*models.Message, error)
}

// ComposeRequest is the compose-time input for a broadcast message.
type ComposeRequest struct {
	UserID       string
	DeviceID     string
	Body         string
	Attachment   *models.Attachment
	TargetGroups []string
	ScheduleAt   *time.Time
}

// DispatchService owns the message delivery lifecycle. Dispatch hands the
// broadcast to the external sender exactly once per message; completion
// arrives later through ReportDispatchResult. There is no retry: a failed
// message stays failed and resending means composing a new one.
type DispatchService struct {
	store   MessageStore
	devices DeviceStore
	sender  types.BroadcastSender
	logger  *logrus.Logger
}

func NewDispatchService(store MessageStore, devices DeviceStore, sender types.BroadcastSender, logger *logrus.Logger) *DispatchService {
	return &DispatchService{
		store:   store,
		devices: devices,
		sender:  sender,
		logger:  logger,
	}
}

// Compose validates and creates a message. A rejected compose creates no
// record. The message is born Scheduled when scheduleAt is in the future,
// Pending otherwise.
func (s *DispatchService) Compose(ctx context.Context, req ComposeRequest) (*models.Message, error) {
	if err := validation.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, errors.NewValidationError("deviceId", "device ID is required")
	}
	if err := validation.ValidateTargetGroups(req.TargetGroups); err != nil {
		return nil, err
	}
	if req.Attachment == nil {
		if err := validation.ValidateMessageBody(req.Body); err != nil {
			return nil, err
		}
	} else {
		if err := validation.ValidateAttachmentURL(req.Attachment.URL); err != nil {
			return nil, err
		}
	}

	device, err := s.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.NewNotFoundError("device", req.DeviceID)
	}
	if device.ConnectionState != models.ConnectionConnected {
		return nil, errors.NewInvalidStateError("device", string(device.ConnectionState), "send messages")
	}

	state := models.DeliveryPending
	var scheduledFor *time.Time
	if req.ScheduleAt != nil && req.ScheduleAt.After(time.Now()) {
		state = models.DeliveryScheduled
		scheduledFor = req.ScheduleAt
	}

	msg := &models.Message{
		ID:            uuid.NewString(),
		DeviceID:      req.DeviceID,
		UserID:        req.UserID,
		Body:          req.Body,
		Attachment:    req.Attachment,
		TargetGroups:  req.TargetGroups,
		DeliveryState: state,
		ScheduledFor:  scheduledFor,
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	metrics.IncrementCounter("messages_composed_total", map[string]string{
		"state": string(state),
	}, "Messages composed")
	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: msg.ID,
		LogFieldDeviceID:  msg.DeviceID,
		LogFieldState:     string(state),
		LogFieldCount:     len(msg.TargetGroups),
	}).Info("Message composed")

	return msg, nil
}

// Dispatch claims a Pending message and hands it to the external sender.
// The pending-to-sending claim is a conditional write keyed on the message
// id, so two concurrent triggers produce exactly one send invocation: the
// loser observes Conflict and backs off.
func (s *DispatchService) Dispatch(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	if msg.DeliveryState != models.DeliveryPending {
		return nil, errors.NewInvalidStateError("message", string(msg.DeliveryState), "dispatch")
	}

	claimed, err := s.store.UpdateMessageState(ctx, messageID, models.DeliveryPending, database.MessageTransition{
		State: models.DeliverySending,
	})
	if err != nil {
		return nil, err
	}

	broadcast := types.BroadcastRequest{
		MessageID:    claimed.ID,
		DeviceID:     claimed.DeviceID,
		Body:         claimed.Body,
		TargetGroups: claimed.TargetGroups,
	}
	if claimed.Attachment != nil {
		broadcast.AttachmentURL = claimed.Attachment.URL
	}

	resp, err := s.sender.SendBroadcast(ctx, broadcast)
	if err == nil && resp != nil && !resp.Accepted {
		err = errors.New(errors.ErrCodeExternalFailure, resp.Error)
	}
	if err != nil {
		s.logger.WithError(err).WithField(LogFieldMessageID, messageID).Error("Broadcast handoff failed")
		reason := err.Error()
		return s.completeDispatch(ctx, messageID, false, reason)
	}

	metrics.IncrementCounter("messages_dispatched_total", nil, "Messages handed to the sender")
	s.logger.WithField(LogFieldMessageID, messageID).Info("Message dispatched")

	return claimed, nil
}

// ReportDispatchResult finalizes a Sending message with the outcome the
// sender delivered asynchronously. A message not currently Sending rejects
// the report, which also makes completion idempotence explicit: the second
// of two racing completions fails with InvalidState.
func (s *DispatchService) ReportDispatchResult(ctx context.Context, messageID string, ok bool, reason string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	if msg.DeliveryState != models.DeliverySending {
		return nil, errors.NewInvalidStateError("message", string(msg.DeliveryState), "complete dispatch")
	}
	if !ok && reason == "" {
		return nil, errors.NewValidationError("reason", "failure reason is required")
	}

	return s.completeDispatch(ctx, messageID, ok, reason)
}

func (s *DispatchService) completeDispatch(ctx context.Context, messageID string, ok bool, reason string) (*models.Message, error) {
	transition := database.MessageTransition{State: models.DeliveryFailed, ErrorDetail: &reason}
	if ok {
		now := time.Now()
		transition = database.MessageTransition{State: models.DeliverySent, SentAt: &now}
	}

	updated, err := s.store.UpdateMessageState(ctx, messageID, models.DeliverySending, transition)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeConflict) {
			return nil, errors.NewInvalidStateError("message", "not sending", "complete dispatch")
		}
		return nil, err
	}

	outcome := "sent"
	logLevel := logrus.InfoLevel
	if !ok {
		outcome = "failed"
		logLevel = logrus.WarnLevel
	}
	metrics.IncrementCounter("messages_completed_total", map[string]string{
		"outcome": outcome,
	}, "Dispatch completions by outcome")
	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: messageID,
		LogFieldToState:   string(updated.DeliveryState),
	}).Log(logLevel, "Dispatch completed")

	return updated, nil
}

// BecomeDue moves a Scheduled message whose time has arrived to Pending.
func (s *DispatchService) BecomeDue(ctx context.Context, messageID string, now time.Time) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	if msg.DeliveryState != models.DeliveryScheduled {
		return nil, errors.NewInvalidStateError("message", string(msg.DeliveryState), "become due")
	}
	if msg.ScheduledFor != nil && msg.ScheduledFor.After(now) {
		return nil, errors.NewInvalidStateError("message", "scheduled in the future", "become due")
	}

	return s.store.UpdateMessageState(ctx, messageID, models.DeliveryScheduled, database.MessageTransition{
		State: models.DeliveryPending,
	})
}

// DispatchDue promotes due Scheduled messages and dispatches them. It is
// the scheduler's tick body; per-message failures are logged and the batch
// continues.
func (s *DispatchService) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.store.ListMessages(ctx, models.MessageFilter{
		State: models.DeliveryScheduled,
		DueBy: &now,
		Limit: limit,
	})
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, msg := range due {
		if _, err := s.BecomeDue(ctx, msg.ID, now); err != nil {
			// Another instance may have claimed it first.
			s.logger.WithError(err).WithField(LogFieldMessageID, msg.ID).Debug("Skipping due message")
			continue
		}
		if _, err := s.Dispatch(ctx, msg.ID); err != nil {
			s.logger.WithError(err).WithField(LogFieldMessageID, msg.ID).Warn("Failed to dispatch due message")
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

// GetMessage returns one message.
func (s *DispatchService) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("message", messageID)
	}
	return msg, nil
}

// ListMessages returns messages matching the filter.
func (s *DispatchService) ListMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	return s.store.ListMessages(ctx, filter)
}
