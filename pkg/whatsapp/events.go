package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wabroadcast/pkg/whatsapp/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// EventHandler receives one session event from the gateway stream.
// Returned errors are logged; they do not stop the stream.
type EventHandler func(ctx context.Context, event types.SessionEvent) error

// EventStream consumes the gateway's websocket event feed. The gateway
// pushes pairing credentials and session lifecycle changes here instead
// of requiring the console to poll session status.
type EventStream struct {
	url        string
	apiKey     string
	handler    EventHandler
	logger     *logrus.Logger
	retryDelay time.Duration
}

func NewEventStream(url, apiKey string, retryDelay time.Duration, handler EventHandler, logger *logrus.Logger) *EventStream {
	return &EventStream{
		url:        url,
		apiKey:     apiKey,
		handler:    handler,
		logger:     logger,
		retryDelay: retryDelay,
	}
}

// Run connects and consumes events until the context is cancelled,
// reconnecting after connection loss.
func (s *EventStream) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Warn("Event stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *EventStream) consume(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if s.apiKey != "" {
		opts.HTTPHeader = http.Header{"X-Api-Key": []string{s.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, s.url, opts)
	if err != nil {
		return fmt.Errorf("failed to dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	s.logger.WithField("url", s.url).Info("Event stream connected")

	for {
		var event types.SessionEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}

		if err := s.handler(ctx, event); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"device_id": event.DeviceID,
				"kind":      string(event.Kind),
			}).Error("Failed to apply session event")
		}
	}
}
