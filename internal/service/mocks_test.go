package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"wabroadcast/internal/database"
	"wabroadcast/internal/models"
	"wabroadcast/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// stubSessionGateway records calls and can be told to fail.
type stubSessionGateway struct {
	mu          sync.Mutex
	startCalls  []string
	stopCalls   []string
	deleteCalls []string
	statusCalls []string
	startErr    error
	stopErr     error
	deleteErr   error
	statusErr   error
	status      types.SessionStatus
}

func (g *stubSessionGateway) StartSession(_ context.Context, deviceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startCalls = append(g.startCalls, deviceID)
	return g.startErr
}

func (g *stubSessionGateway) StopSession(_ context.Context, deviceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopCalls = append(g.stopCalls, deviceID)
	return g.stopErr
}

func (g *stubSessionGateway) DeleteSession(_ context.Context, deviceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteCalls = append(g.deleteCalls, deviceID)
	return g.deleteErr
}

func (g *stubSessionGateway) GetSessionStatus(_ context.Context, deviceID string) (*types.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls = append(g.statusCalls, deviceID)
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	status := g.status
	if status == "" {
		status = types.SessionStatusWorking
	}
	return &types.Session{DeviceID: deviceID, Status: status}, nil
}

// countingSender counts handoffs, for dispatch idempotency assertions.
type countingSender struct {
	calls  int64
	fail   bool
	reject bool
}

func (s *countingSender) SendBroadcast(_ context.Context, req types.BroadcastRequest) (*types.BroadcastResponse, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.fail {
		return nil, fmt.Errorf("gateway unreachable")
	}
	if s.reject {
		return &types.BroadcastResponse{MessageID: req.MessageID, Accepted: false, Error: "session not working"}, nil
	}
	return &types.BroadcastResponse{MessageID: req.MessageID, Accepted: true}, nil
}

func (s *countingSender) count() int64 {
	return atomic.LoadInt64(&s.calls)
}

// connectedDevice creates a device and walks it to Connected.
func connectedDevice(t *testing.T, svc *DeviceSessionService, userID, phone string) string {
	t.Helper()

	device, err := svc.CreateDevice(context.Background(), userID, "Test phone")
	require.NoError(t, err)

	_, err = svc.ApplyPairingEvent(context.Background(), device.ID, models.PairingEvent{
		Kind:    models.PairingEventSuccess,
		Payload: phone,
	})
	require.NoError(t, err)

	return device.ID
}
