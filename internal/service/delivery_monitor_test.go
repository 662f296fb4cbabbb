package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "wabroadcast/internal/errors"
	"wabroadcast/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryMonitorObservesWithoutMutating(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	msg := f.compose(t, nil)
	_, err := f.dispatch.Dispatch(ctx, msg.ID)
	require.NoError(t, err)

	// Threshold of zero makes the freshly claimed message count as stuck.
	monitor := NewDeliveryMonitor(f.db, 1, 1, testLogger())
	monitor.threshold = 0
	monitor.checkStuck(ctx)

	got, err := f.dispatch.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySending, got.DeliveryState, "monitor must not mutate state")
	assert.Nil(t, got.SentAt)
	assert.Nil(t, got.ErrorDetail)
}

type failingStuckCounter struct{}

func (failingStuckCounter) GetStuckSendingCount(context.Context, time.Duration) (int, error) {
	return 0, apperrors.NewStoreError("count stuck messages", assert.AnError)
}

func TestDeliveryMonitorLogsStoreFailureAsRetryable(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	monitor := NewDeliveryMonitor(failingStuckCounter{}, 1, 600, logger)
	monitor.checkStuck(context.Background())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "STORE_UNAVAILABLE", entry["error_code"])
	assert.Equal(t, true, entry["retryable"])
}

func TestDeliveryMonitorStops(t *testing.T) {
	f := newDispatchFixture(t)
	monitor := NewDeliveryMonitor(f.db, 1, 600, testLogger())

	done := make(chan struct{})
	go func() {
		monitor.Start(context.Background())
		close(done)
	}()
	monitor.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
