package service

import (
	"context"
	"time"

	"wabroadcast/internal/constants"
	"wabroadcast/internal/errors"
	"wabroadcast/internal/metrics"

	"github.com/sirupsen/logrus"
)

// StuckSendingCounter reports messages stuck in Sending beyond a threshold.
type StuckSendingCounter interface {
	GetStuckSendingCount(ctx context.Context, threshold time.Duration) (int, error)
}

// DeliveryMonitor watches for messages whose completion callback never
// arrived. It only observes and reports: a stuck message is not unstuck
// automatically, because inventing a timeout would forge a terminal
// outcome the sender never reported.
type DeliveryMonitor struct {
	store       StuckSendingCounter
	intervalSec int
	threshold   time.Duration
	logger      *errors.Logger
	stopCh      chan struct{}
}

func NewDeliveryMonitor(store StuckSendingCounter, intervalSec, thresholdSec int, logger *logrus.Logger) *DeliveryMonitor {
	if intervalSec <= 0 {
		intervalSec = constants.DefaultStaleCheckIntervalSec
	}
	if thresholdSec <= 0 {
		thresholdSec = constants.DefaultStaleThresholdSec
	}
	return &DeliveryMonitor{
		store:       store,
		intervalSec: intervalSec,
		threshold:   time.Duration(thresholdSec) * time.Second,
		logger:      &errors.Logger{Logger: logger},
		stopCh:      make(chan struct{}),
	}
}

func (m *DeliveryMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.intervalSec) * time.Second)
	defer ticker.Stop()

	m.logger.Info("Starting delivery monitor")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Delivery monitor context cancelled, stopping")
			return
		case <-m.stopCh:
			m.logger.Info("Delivery monitor stop signal received, stopping")
			return
		case <-ticker.C:
			m.checkStuck(ctx)
		}
	}
}

func (m *DeliveryMonitor) Stop() {
	close(m.stopCh)
}

func (m *DeliveryMonitor) checkStuck(ctx context.Context) {
	count, err := m.store.GetStuckSendingCount(ctx, m.threshold)
	if err != nil {
		// A retryable store error lands at warn level; the next tick
		// tries again anyway.
		m.logger.LogRetryableError(err, "Failed to count stuck messages")
		return
	}

	metrics.SetGauge("messages_stuck_sending", float64(count), nil,
		"Messages in sending state beyond the completion threshold")

	if count > 0 {
		m.logger.WithField(LogFieldCount, count).Warn("Messages stuck in sending state")
	}
}
