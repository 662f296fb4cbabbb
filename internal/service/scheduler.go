package service

import (
	"context"
	"time"

	"wabroadcast/internal/constants"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically promotes due Scheduled messages and dispatches
// them. The transitions themselves are conditional writes, so multiple
// instances may run this loop concurrently without double-sending.
type Scheduler struct {
	dispatch    *DispatchService
	intervalSec int
	batchSize   int
	logger      *logrus.Logger
	stopCh      chan struct{}
}

func NewScheduler(dispatch *DispatchService, intervalSec int, logger *logrus.Logger) *Scheduler {
	if intervalSec <= 0 {
		intervalSec = constants.DefaultSchedulerPollIntervalSec
	}
	return &Scheduler{
		dispatch:    dispatch,
		intervalSec: intervalSec,
		batchSize:   constants.DefaultDueBatchSize,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalSec) * time.Second)
	defer ticker.Stop()

	s.logger.Info("Starting due-message scheduler")

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runTick(ctx context.Context) {
	dispatched, err := s.dispatch.DispatchDue(ctx, time.Now(), s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to dispatch due messages")
		return
	}
	if dispatched > 0 {
		s.logger.WithField(LogFieldCount, dispatched).Info("Dispatched due messages")
	}
}
