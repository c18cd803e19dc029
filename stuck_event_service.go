package tuxeai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
)

const stuckEventError = "processing timed out"

// StuckEventService fails events left in processing longer than the stuck
// timeout, e.g. because the worker crashed mid-event.
type StuckEventService struct {
	store        storage.EventStore
	logger       *zap.Logger
	metrics      MetricsCollector
	batchSize    int
	stuckTimeout time.Duration
	now          clock
}

func NewStuckEventService(store storage.EventStore, logger *zap.Logger, metrics MetricsCollector, opts ...StuckEventServiceOption) *StuckEventService {
	options := &stuckEventServiceOptions{
		batchSize:    defaultBatchSize,
		stuckTimeout: defaultStuckTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StuckEventService{
		store:        store,
		logger:       logger,
		metrics:      metrics,
		batchSize:    options.batchSize,
		stuckTimeout: options.stuckTimeout,
		now:          utcNow,
	}
}

// RecoverStuckEvents moves timed-out events from processing to failed. An
// event whose outcome lands in the meantime is left alone.
func (s *StuckEventService) RecoverStuckEvents(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("stuck_events.recovery.duration", time.Since(start), nil)
	}()

	now := s.now()
	events, err := s.store.FetchStuckEvents(ctx, now.Add(-s.stuckTimeout), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch stuck events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	recovered := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		applied, err := s.store.UpdateEventStatus(ctx, storage.StatusUpdate{
			ID:    ev.ID,
			From:  storage.EventStatusProcessing,
			To:    storage.EventStatusFailed,
			Error: stuckEventError,
			At:    now,
		})
		if err != nil {
			s.logger.Error("Failed to fail stuck event", zap.Int64("event_id", ev.ID), zap.Error(err))
			continue
		}
		if applied {
			recovered++
			s.metrics.IncrementCounter("stuck_events.marked_as_failed", map[string]string{"event_type": ev.EventType})
		}
	}

	s.logger.Info("Stuck event recovery completed",
		zap.Int("found", len(events)),
		zap.Int("recovered", recovered),
		zap.Duration("stuck_threshold", s.stuckTimeout),
	)
	s.metrics.RecordGauge("stuck_events.recovered_batch_size", float64(recovered), nil)
	return nil
}
