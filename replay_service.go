package tuxeai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
)

// ErrNotReplayable is returned when replaying an event that has not failed.
var ErrNotReplayable = errors.New("only failed events can be replayed")

// ReplayService re-queues failed events. The failed row stays as it is; a
// fresh pending copy is inserted.
type ReplayService struct {
	store   storage.EventStore
	logger  *zap.Logger
	metrics MetricsCollector
}

func NewReplayService(store storage.EventStore, logger *zap.Logger, metrics MetricsCollector) *ReplayService {
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayService{store: store, logger: logger, metrics: metrics}
}

// Replay returns the id of the new pending event.
func (s *ReplayService) Replay(ctx context.Context, eventID int64) (int64, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	if ev.Status != storage.EventStatusFailed {
		return 0, fmt.Errorf("%w: event %d is %s", ErrNotReplayable, eventID, ev.Status)
	}

	id, err := s.store.CreateEvent(ctx, &storage.EventRecord{
		RestaurantID: ev.RestaurantID,
		EventType:    ev.EventType,
		AgentKey:     ev.AgentKey,
		Payload:      ev.Payload,
		Status:       storage.EventStatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to re-queue event %d: %w", eventID, err)
	}

	s.metrics.IncrementCounter("replay.requeued", map[string]string{"event_type": ev.EventType})
	s.logger.Info("Event replayed",
		zap.Int64("event_id", eventID),
		zap.Int64("new_event_id", id),
		zap.String("previous_error", ev.Error),
	)
	return id, nil
}
