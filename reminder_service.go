package tuxeai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/agent/reservation"
	"github.com/cotah/tuxeai-app/storage"
)

// ReminderService queues reservation.reminder events for confirmed
// reservations that start within the lead time.
type ReminderService struct {
	store      storage.Store
	transactor storage.Transactor
	logger     *zap.Logger
	metrics    MetricsCollector
	batchSize  int
	lead       time.Duration
	now        clock
}

func NewReminderService(store storage.Store, transactor storage.Transactor, logger *zap.Logger, metrics MetricsCollector, opts ...ReminderServiceOption) *ReminderService {
	options := &reminderServiceOptions{
		batchSize: defaultBatchSize,
		lead:      defaultReminderLead,
	}
	for _, opt := range opts {
		opt(options)
	}

	if transactor == nil {
		transactor = storage.NopTransactor{}
	}
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		store:      store,
		transactor: transactor,
		logger:     logger,
		metrics:    metrics,
		batchSize:  options.batchSize,
		lead:       options.lead,
		now:        utcNow,
	}
}

// QueueReminders marks each due reservation and enqueues its reminder in one
// transaction, so a reservation is reminded at most once.
func (s *ReminderService) QueueReminders(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("reminders.duration", time.Since(start), nil)
	}()

	now := s.now()
	due, err := s.store.ListDueReminders(ctx, reservation.Key, now, now.Add(s.lead), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	queued := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var enqueued bool
		err := s.transactor.Do(ctx, func(ctx context.Context) error {
			marked, err := s.store.MarkReminderQueued(ctx, r.ID, now)
			if err != nil || !marked {
				return err
			}
			_, err = Enqueue(ctx, s.store, Event{
				RestaurantID: r.RestaurantID,
				EventType:    agent.EventReservationReminder,
				AgentKey:     reservation.Key,
				Payload:      map[string]int64{"reservationId": r.ID},
			})
			enqueued = err == nil
			return err
		})
		if err != nil {
			s.logger.Error("Failed to queue reminder", zap.Int64("reservation_id", r.ID), zap.Error(err))
			s.metrics.IncrementCounter("reminders.queue_failed", nil)
			continue
		}
		if enqueued {
			queued++
		}
	}

	s.logger.Info("Reservation reminders queued", zap.Int("due", len(due)), zap.Int("queued", queued))
	s.metrics.RecordGauge("reminders.queued_batch_size", float64(queued), nil)
	return nil
}
