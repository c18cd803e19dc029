package tuxeai

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
)

const defaultStuckCheckInterval = time.Minute

// Carrier holds the dependencies shared by the processor and the background
// services, and builds them.
type Carrier struct {
	store      storage.Store
	registry   AgentFactory
	publisher  Publisher
	metrics    MetricsCollector
	logger     *zap.Logger
	transactor storage.Transactor
	now        clock
}

func NewCarrier(store storage.Store, registry AgentFactory, opts ...CarrierOption) (*Carrier, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	c := &Carrier{
		store:      store,
		registry:   registry,
		logger:     zap.NewNop(),
		metrics:    NewNopMetricsCollector(),
		transactor: storage.NopTransactor{},
		now:        utcNow,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.publisher == nil {
		c.publisher = NewNopPublisher()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

func (c *Carrier) EventProcessor(opts ...EventProcessorOption) *EventProcessor {
	opts = append([]EventProcessorOption{WithEventProcessorClock(c.now)}, opts...)
	return NewEventProcessor(c.store, c.registry, c.publisher, c.logger, c.metrics, opts...)
}

func (c *Carrier) StuckEventService(opts ...StuckEventServiceOption) *StuckEventService {
	s := NewStuckEventService(c.store, c.logger, c.metrics, opts...)
	s.now = c.now
	return s
}

func (c *Carrier) ReminderService(opts ...ReminderServiceOption) *ReminderService {
	s := NewReminderService(c.store, c.transactor, c.logger, c.metrics, opts...)
	s.now = c.now
	return s
}

func (c *Carrier) ReplayService() *ReplayService {
	return NewReplayService(c.store, c.logger, c.metrics)
}

// WorkerSchedule sets the intervals of the workers built by Carrier.Workers.
// Zero values fall back to the defaults.
type WorkerSchedule struct {
	IdleInterval       time.Duration
	StuckCheckInterval time.Duration
	StuckTimeout       time.Duration
	ReminderInterval   time.Duration
	ReminderLead       time.Duration
}

func (s WorkerSchedule) withDefaults() WorkerSchedule {
	if s.IdleInterval <= 0 {
		s.IdleInterval = defaultIdleInterval
	}
	if s.StuckCheckInterval <= 0 {
		s.StuckCheckInterval = defaultStuckCheckInterval
	}
	if s.StuckTimeout <= 0 {
		s.StuckTimeout = defaultStuckTimeout
	}
	if s.ReminderInterval <= 0 {
		s.ReminderInterval = s.StuckCheckInterval
	}
	if s.ReminderLead <= 0 {
		s.ReminderLead = defaultReminderLead
	}
	return s
}

// Workers returns the event processor loop, the stuck event sweep and the
// reminder scheduler, ready to hand to a Dispatcher.
func (c *Carrier) Workers(schedule WorkerSchedule) []Worker {
	schedule = schedule.withDefaults()

	processor := c.EventProcessor(WithIdleInterval(schedule.IdleInterval))
	stuck := c.StuckEventService(WithStuckEventServiceStuckTimeout(schedule.StuckTimeout))
	reminders := c.ReminderService(WithReminderServiceLead(schedule.ReminderLead))

	return []Worker{
		NewBaseWorker("event-processor", processor.IdleInterval(), c.logger, processor.ProcessNext),
		NewPeriodicWorker("stuck-event-sweeper", schedule.StuckCheckInterval, c.logger, stuck.RecoverStuckEvents),
		NewPeriodicWorker("reminder-scheduler", schedule.ReminderInterval, c.logger, reminders.QueueReminders),
	}
}
