package tuxeai

import (
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
)

const (
	defaultIdleInterval      = 5 * time.Second
	defaultBatchSize         = 100
	defaultStuckTimeout      = 10 * time.Minute
	defaultReminderLead      = 24 * time.Hour
	defaultNotificationTopic = "tuxeai-events"
)

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

//
// Carrier Options
//

type CarrierOption func(*Carrier)

func WithLogger(logger *zap.Logger) CarrierOption {
	return func(c *Carrier) {
		c.logger = logger
	}
}

func WithMetrics(metrics MetricsCollector) CarrierOption {
	return func(c *Carrier) {
		c.metrics = metrics
	}
}

func WithPublisher(publisher Publisher) CarrierOption {
	return func(c *Carrier) {
		c.publisher = publisher
	}
}

func WithTransactor(tx storage.Transactor) CarrierOption {
	return func(c *Carrier) {
		c.transactor = tx
	}
}

func WithClock(now func() time.Time) CarrierOption {
	return func(c *Carrier) {
		c.now = now
	}
}

//
// KafkaPublisher Options
//

type KafkaPublisherOption func(*KafkaPublisher)

func WithKafkaProducerProps(props kafka.ConfigMap) KafkaPublisherOption {
	return func(p *KafkaPublisher) {
		for k, v := range props {
			p.producerProps[k] = v
		}
	}
}

func WithKafkaTopic(topic string) KafkaPublisherOption {
	return func(p *KafkaPublisher) {
		p.topic = topic
	}
}

//
// EventProcessor Options
//

type EventProcessorOption func(*eventProcessorOptions)

type eventProcessorOptions struct {
	idleInterval time.Duration
	now          clock
}

func WithIdleInterval(d time.Duration) EventProcessorOption {
	return func(o *eventProcessorOptions) {
		o.idleInterval = d
	}
}

func WithEventProcessorClock(now func() time.Time) EventProcessorOption {
	return func(o *eventProcessorOptions) {
		o.now = now
	}
}

//
// StuckEventService Options
//

type StuckEventServiceOption func(*stuckEventServiceOptions)

type stuckEventServiceOptions struct {
	batchSize    int
	stuckTimeout time.Duration
}

func WithStuckEventServiceBatchSize(size int) StuckEventServiceOption {
	return func(o *stuckEventServiceOptions) {
		o.batchSize = size
	}
}

func WithStuckEventServiceStuckTimeout(timeout time.Duration) StuckEventServiceOption {
	return func(o *stuckEventServiceOptions) {
		o.stuckTimeout = timeout
	}
}

//
// ReminderService Options
//

type ReminderServiceOption func(*reminderServiceOptions)

type reminderServiceOptions struct {
	batchSize int
	lead      time.Duration
}

func WithReminderServiceBatchSize(size int) ReminderServiceOption {
	return func(o *reminderServiceOptions) {
		o.batchSize = size
	}
}

// WithReminderServiceLead sets how far ahead of a reservation the reminder is queued.
func WithReminderServiceLead(lead time.Duration) ReminderServiceOption {
	return func(o *reminderServiceOptions) {
		o.lead = lead
	}
}
