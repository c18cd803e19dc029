package tuxeai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// NopPublisher drops notifications.
type NopPublisher struct{}

func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (p *NopPublisher) Publish(context.Context, EventNotification) error { return nil }

func (p *NopPublisher) Close() error { return nil }

// KafkaPublisher writes notifications as JSON to one topic, keyed by
// restaurant so a tenant's notifications stay ordered within a partition.
type KafkaPublisher struct {
	logger        *zap.Logger
	producer      *kafka.Producer
	producerProps kafka.ConfigMap
	topic         string
}

func NewKafkaPublisher(logger *zap.Logger, opts ...KafkaPublisherOption) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		logger: logger,
		producerProps: kafka.ConfigMap{
			"acks":               "all",
			"retries":            3,
			"linger.ms":          10,
			"enable.idempotence": true,
			"compression.type":   "snappy",
		},
		topic: defaultNotificationTopic,
	}
	for _, opt := range opts {
		opt(p)
	}

	producer, err := kafka.NewProducer(&p.producerProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	p.producer = producer

	go p.handleDeliveryReports()

	return p, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, n EventNotification) error {
	msg, err := newKafkaMessage(ctx, p.topic, n)
	if err != nil {
		return err
	}
	p.logger.Debug("Publishing event notification",
		zap.Int64("event_id", n.EventID),
		zap.String("status", string(n.Status)),
		zap.String("topic", p.topic),
	)
	return p.producer.Produce(msg, nil)
}

func newKafkaMessage(ctx context.Context, topic string, n EventNotification) (*kafka.Message, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification for event %d: %w", n.EventID, err)
	}

	headers := headerCarrier{
		{Key: "event_id", Value: []byte(strconv.FormatInt(n.EventID, 10))},
		{Key: "event_type", Value: []byte(n.EventType)},
		{Key: "agent_key", Value: []byte(n.AgentKey)},
		{Key: "status", Value: []byte(n.Status)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.FormatInt(n.RestaurantID, 10)),
		Value:          value,
		Headers:        []kafka.Header(headers),
		Timestamp:      n.ProcessedAt,
	}, nil
}

func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing kafka producer")
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		p.logger.Warn("Kafka producer closed with undelivered messages", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	return nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Delivery failed",
					zap.String("topic", *ev.TopicPartition.Topic),
					zap.Error(ev.TopicPartition.Error),
				)
			}
		case kafka.Error:
			p.logger.Error("Kafka error", zap.Error(ev))
		}
	}
}

// headerCarrier lets the otel propagator write trace context into Kafka headers.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
