package tuxeai

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cotah/tuxeai-app/storage"
)

func TestNopPublisher(t *testing.T) {
	publisher := NewNopPublisher()
	assert.NoError(t, publisher.Publish(context.Background(), EventNotification{}))
	assert.NoError(t, publisher.Close())
}

func TestNewKafkaMessage(t *testing.T) {
	n := EventNotification{
		EventID:      42,
		RestaurantID: 7,
		EventType:    "reservation.created",
		AgentKey:     "reservation",
		Status:       storage.EventStatusCompleted,
		Message:      "Confirmation sent successfully",
		ProcessedAt:  time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC),
	}

	msg, err := newKafkaMessage(context.Background(), "notifications", n)
	require.NoError(t, err)

	assert.Equal(t, "notifications", *msg.TopicPartition.Topic)
	assert.Equal(t, "7", string(msg.Key))
	assert.Equal(t, n.ProcessedAt, msg.Timestamp)

	var decoded EventNotification
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, n, decoded)

	expectedHeaders := map[string]string{
		"event_id":   "42",
		"event_type": "reservation.created",
		"agent_key":  "reservation",
		"status":     "completed",
	}
	require.Len(t, msg.Headers, len(expectedHeaders))
	for _, header := range msg.Headers {
		expectedValue, exists := expectedHeaders[header.Key]
		require.True(t, exists, "Unexpected header key: %s", header.Key)
		assert.Equal(t, expectedValue, string(header.Value), "Header value mismatch for key %s", header.Key)
	}
}

func TestNewKafkaMessage_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	msg, err := newKafkaMessage(ctx, "notifications", EventNotification{EventID: 1})
	require.NoError(t, err)

	headers := headerCarrier(msg.Headers)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers.Get("traceparent"))
}

func TestHeaderCarrier(t *testing.T) {
	c := headerCarrier{{Key: "event_id", Value: []byte("1")}}

	c.Set("event_id", "2")
	c.Set("traceparent", "abc")

	assert.Equal(t, "2", c.Get("event_id"))
	assert.Equal(t, "abc", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"event_id", "traceparent"}, c.Keys())
	assert.Equal(t, []kafka.Header{
		{Key: "event_id", Value: []byte("2")},
		{Key: "traceparent", Value: []byte("abc")},
	}, []kafka.Header(c))
}
