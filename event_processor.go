package tuxeai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/storage"
)

const defaultFailureText = "agent processing failed"

// AgentFactory builds the agent that handles an event. *agent.Registry
// satisfies it.
type AgentFactory interface {
	Create(ctx context.Context, restaurantID int64, key string) (agent.Agent, error)
}

// EventProcessor claims pending events one at a time, oldest first, and hands
// each to its agent.
type EventProcessor struct {
	store        storage.Store
	agents       AgentFactory
	publisher    Publisher
	logger       *zap.Logger
	metrics      MetricsCollector
	tracer       trace.Tracer
	idleInterval time.Duration
	now          clock
}

func NewEventProcessor(
	store storage.Store,
	agents AgentFactory,
	publisher Publisher,
	logger *zap.Logger,
	metrics MetricsCollector,
	opts ...EventProcessorOption,
) *EventProcessor {
	options := &eventProcessorOptions{
		idleInterval: defaultIdleInterval,
		now:          utcNow,
	}
	for _, opt := range opts {
		opt(options)
	}

	if publisher == nil {
		publisher = NewNopPublisher()
	}
	if metrics == nil {
		metrics = NewNopMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProcessor{
		store:        store,
		agents:       agents,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
		tracer:       otel.Tracer("github.com/cotah/tuxeai-app"),
		idleInterval: options.idleInterval,
		now:          options.now,
	}
}

// IdleInterval is how long the loop waits after finding nothing to do.
func (p *EventProcessor) IdleInterval() time.Duration {
	return p.idleInterval
}

// ProcessNext runs one iteration. found reports whether a pending event was
// seen, in which case the caller should poll again without waiting. When the
// queue is empty nothing is written.
func (p *EventProcessor) ProcessNext(ctx context.Context) (found bool, err error) {
	events, err := p.store.ListPendingEvents(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("failed to list pending events: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}
	ev := events[0]

	claimed, err := p.store.UpdateEventStatus(ctx, storage.StatusUpdate{
		ID:   ev.ID,
		From: storage.EventStatusPending,
		To:   storage.EventStatusProcessing,
		At:   p.now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim event %d: %w", ev.ID, err)
	}
	if !claimed {
		// another instance got there first
		p.metrics.IncrementCounter("event_processor.claim_lost", nil)
		p.logger.Debug("Event already claimed", zap.Int64("event_id", ev.ID))
		return true, nil
	}

	return true, p.process(ctx, ev)
}

func (p *EventProcessor) process(ctx context.Context, ev storage.EventRecord) error {
	fields := []zap.Field{
		zap.Int64("event_id", ev.ID),
		zap.Int64("restaurant_id", ev.RestaurantID),
		zap.String("event_type", ev.EventType),
		zap.String("agent_key", ev.AgentKey),
	}
	tags := map[string]string{"event_type": ev.EventType, "agent_key": ev.AgentKey}

	ctx, span := p.tracer.Start(ctx, "tuxeai.process_event", trace.WithAttributes(
		attribute.Int64("tuxeai.event_id", ev.ID),
		attribute.Int64("tuxeai.restaurant_id", ev.RestaurantID),
		attribute.String("tuxeai.event_type", ev.EventType),
		attribute.String("tuxeai.agent_key", ev.AgentKey),
	))
	defer span.End()

	start := time.Now()
	p.logger.Debug("Processing event", fields...)

	outcome := p.invoke(ctx, ev)
	p.metrics.RecordDuration("event_processor.agent_duration", time.Since(start), tags)

	update := storage.StatusUpdate{
		ID:   ev.ID,
		From: storage.EventStatusProcessing,
		To:   storage.EventStatusCompleted,
		At:   p.now(),
	}
	if !outcome.Success {
		update.To = storage.EventStatusFailed
		update.Error = outcome.Error
		if update.Error == "" {
			update.Error = defaultFailureText
		}
		span.SetStatus(codes.Error, update.Error)
	}

	applied, err := p.store.UpdateEventStatus(ctx, update)
	if err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to record event outcome", append(fields, zap.Error(err))...)
		return fmt.Errorf("failed to record outcome of event %d: %w", ev.ID, err)
	}
	if !applied {
		// the stuck-event sweep already failed it
		p.logger.Warn("Event left processing before its outcome was recorded", fields...)
		p.metrics.IncrementCounter("event_processor.outcome_discarded", tags)
		return nil
	}

	if outcome.Success {
		p.metrics.IncrementCounter("event_processor.completed", tags)
		p.logger.Info("Event completed", append(fields, zap.String("message", outcome.Message))...)
		if err := p.store.TouchSubscription(ctx, ev.RestaurantID, ev.AgentKey, update.At); err != nil {
			p.logger.Warn("Failed to update subscription activity", append(fields, zap.Error(err))...)
		}
	} else {
		p.metrics.IncrementCounter("event_processor.failed", tags)
		p.logger.Warn("Event failed", append(fields, zap.String("error", update.Error))...)
	}

	n := EventNotification{
		EventID:      ev.ID,
		RestaurantID: ev.RestaurantID,
		EventType:    ev.EventType,
		AgentKey:     ev.AgentKey,
		Status:       update.To,
		Message:      outcome.Message,
		Error:        update.Error,
		ProcessedAt:  update.At,
	}
	if err := p.publisher.Publish(ctx, n); err != nil {
		p.metrics.IncrementCounter("event_processor.publish_failed", tags)
		p.logger.Error("Failed to publish event notification", append(fields, zap.Error(err))...)
	}

	p.metrics.RecordDuration("event_processor.duration", time.Since(start), tags)
	return nil
}

// invoke resolves the agent and runs it. It never returns a success outcome
// for an event whose agent could not be built.
func (p *EventProcessor) invoke(ctx context.Context, ev storage.EventRecord) agent.Outcome {
	a, err := p.agents.Create(ctx, ev.RestaurantID, ev.AgentKey)
	if err != nil {
		if !errors.Is(err, agent.ErrAgentNotRegistered) && !errors.Is(err, agent.ErrAgentNotEnabled) {
			p.logger.Error("Failed to create agent", zap.Int64("event_id", ev.ID), zap.Error(err))
		}
		return agent.Failed("failed to create agent: %s: %v", ev.AgentKey, err)
	}

	return agent.Invoke(ctx, a, agent.Event{
		ID:           ev.ID,
		RestaurantID: ev.RestaurantID,
		Type:         ev.EventType,
		Payload:      ev.Payload,
		CreatedAt:    ev.CreatedAt,
	})
}
