// Package agent defines the contract every restaurant agent implements, the
// registry that resolves agents by key, and the capabilities agents share.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types understood by the built-in agents.
const (
	EventReservationCreated     = "reservation.created"
	EventReservationReminder    = "reservation.reminder"
	EventMessageReceived        = "message.received"
	EventReviewDetected         = "review.detected"
	EventReviewGenerateResponse = "review.generate_response"
	EventCampaignLaunched       = "campaign.launched"
)

// Event is the view of a stored event handed to an agent.
type Event struct {
	ID           int64
	RestaurantID int64
	Type         string
	Payload      json.RawMessage
	CreatedAt    time.Time
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// Outcome is what an agent reports back for one event.
type Outcome struct {
	Success bool
	Message string
	Data    map[string]any
	Error   string
}

func Succeeded(message string, data map[string]any) Outcome {
	return Outcome{Success: true, Message: message, Data: data}
}

func Failed(format string, args ...any) Outcome {
	return Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}

// UnknownEventType is the outcome for an event type an agent does not handle.
func UnknownEventType(eventType string) Outcome {
	return Failed("unknown event type: %s", eventType)
}

// Agent processes events for one restaurant. Failures are reported through
// the returned Outcome and never as panics.
type Agent interface {
	ProcessEvent(ctx context.Context, ev Event) Outcome
}

// Context is built per invocation from the restaurant's subscription.
type Context struct {
	RestaurantID  int64
	AgentKey      string
	Configuration map[string]any
}

// Factory builds an agent around its shared capabilities.
type Factory func(base *Base) Agent

// Invoke runs the agent and converts a panic into a failed outcome.
func Invoke(ctx context.Context, a Agent, ev Event) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed("agent panicked: %v", r)
		}
	}()
	return a.ProcessEvent(ctx, ev)
}
