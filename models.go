package tuxeai

import (
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

// Event is what callers enqueue. Payload is marshalled to JSON.
type Event struct {
	RestaurantID int64
	EventType    string
	AgentKey     string
	Payload      any
}

// EventNotification is published once an event is completed or failed.
type EventNotification struct {
	EventID      int64               `json:"event_id"`
	RestaurantID int64               `json:"restaurant_id"`
	EventType    string              `json:"event_type"`
	AgentKey     string              `json:"agent_key,omitempty"`
	Status       storage.EventStatus `json:"status"`
	Message      string              `json:"message,omitempty"`
	Error        string              `json:"error,omitempty"`
	ProcessedAt  time.Time           `json:"processed_at"`
}
