package tuxeai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cotah/tuxeai-app/storage"
)

// ErrInvalidEvent is returned by Enqueue for events missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// Enqueue stores ev as a pending event and returns its id. Pass a ctx from a
// storage.Transactor to make the insert part of a larger transaction.
func Enqueue(ctx context.Context, store storage.EventStore, ev Event) (int64, error) {
	if err := validateEvent(ev); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	id, err := store.CreateEvent(ctx, &storage.EventRecord{
		RestaurantID: ev.RestaurantID,
		EventType:    ev.EventType,
		AgentKey:     ev.AgentKey,
		Payload:      payload,
		Status:       storage.EventStatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save event: %w", err)
	}
	return id, nil
}

func validateEvent(ev Event) error {
	if ev.RestaurantID <= 0 {
		return fmt.Errorf("%w: restaurant id is required", ErrInvalidEvent)
	}
	if ev.EventType == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	}
	return nil
}
