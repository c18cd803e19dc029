package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const eventColumns = `id, restaurant_id, event_type, agent_key, payload, status, error, claimed_at, processed_at, created_at`

const (
	createEventQuery = `
		INSERT INTO events (restaurant_id, event_type, agent_key, payload, status)
		VALUES (?, ?, ?, ?, ?)`

	getEventQuery = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	listPendingQuery = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?`

	claimEventQuery = `UPDATE events SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`

	finishEventQuery = `UPDATE events SET status = ?, error = ?, processed_at = ? WHERE id = ? AND status = ?`

	fetchStuckQuery = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = ? AND claimed_at < ?
		ORDER BY claimed_at, id
		LIMIT ?`
)

func (s *SQLStore) CreateEvent(ctx context.Context, event *storage.EventRecord) (int64, error) {
	status := event.Status
	if status == "" {
		status = storage.EventStatusPending
	}
	id, err := s.insert(ctx, createEventQuery,
		event.RestaurantID,
		event.EventType,
		nullString(event.AgentKey),
		rawJSONArg(event.Payload),
		string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save event: %w", err)
	}
	event.ID = id
	event.Status = status
	return id, nil
}

func (s *SQLStore) GetEvent(ctx context.Context, id int64) (*storage.EventRecord, error) {
	ev, err := scanEvent(s.queryRow(ctx, getEventQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return ev, nil
}

func (s *SQLStore) ListPendingEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	rows, err := s.query(ctx, listPendingQuery, string(storage.EventStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *SQLStore) UpdateEventStatus(ctx context.Context, update storage.StatusUpdate) (bool, error) {
	if !update.From.CanTransitionTo(update.To) {
		return false, fmt.Errorf("invalid event status transition %s -> %s", update.From, update.To)
	}

	var (
		applied bool
		err     error
	)
	if update.To == storage.EventStatusProcessing {
		applied, err = s.execOne(ctx, claimEventQuery,
			string(update.To), update.At, update.ID, string(update.From))
	} else {
		applied, err = s.execOne(ctx, finishEventQuery,
			string(update.To), nullString(update.Error), update.At, update.ID, string(update.From))
	}
	if err != nil {
		return false, fmt.Errorf("failed to update event %d to %s: %w", update.ID, update.To, err)
	}
	return applied, nil
}

func (s *SQLStore) FetchStuckEvents(ctx context.Context, claimedBefore time.Time, limit int) ([]storage.EventRecord, error) {
	rows, err := s.query(ctx, fetchStuckQuery, string(storage.EventStatusProcessing), claimedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvent(row scanner) (*storage.EventRecord, error) {
	var (
		ev        storage.EventRecord
		agentKey  sql.NullString
		payload   []byte
		status    string
		errText   sql.NullString
		claimed   sql.NullTime
		processed sql.NullTime
	)
	if err := row.Scan(
		&ev.ID,
		&ev.RestaurantID,
		&ev.EventType,
		&agentKey,
		&payload,
		&status,
		&errText,
		&claimed,
		&processed,
		&ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	ev.AgentKey = agentKey.String
	ev.Payload = payload
	ev.Status = storage.EventStatus(status)
	ev.Error = errText.String
	ev.ClaimedAt = timePtr(claimed)
	ev.ProcessedAt = timePtr(processed)
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]storage.EventRecord, error) {
	var events []storage.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading event rows: %w", err)
	}
	return events, nil
}
