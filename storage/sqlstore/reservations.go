package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const reservationColumns = `r.id, r.restaurant_id, r.customer_id, r.reservation_date, r.party_size,
	COALESCE(r.special_requests, ''), r.status, COALESCE(r.source, ''),
	r.confirmation_sent_at, r.reminder_sent_at, r.reminder_queued_at, r.created_at`

const (
	getReservationQuery = `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.restaurant_id = ? AND r.id = ?`

	createReservationQuery = `
		INSERT INTO reservations (restaurant_id, customer_id, reservation_date, party_size, special_requests, status, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	markConfirmationSentQuery = `UPDATE reservations SET status = ?, confirmation_sent_at = ?, updated_at = ? WHERE id = ?`

	markReminderSentQuery = `UPDATE reservations SET reminder_sent_at = ?, updated_at = ? WHERE id = ?`

	listDueRemindersQuery = `
		SELECT ` + reservationColumns + `
		FROM reservations r
		INNER JOIN restaurant_agents a
			ON a.restaurant_id = r.restaurant_id AND a.agent_key = ? AND a.is_enabled = TRUE
		WHERE r.status = ?
			AND r.reservation_date >= ? AND r.reservation_date < ?
			AND r.reminder_sent_at IS NULL
			AND r.reminder_queued_at IS NULL
		ORDER BY r.reservation_date, r.id
		LIMIT ?`

	markReminderQueuedQuery = `
		UPDATE reservations SET reminder_queued_at = ?, updated_at = ?
		WHERE id = ? AND reminder_queued_at IS NULL`
)

func (s *SQLStore) GetReservation(ctx context.Context, restaurantID, id int64) (*storage.Reservation, error) {
	r, err := scanReservation(s.queryRow(ctx, getReservationQuery, restaurantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return r, nil
}

func (s *SQLStore) CreateReservation(ctx context.Context, r *storage.Reservation) (int64, error) {
	status := r.Status
	if status == "" {
		status = storage.ReservationPending
	}
	id, err := s.insert(ctx, createReservationQuery,
		r.RestaurantID,
		r.CustomerID,
		r.ReservationDate,
		r.PartySize,
		nullString(r.SpecialRequests),
		status,
		nullString(r.Source),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create reservation: %w", err)
	}
	r.ID = id
	r.Status = status
	return id, nil
}

func (s *SQLStore) MarkConfirmationSent(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.exec(ctx, markConfirmationSentQuery, storage.ReservationConfirmed, at, at, id); err != nil {
		return fmt.Errorf("failed to confirm reservation %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.exec(ctx, markReminderSentQuery, at, at, id); err != nil {
		return fmt.Errorf("failed to mark reminder sent for reservation %d: %w", id, err)
	}
	return nil
}

func (s *SQLStore) ListDueReminders(ctx context.Context, agentKey string, from, to time.Time, limit int) ([]storage.Reservation, error) {
	rows, err := s.query(ctx, listDueRemindersQuery, agentKey, storage.ReservationConfirmed, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var out []storage.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading reservation rows: %w", err)
	}
	return out, nil
}

func (s *SQLStore) MarkReminderQueued(ctx context.Context, id int64, at time.Time) (bool, error) {
	ok, err := s.execOne(ctx, markReminderQueuedQuery, at, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder queued for reservation %d: %w", id, err)
	}
	return ok, nil
}

func scanReservation(row scanner) (*storage.Reservation, error) {
	var (
		r            storage.Reservation
		confirmation sql.NullTime
		reminder     sql.NullTime
		queued       sql.NullTime
	)
	if err := row.Scan(
		&r.ID,
		&r.RestaurantID,
		&r.CustomerID,
		&r.ReservationDate,
		&r.PartySize,
		&r.SpecialRequests,
		&r.Status,
		&r.Source,
		&confirmation,
		&reminder,
		&queued,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.ConfirmationSentAt = timePtr(confirmation)
	r.ReminderSentAt = timePtr(reminder)
	r.ReminderQueuedAt = timePtr(queued)
	return &r, nil
}
