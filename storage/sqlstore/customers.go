package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const customerColumns = `id, restaurant_id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''),
	tags, total_reservations, last_interaction_at, created_at`

const (
	getCustomerQuery = `SELECT ` + customerColumns + ` FROM customers WHERE restaurant_id = ? AND id = ?`

	findCustomerByPhoneQuery = `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE restaurant_id = ? AND phone = ?
		ORDER BY id
		LIMIT 1`

	createCustomerQuery = `
		INSERT INTO customers (restaurant_id, name, phone, email, tags, last_interaction_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	listInactiveCustomersQuery = `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE restaurant_id = ? AND last_interaction_at <= ?
		ORDER BY id`
)

func (s *SQLStore) GetCustomer(ctx context.Context, restaurantID, id int64) (*storage.Customer, error) {
	c, err := scanCustomer(s.queryRow(ctx, getCustomerQuery, restaurantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return c, nil
}

func (s *SQLStore) FindCustomerByPhone(ctx context.Context, restaurantID int64, phone string) (*storage.Customer, error) {
	c, err := scanCustomer(s.queryRow(ctx, findCustomerByPhoneQuery, restaurantID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer by phone: %w", err)
	}
	return c, nil
}

func (s *SQLStore) CreateCustomer(ctx context.Context, customer *storage.Customer) (int64, error) {
	tags, err := jsonArg(customer.Tags)
	if err != nil {
		return 0, fmt.Errorf("failed to encode customer tags: %w", err)
	}
	id, err := s.insert(ctx, createCustomerQuery,
		customer.RestaurantID,
		nullString(customer.Name),
		nullString(customer.Phone),
		nullString(customer.Email),
		tags,
		nullTime(customer.LastInteractionAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create customer: %w", err)
	}
	customer.ID = id
	return id, nil
}

func (s *SQLStore) ListInactiveCustomers(ctx context.Context, restaurantID int64, cutoff time.Time) ([]storage.Customer, error) {
	rows, err := s.query(ctx, listInactiveCustomersQuery, restaurantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive customers: %w", err)
	}
	defer rows.Close()

	var out []storage.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading customer rows: %w", err)
	}
	return out, nil
}

func scanCustomer(row scanner) (*storage.Customer, error) {
	var (
		c           storage.Customer
		tags        []byte
		interaction sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.RestaurantID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&tags,
		&c.TotalReservations,
		&interaction,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.LastInteractionAt = timePtr(interaction)
	if err := unmarshalJSON(tags, &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode customer tags: %w", err)
	}
	return &c, nil
}
