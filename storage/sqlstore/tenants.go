package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const restaurantColumns = `r.id, r.owner_id, r.name, COALESCE(r.description, ''), COALESCE(r.address, ''),
	COALESCE(r.phone, ''), COALESCE(r.email, ''), COALESCE(r.website_url, ''), COALESCE(r.menu_url, ''),
	r.timezone, r.business_hours`

const staffColumns = `s.id, s.restaurant_id, s.user_id, s.role, s.permissions, s.is_active`

const (
	getRestaurantQuery = `SELECT ` + restaurantColumns + ` FROM restaurants r WHERE r.id = ?`

	listMembershipsQuery = `
		SELECT ` + restaurantColumns + `, ` + staffColumns + `
		FROM restaurant_staff s
		INNER JOIN restaurants r ON r.id = s.restaurant_id
		WHERE s.user_id = ?
		ORDER BY s.id`

	getStaffMemberQuery = `
		SELECT ` + staffColumns + `
		FROM restaurant_staff s
		WHERE s.restaurant_id = ? AND s.user_id = ?
		LIMIT 1`

	getSubscriptionQuery = `
		SELECT id, restaurant_id, agent_key, is_enabled, configuration, subscribed_at, last_active_at
		FROM restaurant_agents
		WHERE restaurant_id = ? AND agent_key = ?`

	insertSubscriptionQuery = `INSERT INTO restaurant_agents (restaurant_id, agent_key, is_enabled) VALUES (?, ?, ?)`

	touchSubscriptionQuery = `UPDATE restaurant_agents SET last_active_at = ? WHERE restaurant_id = ? AND agent_key = ?`
)

func (s *SQLStore) GetRestaurant(ctx context.Context, id int64) (*storage.Restaurant, error) {
	var (
		r     storage.Restaurant
		hours []byte
	)
	err := s.queryRow(ctx, getRestaurantQuery, id).Scan(restaurantDest(&r, &hours)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant %d: %w", id, err)
	}
	r.BusinessHours = hours
	return &r, nil
}

func (s *SQLStore) ListMemberships(ctx context.Context, userID int64) ([]storage.Membership, error) {
	rows, err := s.query(ctx, listMembershipsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var out []storage.Membership
	for rows.Next() {
		var (
			m           storage.Membership
			hours       []byte
			role        string
			permissions []byte
		)
		dest := append(restaurantDest(&m.Restaurant, &hours),
			&m.Staff.ID, &m.Staff.RestaurantID, &m.Staff.UserID, &role, &permissions, &m.Staff.IsActive)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		m.Restaurant.BusinessHours = hours
		m.Staff.Role = storage.Role(role)
		if err := unmarshalJSON(permissions, &m.Staff.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode staff permissions: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading membership rows: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetStaffMember(ctx context.Context, restaurantID, userID int64) (*storage.StaffMember, error) {
	var (
		m           storage.StaffMember
		role        string
		permissions []byte
	)
	err := s.queryRow(ctx, getStaffMemberQuery, restaurantID, userID).
		Scan(&m.ID, &m.RestaurantID, &m.UserID, &role, &permissions, &m.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}
	m.Role = storage.Role(role)
	if err := unmarshalJSON(permissions, &m.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode staff permissions: %w", err)
	}
	return &m, nil
}

func (s *SQLStore) GetSubscription(ctx context.Context, restaurantID int64, agentKey string) (*storage.Subscription, error) {
	var (
		sub        storage.Subscription
		config     []byte
		lastActive sql.NullTime
	)
	err := s.queryRow(ctx, getSubscriptionQuery, restaurantID, agentKey).
		Scan(&sub.ID, &sub.RestaurantID, &sub.AgentKey, &sub.IsEnabled, &config, &sub.SubscribedAt, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", agentKey, err)
	}
	sub.LastActiveAt = timePtr(lastActive)
	if err := unmarshalJSON(config, &sub.Configuration); err != nil {
		return nil, fmt.Errorf("failed to decode agent configuration: %w", err)
	}
	if sub.Configuration == nil {
		sub.Configuration = map[string]any{}
	}
	return &sub, nil
}

func (s *SQLStore) SetSubscriptionEnabled(ctx context.Context, restaurantID int64, agentKey string, enabled bool) error {
	query := s.dialect.upsert(insertSubscriptionQuery, []string{"restaurant_id", "agent_key"}, "is_enabled")
	if _, err := s.exec(ctx, query, restaurantID, agentKey, enabled); err != nil {
		return fmt.Errorf("failed to set subscription %s: %w", agentKey, err)
	}
	return nil
}

func (s *SQLStore) TouchSubscription(ctx context.Context, restaurantID int64, agentKey string, at time.Time) error {
	if _, err := s.exec(ctx, touchSubscriptionQuery, at, restaurantID, agentKey); err != nil {
		return fmt.Errorf("failed to touch subscription %s: %w", agentKey, err)
	}
	return nil
}

func restaurantDest(r *storage.Restaurant, hours *[]byte) []any {
	return []any{
		&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.Address,
		&r.Phone, &r.Email, &r.WebsiteURL, &r.MenuURL,
		&r.Timezone, hours,
	}
}
