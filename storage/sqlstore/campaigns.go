package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const (
	getCampaignQuery = `
		SELECT id, restaurant_id, name, message_template, target_audience, status, completed_at, stats, created_at
		FROM campaigns
		WHERE restaurant_id = ? AND id = ?`

	launchCampaignQuery = `
		UPDATE campaigns SET status = ?, updated_at = ?
		WHERE restaurant_id = ? AND id = ? AND status NOT IN (?, ?)`

	completeCampaignQuery = `UPDATE campaigns SET status = ?, completed_at = ?, stats = ?, updated_at = ? WHERE id = ?`
)

func (s *SQLStore) GetCampaign(ctx context.Context, restaurantID, id int64) (*storage.Campaign, error) {
	var (
		c         storage.Campaign
		audience  []byte
		stats     []byte
		completed sql.NullTime
	)
	err := s.queryRow(ctx, getCampaignQuery, restaurantID, id).Scan(
		&c.ID,
		&c.RestaurantID,
		&c.Name,
		&c.MessageTemplate,
		&audience,
		&c.Status,
		&completed,
		&stats,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}
	c.CompletedAt = timePtr(completed)
	if err := unmarshalJSON(audience, &c.TargetAudience); err != nil {
		return nil, fmt.Errorf("failed to decode campaign audience: %w", err)
	}
	if len(stats) > 0 {
		c.Stats = &storage.CampaignStats{}
		if err := unmarshalJSON(stats, c.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode campaign stats: %w", err)
		}
	}
	return &c, nil
}

func (s *SQLStore) LaunchCampaign(ctx context.Context, restaurantID, id int64, at time.Time) (bool, error) {
	launched, err := s.execOne(ctx, launchCampaignQuery,
		storage.CampaignRunning, at, restaurantID, id, storage.CampaignRunning, storage.CampaignCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to launch campaign %d: %w", id, err)
	}
	return launched, nil
}

func (s *SQLStore) CompleteCampaign(ctx context.Context, id int64, stats storage.CampaignStats, at time.Time) error {
	encoded, err := jsonArg(stats)
	if err != nil {
		return fmt.Errorf("failed to encode campaign stats: %w", err)
	}
	if _, err := s.exec(ctx, completeCampaignQuery, storage.CampaignCompleted, at, encoded, at, id); err != nil {
		return fmt.Errorf("failed to complete campaign %d: %w", id, err)
	}
	return nil
}
