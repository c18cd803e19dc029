package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

const recordMetricQuery = `
	INSERT INTO analytics_metrics (restaurant_id, agent_key, metric_type, metric_value, dimensions, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)`

func (s *SQLStore) RecordMetric(ctx context.Context, m *storage.Metric) error {
	dims, err := jsonArg(m.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to encode metric dimensions: %w", err)
	}
	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	if _, err := s.exec(ctx, recordMetricQuery,
		m.RestaurantID,
		nullString(m.AgentKey),
		m.MetricType,
		m.MetricValue,
		dims,
		recordedAt,
	); err != nil {
		return fmt.Errorf("failed to record metric %s: %w", m.MetricType, err)
	}
	return nil
}
