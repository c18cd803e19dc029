package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cotah/tuxeai-app/storage"
)

const (
	getReviewQuery = `
		SELECT id, restaurant_id, platform, COALESCE(external_id, ''), COALESCE(author_name, ''), rating,
			COALESCE(review_text, ''), review_date, COALESCE(response_text, ''),
			COALESCE(response_generated_by, ''), COALESCE(sentiment, ''), created_at
		FROM reviews
		WHERE restaurant_id = ? AND id = ?`

	createReviewQuery = `
		INSERT INTO reviews (restaurant_id, platform, external_id, author_name, rating, review_text, review_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateReviewSentimentQuery = `UPDATE reviews SET sentiment = ? WHERE id = ?`

	saveReviewResponseQuery = `UPDATE reviews SET response_text = ?, response_generated_by = ? WHERE id = ?`
)

func (s *SQLStore) GetReview(ctx context.Context, restaurantID, id int64) (*storage.Review, error) {
	var r storage.Review
	err := s.queryRow(ctx, getReviewQuery, restaurantID, id).Scan(
		&r.ID,
		&r.RestaurantID,
		&r.Platform,
		&r.ExternalID,
		&r.AuthorName,
		&r.Rating,
		&r.ReviewText,
		&r.ReviewDate,
		&r.ResponseText,
		&r.ResponseGeneratedBy,
		&r.Sentiment,
		&r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review %d: %w", id, err)
	}
	return &r, nil
}

func (s *SQLStore) CreateReview(ctx context.Context, r *storage.Review) (int64, error) {
	id, err := s.insert(ctx, createReviewQuery,
		r.RestaurantID,
		r.Platform,
		nullString(r.ExternalID),
		nullString(r.AuthorName),
		r.Rating,
		nullString(r.ReviewText),
		r.ReviewDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create review: %w", err)
	}
	r.ID = id
	return id, nil
}

func (s *SQLStore) UpdateReviewSentiment(ctx context.Context, id int64, sentiment string) error {
	if _, err := s.exec(ctx, updateReviewSentimentQuery, sentiment, id); err != nil {
		return fmt.Errorf("failed to update review %d sentiment: %w", id, err)
	}
	return nil
}

func (s *SQLStore) SaveReviewResponse(ctx context.Context, id int64, text, generatedBy string) error {
	if _, err := s.exec(ctx, saveReviewResponseQuery, text, generatedBy, id); err != nil {
		return fmt.Errorf("failed to save review %d response: %w", id, err)
	}
	return nil
}
