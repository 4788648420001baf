package repository

import (
	"context"
	"fmt"
	"time"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SharedTripRepository handles database operations for shared trip posts
type SharedTripRepository struct {
	db *pgxpool.Pool
}

// NewSharedTripRepository creates a new shared trip repository
func NewSharedTripRepository(db *pgxpool.Pool) *SharedTripRepository {
	return &SharedTripRepository{db: db}
}

// Create publishes a shared trip
func (r *SharedTripRepository) Create(ctx context.Context, post *models.SharedTrip) error {
	query := `
		INSERT INTO shared_trips (id, user_id, username, profile_picture_url, shared_text,
			image_urls, timestamp, original_trip_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		post.ID, post.UserID, post.Username, post.ProfilePictureURL, post.SharedText,
		nonNil(post.ImageURLs), post.Timestamp, post.OriginalTripID,
	)
	if err != nil {
		return fmt.Errorf("failed to create shared trip: %w", err)
	}
	return nil
}

// Update changes the caption and photos of a post written by userID and
// moves it to the top of the feed
func (r *SharedTripRepository) Update(ctx context.Context, userID, id, text string, images []string, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE shared_trips SET shared_text = $3, image_urls = $4, timestamp = $5
		WHERE user_id = $1 AND id = $2
	`, userID, id, text, nonNil(images), at)
	if err != nil {
		return fmt.Errorf("failed to update shared trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("shared trip %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a post written by userID
func (r *SharedTripRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM shared_trips WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete shared trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("shared trip %s: %w", id, ErrNotFound)
	}
	return nil
}
