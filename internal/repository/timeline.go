package repository

import (
	"context"
	"fmt"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineRepository handles database operations for timeline items
type TimelineRepository struct {
	db *pgxpool.Pool
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *pgxpool.Pool) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Create creates a timeline item under a trip owned by userID
func (r *TimelineRepository) Create(ctx context.Context, userID string, item *models.TimelineItem) error {
	query := `
		INSERT INTO timeline_items (id, trip_id, user_id, date, time, description, notes, image_urls)
		SELECT $1, t.id, t.user_id, $4, $5, $6, $7, $8
		FROM trips t
		WHERE t.user_id = $2 AND t.id = $3
	`
	result, err := r.db.Exec(ctx, query,
		item.ID, userID, item.TripID, item.Date, item.Time, item.Description, item.Notes, nonNil(item.ImageURLs),
	)
	if err != nil {
		return fmt.Errorf("failed to create timeline item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", item.TripID, ErrNotFound)
	}
	return nil
}

// GetByID retrieves a timeline item
func (r *TimelineRepository) GetByID(ctx context.Context, userID, tripID, itemID string) (*models.TimelineItem, error) {
	query := `
		SELECT id, trip_id, date, time, description, notes, image_urls
		FROM timeline_items
		WHERE user_id = $1 AND trip_id = $2 AND id = $3
	`
	var item models.TimelineItem
	err := r.db.QueryRow(ctx, query, userID, tripID, itemID).Scan(
		&item.ID, &item.TripID, &item.Date, &item.Time, &item.Description, &item.Notes, &item.ImageURLs,
	)
	if err != nil {
		return nil, notFound("timeline item", itemID, err)
	}
	return &item, nil
}

// Update overwrites the editable fields of a timeline item
func (r *TimelineRepository) Update(ctx context.Context, userID string, item *models.TimelineItem) error {
	query := `
		UPDATE timeline_items
		SET date = $4, time = $5, description = $6, notes = $7
		WHERE user_id = $1 AND trip_id = $2 AND id = $3
	`
	result, err := r.db.Exec(ctx, query,
		userID, item.TripID, item.ID, item.Date, item.Time, item.Description, item.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update timeline item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("timeline item %s: %w", item.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a timeline item
func (r *TimelineRepository) Delete(ctx context.Context, userID, tripID, itemID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM timeline_items WHERE user_id = $1 AND trip_id = $2 AND id = $3`,
		userID, tripID, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete timeline item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("timeline item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// AppendImages adds image urls to a timeline item
func (r *TimelineRepository) AppendImages(ctx context.Context, userID, tripID, itemID string, urls []string) error {
	query := `
		UPDATE timeline_items SET image_urls = image_urls || $4::text[]
		WHERE user_id = $1 AND trip_id = $2 AND id = $3
	`
	result, err := r.db.Exec(ctx, query, userID, tripID, itemID, urls)
	if err != nil {
		return fmt.Errorf("failed to add timeline images: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("timeline item %s: %w", itemID, ErrNotFound)
	}
	return nil
}
