package repository

import (
	"context"
	"fmt"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TripRepository handles database operations for trips
type TripRepository struct {
	db *pgxpool.Pool
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *pgxpool.Pool) *TripRepository {
	return &TripRepository{db: db}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create creates a new trip
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (id, user_id, destination, start_date, end_date, type,
			flights, accommodation, notes, image_urls, invited_friends)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		trip.ID, trip.UserID, trip.Destination, trip.StartDate, trip.EndDate, trip.Type,
		trip.Flights, trip.Accommodation, trip.Notes, nonNil(trip.ImageURLs), nonNil(trip.InvitedFriends),
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetByID retrieves a trip owned by userID
func (r *TripRepository) GetByID(ctx context.Context, userID, tripID string) (*models.Trip, error) {
	query := `
		SELECT id, user_id, destination, start_date, end_date, type,
			flights, accommodation, notes, image_urls, invited_friends
		FROM trips
		WHERE user_id = $1 AND id = $2
	`
	var trip models.Trip
	err := r.db.QueryRow(ctx, query, userID, tripID).Scan(
		&trip.ID, &trip.UserID, &trip.Destination, &trip.StartDate, &trip.EndDate, &trip.Type,
		&trip.Flights, &trip.Accommodation, &trip.Notes, &trip.ImageURLs, &trip.InvitedFriends,
	)
	if err != nil {
		return nil, notFound("trip", tripID, err)
	}
	return &trip, nil
}

// Update overwrites the editable fields of a trip. Images are managed by
// AppendImages.
func (r *TripRepository) Update(ctx context.Context, trip *models.Trip) error {
	query := `
		UPDATE trips
		SET destination = $3, start_date = $4, end_date = $5, type = $6,
			flights = $7, accommodation = $8, notes = $9, invited_friends = $10
		WHERE user_id = $1 AND id = $2
	`
	result, err := r.db.Exec(ctx, query,
		trip.UserID, trip.ID, trip.Destination, trip.StartDate, trip.EndDate, trip.Type,
		trip.Flights, trip.Accommodation, trip.Notes, nonNil(trip.InvitedFriends),
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", trip.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a trip and, by cascade, its timeline
func (r *TripRepository) Delete(ctx context.Context, userID, tripID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM trips WHERE user_id = $1 AND id = $2`, userID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	return nil
}

// AppendImages adds image urls to a trip
func (r *TripRepository) AppendImages(ctx context.Context, userID, tripID string, urls []string) error {
	query := `UPDATE trips SET image_urls = image_urls || $3::text[] WHERE user_id = $1 AND id = $2`
	result, err := r.db.Exec(ctx, query, userID, tripID, urls)
	if err != nil {
		return fmt.Errorf("failed to add trip images: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	return nil
}
