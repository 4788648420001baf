package repository

import (
	"context"
	"fmt"
	"time"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendRepository handles database operations for friendships
type FriendRepository struct {
	db *pgxpool.Pool
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

// Add makes a and b friends of each other. Both friend rows and both
// users' friend id lists are written in one transaction. Adding an existing
// friendship refreshes the copied profile fields.
func (r *FriendRepository) Add(ctx context.Context, a, b *models.User, at time.Time) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO friends (owner_id, id, username, email, profile_picture_url, added_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (owner_id, id) DO UPDATE
			SET username = EXCLUDED.username, email = EXCLUDED.email,
				profile_picture_url = EXCLUDED.profile_picture_url
		`
		link := `
			UPDATE users SET friends = array_append(friends, $2)
			WHERE id = $1 AND NOT ($2 = ANY(friends))
		`
		for _, pair := range [][2]*models.User{{a, b}, {b, a}} {
			owner, friend := pair[0], pair[1]
			if _, err := tx.Exec(ctx, insert,
				owner.ID, friend.ID, friend.Username, friend.Email, friend.ProfilePictureURL, at,
			); err != nil {
				return fmt.Errorf("failed to add friend: %w", err)
			}
			if _, err := tx.Exec(ctx, link, owner.ID, friend.ID); err != nil {
				return fmt.Errorf("failed to link friend: %w", err)
			}
		}
		return nil
	})
}

// Remove ends the friendship between a and b on both sides
func (r *FriendRepository) Remove(ctx context.Context, a, b string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			`DELETE FROM friends WHERE (owner_id = $1 AND id = $2) OR (owner_id = $2 AND id = $1)`, a, b,
		)
		if err != nil {
			return fmt.Errorf("failed to remove friend: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("friend %s: %w", b, ErrNotFound)
		}
		_, err = tx.Exec(ctx, `
			UPDATE users SET friends = array_remove(friends, CASE WHEN id = $1 THEN $2 ELSE $1 END)
			WHERE id IN ($1, $2)
		`, a, b)
		if err != nil {
			return fmt.Errorf("failed to unlink friend: %w", err)
		}
		return nil
	})
}

// AreFriends reports whether b is in a's friend list
func (r *FriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friends WHERE owner_id = $1 AND id = $2)`, a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}
