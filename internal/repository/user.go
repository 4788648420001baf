package repository

import (
	"context"
	"fmt"
	"strings"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, lowercase_username, email, COALESCE(password_hash, ''), anonymous,
	profile_picture_url, friends, push_token, created_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.LowercaseUsername, &user.Email, &user.PasswordHash,
		&user.Anonymous, &user.ProfilePictureURL, &user.Friends, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, lowercase_username, email, password_hash, anonymous, friends, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`
	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.LowercaseUsername, user.Email, user.PasswordHash,
		user.Anonymous, friends, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, ignoring case
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND email <> ''`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFound("user", email, err)
	}
	return user, nil
}

// SetUsername claims a username. The unique index on lowercase_username
// decides races between two users claiming the same name.
func (r *UserRepository) SetUsername(ctx context.Context, userID, username string) error {
	query := `UPDATE users SET username = $1, lowercase_username = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, username, strings.ToLower(username), userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %s: %w", username, ErrConflict)
		}
		return fmt.Errorf("failed to set username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SearchByUsername returns users whose lowercase username starts with prefix
func (r *UserRepository) SearchByUsername(ctx context.Context, prefix string, limit int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lowercase_username <> '' AND starts_with(lowercase_username, $1)
		ORDER BY lowercase_username
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, strings.ToLower(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// SetProfilePicture stores the picture url and object key and returns the
// key it replaced, if any. Passing nil clears the picture.
func (r *UserRepository) SetProfilePicture(ctx context.Context, userID string, url, key *string) (*string, error) {
	query := `
		UPDATE users u
		SET profile_picture_url = $2, profile_picture_key = $3
		FROM (SELECT id, profile_picture_key FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.profile_picture_key
	`
	var previous *string
	err := r.db.QueryRow(ctx, query, userID, url, key).Scan(&previous)
	if err != nil {
		return nil, notFound("user", userID, err)
	}
	return previous, nil
}
