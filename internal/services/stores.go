package services

import (
	"context"
	"time"

	"tripwise-backend/internal/models"
)

// UserReader loads user profiles
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// TripReader loads one of a user's trips
type TripReader interface {
	GetByID(ctx context.Context, userID, tripID string) (*models.Trip, error)
}

// FriendStore writes both sides of a friendship together
type FriendStore interface {
	Add(ctx context.Context, a, b *models.User, at time.Time) error
	Remove(ctx context.Context, a, b string) error
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// ConversationStore writes a message together with every participant's
// conversation summary
type ConversationStore interface {
	Send(ctx context.Context, msg *models.Message, copies ...*models.Conversation) error
}

// SharedTripStore writes feed posts
type SharedTripStore interface {
	Create(ctx context.Context, post *models.SharedTrip) error
	Update(ctx context.Context, userID, id, text string, images []string, at time.Time) error
	Delete(ctx context.Context, userID, id string) error
}
