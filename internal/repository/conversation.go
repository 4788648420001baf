package repository

import (
	"context"
	"fmt"

	"tripwise-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository handles messages and the per-participant
// conversation summaries
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Send stores msg and upserts each participant's copy of the conversation
// in one transaction.
func (r *ConversationRepository) Send(ctx context.Context, msg *models.Message, copies ...*models.Conversation) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, text, timestamp)
			VALUES ($1, $2, $3, $4, $5)
		`, msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}

		upsert := `
			INSERT INTO conversations (owner_id, id, participants, last_message, last_message_sender_id,
				other_user_username, other_user_profile_picture_url, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (owner_id, id) DO UPDATE
			SET participants = EXCLUDED.participants,
				last_message = EXCLUDED.last_message,
				last_message_sender_id = EXCLUDED.last_message_sender_id,
				other_user_username = EXCLUDED.other_user_username,
				other_user_profile_picture_url = EXCLUDED.other_user_profile_picture_url,
				last_updated = EXCLUDED.last_updated
		`
		for _, c := range copies {
			_, err := tx.Exec(ctx, upsert,
				c.OwnerID, c.ID, nonNil(c.Participants), c.LastMessage, c.LastMessageSenderID,
				c.OtherUserUsername, c.OtherUserProfilePictureURL, c.LastUpdated,
			)
			if err != nil {
				return fmt.Errorf("failed to update conversation: %w", err)
			}
		}
		return nil
	})
}
