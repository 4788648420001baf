package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const pushTimeout = 10 * time.Second

// Presence reports whether a user has a live connection
type Presence interface {
	IsOnline(userID string) bool
}

// MessageService handles direct messages between friends
type MessageService struct {
	convRepo   ConversationStore
	friendRepo FriendStore
	userRepo   UserReader
	source     livequery.Source
	dispatcher *Dispatcher
	presence   Presence
	pusher     Pusher
	clock      clock.Clock
}

// NewMessageService creates a new message service. pusher may be nil.
func NewMessageService(
	convRepo ConversationStore,
	friendRepo FriendStore,
	userRepo UserReader,
	source livequery.Source,
	dispatcher *Dispatcher,
	presence Presence,
	pusher Pusher,
	clk clock.Clock,
) *MessageService {
	return &MessageService{
		convRepo:   convRepo,
		friendRepo: friendRepo,
		userRepo:   userRepo,
		source:     source,
		dispatcher: dispatcher,
		presence:   presence,
		pusher:     pusher,
		clock:      clk,
	}
}

// Send delivers text from senderID to otherID. The message and both
// participants' conversation summaries are written together.
func (s *MessageService) Send(ctx context.Context, senderID, otherID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("Message cannot be empty.")
	}
	if otherID == senderID {
		return nil, invalid("You cannot message yourself.")
	}
	friends, err := s.friendRepo.AreFriends(ctx, senderID, otherID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrNotFriends
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	convID := models.ConversationID(senderID, otherID)
	msg := &models.Message{
		ID:             ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		ConversationID: convID,
		SenderID:       senderID,
		Text:           text,
		Timestamp:      now,
	}
	participants := []string{senderID, otherID}
	copies := []*models.Conversation{
		summary(convID, sender, recipient, participants, msg),
		summary(convID, recipient, sender, participants, msg),
	}

	err = s.dispatcher.Do(ctx, "send_message", func(ctx context.Context) error {
		return s.convRepo.Send(ctx, msg, copies...)
	}, messagesPath(convID), conversationsPath(senderID), conversationsPath(otherID))
	if err != nil {
		return nil, err
	}

	s.notifyOffline(recipient, sender, msg)
	return msg, nil
}

func summary(convID string, owner, other *models.User, participants []string, msg *models.Message) *models.Conversation {
	picture := ""
	if other.ProfilePictureURL != nil {
		picture = *other.ProfilePictureURL
	}
	return &models.Conversation{
		ID:                         convID,
		OwnerID:                    owner.ID,
		Participants:               participants,
		LastMessage:                msg.Text,
		LastMessageSenderID:        msg.SenderID,
		OtherUserUsername:          other.Username,
		OtherUserProfilePictureURL: picture,
		LastUpdated:                msg.Timestamp,
	}
}

func (s *MessageService) notifyOffline(recipient, sender *models.User, msg *models.Message) {
	if s.pusher == nil || recipient.PushToken == nil {
		return
	}
	if s.presence != nil && s.presence.IsOnline(recipient.ID) {
		return
	}
	token := *recipient.PushToken
	title := sender.Username
	if title == "" {
		title = "New message"
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		err := s.pusher.Push(ctx, token, title, msg.Text, map[string]string{
			"conversation_id": msg.ConversationID,
			"sender_id":       msg.SenderID,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("user_id", recipient.ID).
				Str("message_id", msg.ID).
				Msg("Failed to send push notification")
		}
	}()
}

// Conversations returns the user's conversations, most recent first
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	docs, err := s.source.Fetch(ctx, ConversationsQuery(userID))
	if err != nil {
		return nil, err
	}
	return mapper.All("conversation", docs, mapper.Conversation), nil
}

// Messages returns the messages between userID and otherID, oldest first
func (s *MessageService) Messages(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	if otherID == "" || otherID == userID {
		return nil, fmt.Errorf("%w: other user", ErrInvalidInput)
	}
	docs, err := s.source.Fetch(ctx, MessagesQuery(models.ConversationID(userID, otherID)))
	if err != nil {
		return nil, err
	}
	return mapper.All("message", docs, mapper.Message), nil
}

// ConversationsQuery selects a user's conversation summaries, most recent
// first
func ConversationsQuery(userID string) livequery.Query {
	return livequery.NewQuery(conversationsPath(userID)).OrderBy("last_updated", true)
}

// MessagesQuery selects the messages of a conversation, oldest first
func MessagesQuery(conversationID string) livequery.Query {
	return livequery.NewQuery(messagesPath(conversationID)).OrderBy("timestamp", false)
}
