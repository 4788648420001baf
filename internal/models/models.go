package models

import (
	"sort"
	"strings"
	"time"
)

// User represents a user in the system
type User struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	LowercaseUsername string    `json:"lowercase_username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Anonymous         bool      `json:"anonymous"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	Friends           []string  `json:"friends"`
	PushToken         *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// TripType is derived from comparing a trip's start date with today
type TripType string

const (
	TripTypeUpcoming TripType = "UPCOMING"
	TripTypePast     TripType = "PAST"
)

// Trip represents a user-owned travel record
type Trip struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Destination    string   `json:"destination"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Type           TripType `json:"type"`
	Flights        string   `json:"flights"`
	Accommodation  string   `json:"accommodation"`
	Notes          string   `json:"notes"`
	ImageURLs      []string `json:"image_urls"`
	InvitedFriends []string `json:"invited_friends"`
}

// TimelineItem is a dated sub-event nested under a trip
type TimelineItem struct {
	ID          string   `json:"id"`
	TripID      string   `json:"trip_id"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	ImageURLs   []string `json:"image_urls"`
}

// SharedTrip is a public post referencing a trip's photos and a caption
type SharedTrip struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Username          string    `json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	SharedText        string    `json:"shared_text"`
	ImageURLs         []string  `json:"image_urls"`
	Timestamp         time.Time `json:"timestamp"`
	OriginalTripID    string    `json:"original_trip_id"`
}

// Conversation is one participant's summary of a message thread
type Conversation struct {
	ID                         string    `json:"id"`
	OwnerID                    string    `json:"owner_id"`
	Participants               []string  `json:"participants"`
	LastMessage                string    `json:"last_message"`
	LastMessageSenderID        string    `json:"last_message_sender_id"`
	OtherUserUsername          string    `json:"other_user_username"`
	OtherUserProfilePictureURL string    `json:"other_user_profile_picture_url"`
	LastUpdated                time.Time `json:"last_updated"`
}

// Message is a single entry in a conversation
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// Friend is the copy of a user kept in another user's friend list
type Friend struct {
	OwnerID           string    `json:"owner_id"`
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AddedAt           time.Time `json:"added_at"`
}

// ConversationID derives the id shared by both participants of a
// conversation. The result does not depend on argument order.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}
