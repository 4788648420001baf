package mapper

import (
	"errors"
	"testing"
	"time"

	"tripwise-backend/internal/livequery"

	"github.com/go-playground/assert/v2"
)

func doc(path, id string, fields map[string]any) livequery.Document {
	p, err := livequery.ParsePath(path)
	if err != nil {
		panic(err)
	}
	return livequery.Document{ID: id, Path: p, Fields: fields}
}

func TestTripOverridesIDsFromPath(t *testing.T) {
	trip, err := Trip(doc("users/u1/trips", "t1", map[string]any{
		"id":          "stale",
		"user_id":     "someone-else",
		"destination": "Paris",
		"start_date":  "2025-07-01",
		"image_urls":  []any{"a.jpg", "b.jpg"},
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, "t1", trip.ID)
	assert.Equal(t, "u1", trip.UserID)
	assert.Equal(t, "Paris", trip.Destination)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, trip.ImageURLs)
	assert.Equal(t, []string{}, trip.InvitedFriends)
	assert.Equal(t, "", trip.EndDate)
}

func TestTimelineItemOverridesTripID(t *testing.T) {
	item, err := TimelineItem(doc("users/u1/trips/t9/timeline", "i1", map[string]any{
		"trip_id":     "wrong",
		"date":        "2025-07-02",
		"time":        "09:30",
		"description": "Louvre",
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, "i1", item.ID)
	assert.Equal(t, "t9", item.TripID)
	assert.Equal(t, "09:30", item.Time)
}

func TestMissingFieldsDefault(t *testing.T) {
	u, err := User(doc("users", "u1", map[string]any{}))
	assert.Equal(t, nil, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "", u.Username)
	assert.Equal(t, (*string)(nil), u.ProfilePictureURL)
	assert.Equal(t, []string{}, u.Friends)
	assert.Equal(t, true, u.CreatedAt.IsZero())
}

func TestWrongTypeFails(t *testing.T) {
	_, err := SharedTrip(doc("shared_trips", "s1", map[string]any{"shared_text": 42}))
	assert.Equal(t, true, errors.Is(err, ErrMalformed))

	_, err = Trip(doc("users/u1/trips", "t1", map[string]any{"image_urls": []any{"ok", 3}}))
	assert.Equal(t, true, errors.Is(err, ErrMalformed))

	_, err = Message(doc("conversations/a_b/messages", "m1", map[string]any{"timestamp": "yesterday"}))
	assert.Equal(t, true, errors.Is(err, ErrMalformed))
}

func TestMissingIDFails(t *testing.T) {
	_, err := Friend(doc("users/u1/friends", "", map[string]any{}))
	assert.Equal(t, true, errors.Is(err, ErrMalformed))
}

func TestConversationAndMessage(t *testing.T) {
	ts := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	c, err := Conversation(doc("users/a/conversations", "a_b", map[string]any{
		"participants":        []string{"a", "b"},
		"last_message":        "hi",
		"last_updated":        ts,
		"other_user_username": "bob",
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, "a", c.OwnerID)
	assert.Equal(t, []string{"a", "b"}, c.Participants)
	assert.Equal(t, "bob", c.OtherUserUsername)
	assert.Equal(t, ts, c.LastUpdated)

	m, err := Message(doc("conversations/a_b/messages", "m1", map[string]any{
		"sender_id": "a",
		"text":      "hi",
		"timestamp": ts.Format(time.RFC3339Nano),
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, "a_b", m.ConversationID)
	assert.Equal(t, true, m.Timestamp.Equal(ts))
}

func TestAllSkipsBadDocuments(t *testing.T) {
	docs := []livequery.Document{
		doc("users/u1/friends", "f1", map[string]any{"username": "ann"}),
		doc("users/u1/friends", "f2", map[string]any{"username": []byte("ben")}),
		doc("users/u1/friends", "f3", map[string]any{"username": 7}),
	}
	friends := All("friend", docs, Friend)
	assert.Equal(t, 2, len(friends))
	assert.Equal(t, "ann", friends[0].Username)
	assert.Equal(t, "ben", friends[1].Username)
	assert.Equal(t, "u1", friends[1].OwnerID)
}
