package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/repository"

	"github.com/go-playground/assert/v2"
	"github.com/oklog/ulid/v2"
)

type memoryUsers map[string]*models.User

func (m memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return u, nil
}

type memoryTrips map[string]*models.Trip

func (m memoryTrips) GetByID(ctx context.Context, userID, tripID string) (*models.Trip, error) {
	t, ok := m[tripID]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("trip %s: %w", tripID, repository.ErrNotFound)
	}
	return t, nil
}

// memoryFriends keeps both directions of every friendship, like the
// friends table.
type memoryFriends struct {
	links map[[2]string]bool
	adds  int
}

func newMemoryFriends() *memoryFriends {
	return &memoryFriends{links: make(map[[2]string]bool)}
}

func (m *memoryFriends) Add(ctx context.Context, a, b *models.User, at time.Time) error {
	m.adds++
	m.links[[2]string{a.ID, b.ID}] = true
	m.links[[2]string{b.ID, a.ID}] = true
	return nil
}

func (m *memoryFriends) Remove(ctx context.Context, a, b string) error {
	if !m.links[[2]string{a, b}] {
		return fmt.Errorf("friend %s: %w", b, repository.ErrNotFound)
	}
	delete(m.links, [2]string{a, b})
	delete(m.links, [2]string{b, a})
	return nil
}

func (m *memoryFriends) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return m.links[[2]string{a, b}], nil
}

type sentMessage struct {
	msg    *models.Message
	copies []*models.Conversation
}

type memoryConversations struct {
	sent []sentMessage
}

func (m *memoryConversations) Send(ctx context.Context, msg *models.Message, copies ...*models.Conversation) error {
	m.sent = append(m.sent, sentMessage{msg: msg, copies: copies})
	return nil
}

type memoryPosts struct {
	created []*models.SharedTrip
}

func (m *memoryPosts) Create(ctx context.Context, post *models.SharedTrip) error {
	m.created = append(m.created, post)
	return nil
}

func (m *memoryPosts) Update(ctx context.Context, userID, id, text string, images []string, at time.Time) error {
	return nil
}

func (m *memoryPosts) Delete(ctx context.Context, userID, id string) error {
	return nil
}

type pushed struct {
	token, title, body string
}

type chanPusher chan pushed

func (p chanPusher) Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	p <- pushed{token: deviceToken, title: title, body: body}
	return nil
}

type staticPresence map[string]bool

func (p staticPresence) IsOnline(userID string) bool { return p[userID] }

var socialNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func socialUsers() memoryUsers {
	token := "device-b"
	return memoryUsers{
		"a": {ID: "a", Username: "alice", Email: "a@test"},
		"b": {ID: "b", Username: "bob", Email: "b@test", PushToken: &token},
		"c": {ID: "c", Username: ""},
	}
}

func TestAddFriendLinksBothSides(t *testing.T) {
	broker := &recordingBroker{}
	friends := newMemoryFriends()
	s := NewFriendService(friends, socialUsers(), nil, NewDispatcher(broker), clock.Fake(socialNow))
	ctx := context.Background()

	notice, err := s.Add(ctx, "a", "b")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Friend added successfully!", notice.Message)
	assert.Equal(t, true, friends.links[[2]string{"a", "b"}])
	assert.Equal(t, true, friends.links[[2]string{"b", "a"}])
	assert.Equal(t, []string{"users/a/friends", "users/b/friends", "users"}, broker.published)

	_, err = s.Add(ctx, "b", "a")
	assert.Equal(t, true, errors.Is(err, ErrAlreadyFriends))
	assert.Equal(t, 1, friends.adds)
}

func TestAddFriendRejectsSelfAndUnknown(t *testing.T) {
	friends := newMemoryFriends()
	s := NewFriendService(friends, socialUsers(), nil, NewDispatcher(&recordingBroker{}), clock.Fake(socialNow))
	ctx := context.Background()

	_, err := s.Add(ctx, "a", "a")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
	_, err = s.Add(ctx, "a", "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
	_, err = s.Add(ctx, "a", "ghost")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, friends.adds)
}

func TestRemoveFriendUnlinksBothSides(t *testing.T) {
	broker := &recordingBroker{}
	friends := newMemoryFriends()
	s := NewFriendService(friends, socialUsers(), nil, NewDispatcher(broker), clock.Fake(socialNow))
	ctx := context.Background()

	_, err := s.Add(ctx, "a", "b")
	assert.Equal(t, nil, err)
	_, err = s.Remove(ctx, "b", "a")
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(friends.links))

	broker.published = nil
	_, err = s.Remove(ctx, "b", "a")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, len(broker.published))
}

func newTestMessageService(friends *memoryFriends, convs *memoryConversations, broker *recordingBroker, presence staticPresence, pusher Pusher) *MessageService {
	return NewMessageService(convs, friends, socialUsers(), nil, NewDispatcher(broker), presence, pusher, clock.Fake(socialNow))
}

func TestSendMessageRequiresFriendship(t *testing.T) {
	friends := newMemoryFriends()
	convs := &memoryConversations{}
	broker := &recordingBroker{}
	s := newTestMessageService(friends, convs, broker, nil, nil)
	ctx := context.Background()

	_, err := s.Send(ctx, "a", "b", "hi")
	assert.Equal(t, true, errors.Is(err, ErrNotFriends))

	_, err = s.Send(ctx, "a", "a", "hi")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = s.Send(ctx, "a", "b", "   ")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	assert.Equal(t, 0, len(convs.sent))
	assert.Equal(t, 0, len(broker.published))
}

func TestSendMessageWritesBothSummaries(t *testing.T) {
	friends := newMemoryFriends()
	friends.links[[2]string{"a", "b"}] = true
	friends.links[[2]string{"b", "a"}] = true
	convs := &memoryConversations{}
	broker := &recordingBroker{}
	s := newTestMessageService(friends, convs, broker, staticPresence{"b": true}, nil)

	msg, err := s.Send(context.Background(), "a", "b", "  see you in Lisbon  ")
	assert.Equal(t, nil, err)
	assert.Equal(t, "see you in Lisbon", msg.Text)
	assert.Equal(t, "a_b", msg.ConversationID)
	assert.Equal(t, socialNow, msg.Timestamp)
	id, err := ulid.Parse(msg.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, ulid.Timestamp(socialNow), id.Time())

	assert.Equal(t, 1, len(convs.sent))
	copies := convs.sent[0].copies
	assert.Equal(t, 2, len(copies))
	assert.Equal(t, "a", copies[0].OwnerID)
	assert.Equal(t, "bob", copies[0].OtherUserUsername)
	assert.Equal(t, "b", copies[1].OwnerID)
	assert.Equal(t, "alice", copies[1].OtherUserUsername)
	for _, c := range copies {
		assert.Equal(t, "a_b", c.ID)
		assert.Equal(t, "see you in Lisbon", c.LastMessage)
		assert.Equal(t, "a", c.LastMessageSenderID)
	}
	assert.Equal(t, []string{"conversations/a_b/messages", "users/a/conversations", "users/b/conversations"}, broker.published)
}

func TestSendMessagePushesOnlyWhenOffline(t *testing.T) {
	friends := newMemoryFriends()
	friends.links[[2]string{"a", "b"}] = true
	ctx := context.Background()

	online := make(chanPusher, 1)
	s := newTestMessageService(friends, &memoryConversations{}, &recordingBroker{}, staticPresence{"b": true}, online)
	_, err := s.Send(ctx, "a", "b", "hi")
	assert.Equal(t, nil, err)
	select {
	case p := <-online:
		t.Fatalf("pushed to an online user: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}

	offline := make(chanPusher, 1)
	s = newTestMessageService(friends, &memoryConversations{}, &recordingBroker{}, staticPresence{}, offline)
	_, err = s.Send(ctx, "a", "b", "hi")
	assert.Equal(t, nil, err)
	select {
	case p := <-offline:
		assert.Equal(t, "device-b", p.token)
		assert.Equal(t, "alice", p.title)
		assert.Equal(t, "hi", p.body)
	case <-time.After(2 * time.Second):
		t.Fatal("no push for an offline user")
	}
}

func newTestSharedTripService(posts *memoryPosts) *SharedTripService {
	trips := memoryTrips{
		"t1": {ID: "t1", UserID: "a", Destination: "Lisbon", ImageURLs: []string{"p1", "p2", "p3"}},
		"t2": {ID: "t2", UserID: "c", Destination: "Oslo"},
	}
	return NewSharedTripService(posts, trips, socialUsers(), nil, NewDispatcher(&recordingBroker{}), clock.Fake(socialNow))
}

func TestShareKeepsOnlyTripPhotos(t *testing.T) {
	posts := &memoryPosts{}
	s := newTestSharedTripService(posts)
	ctx := context.Background()

	post, _, err := s.Share(ctx, "a", ShareInput{TripID: "t1", Photos: []string{"p3", "https://elsewhere/x.jpg", "p1", "p3"}})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"p3", "p1"}, post.ImageURLs)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, "t1", post.OriginalTripID)

	post, _, err = s.Share(ctx, "a", ShareInput{TripID: "t1"})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, post.ImageURLs)

	_, _, err = s.Share(ctx, "a", ShareInput{TripID: "t1", Photos: []string{"https://elsewhere/x.jpg"}})
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, 2, len(posts.created))
}

func TestShareRules(t *testing.T) {
	posts := &memoryPosts{}
	s := newTestSharedTripService(posts)
	ctx := context.Background()

	_, _, err := s.Share(ctx, "a", ShareInput{})
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, _, err = s.Share(ctx, "c", ShareInput{TripID: "t2", Caption: "hello"})
	assert.Equal(t, true, errors.Is(err, ErrUsernameRequired))

	_, _, err = s.Share(ctx, "a", ShareInput{TripID: "t2", Caption: "not mine"})
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, len(posts.created))
}
