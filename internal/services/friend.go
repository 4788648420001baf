package services

import (
	"context"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"
)

// FriendService handles friendships
type FriendService struct {
	friendRepo FriendStore
	userRepo   UserReader
	source     livequery.Source
	dispatcher *Dispatcher
	clock      clock.Clock
}

// NewFriendService creates a new friend service
func NewFriendService(
	friendRepo FriendStore,
	userRepo UserReader,
	source livequery.Source,
	dispatcher *Dispatcher,
	clk clock.Clock,
) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		source:     source,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

// Add makes userID and friendID friends of each other
func (s *FriendService) Add(ctx context.Context, userID, friendID string) (Notice, error) {
	if friendID == "" || friendID == userID {
		return Notice{}, invalid("You cannot add yourself as a friend.")
	}
	already, err := s.friendRepo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return Notice{}, err
	}
	if already {
		return Notice{}, ErrAlreadyFriends
	}

	me, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return Notice{}, err
	}
	friend, err := s.userRepo.GetByID(ctx, friendID)
	if err != nil {
		return Notice{}, err
	}

	err = s.dispatcher.Do(ctx, "add_friend", func(ctx context.Context) error {
		return s.friendRepo.Add(ctx, me, friend, s.clock.Now())
	}, friendsPath(userID), friendsPath(friendID), usersPath())
	if err != nil {
		return Notice{}, err
	}
	return info("Friend added successfully!"), nil
}

// Remove ends a friendship on both sides
func (s *FriendService) Remove(ctx context.Context, userID, friendID string) (Notice, error) {
	err := s.dispatcher.Do(ctx, "remove_friend", func(ctx context.Context) error {
		return s.friendRepo.Remove(ctx, userID, friendID)
	}, friendsPath(userID), friendsPath(friendID), usersPath())
	if err != nil {
		return Notice{}, err
	}
	return info("Friend removed."), nil
}

// List returns the user's friends by username
func (s *FriendService) List(ctx context.Context, userID string) ([]models.Friend, error) {
	docs, err := s.source.Fetch(ctx, FriendsQuery(userID))
	if err != nil {
		return nil, err
	}
	return mapper.All("friend", docs, mapper.Friend), nil
}

// FriendsQuery selects a user's friends ordered by username
func FriendsQuery(userID string) livequery.Query {
	return livequery.NewQuery(friendsPath(userID)).OrderBy("username", false)
}
