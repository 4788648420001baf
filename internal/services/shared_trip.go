package services

import (
	"context"
	"strings"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"

	"github.com/google/uuid"
)

// ShareInput describes a post. Photos default to all of the trip's photos
// when none are picked.
type ShareInput struct {
	TripID  string   `json:"trip_id"`
	Caption string   `json:"shared_text"`
	Photos  []string `json:"image_urls"`
}

// SharedTripService handles the public feed
type SharedTripService struct {
	sharedRepo SharedTripStore
	tripRepo   TripReader
	userRepo   UserReader
	source     livequery.Source
	dispatcher *Dispatcher
	clock      clock.Clock
}

// NewSharedTripService creates a new shared trip service
func NewSharedTripService(
	sharedRepo SharedTripStore,
	tripRepo TripReader,
	userRepo UserReader,
	source livequery.Source,
	dispatcher *Dispatcher,
	clk clock.Clock,
) *SharedTripService {
	return &SharedTripService{
		sharedRepo: sharedRepo,
		tripRepo:   tripRepo,
		userRepo:   userRepo,
		source:     source,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

// Share publishes one of the user's trips to the feed
func (s *SharedTripService) Share(ctx context.Context, userID string, in ShareInput) (*models.SharedTrip, Notice, error) {
	if in.TripID == "" {
		return nil, Notice{}, invalid("No trip selected.")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, Notice{}, err
	}
	if user.Username == "" {
		return nil, Notice{}, ErrUsernameRequired
	}
	trip, err := s.tripRepo.GetByID(ctx, userID, in.TripID)
	if err != nil {
		return nil, Notice{}, err
	}

	photos := trip.ImageURLs
	if len(in.Photos) > 0 {
		photos = tripPhotos(trip, in.Photos)
	}
	if len(photos) == 0 && strings.TrimSpace(in.Caption) == "" {
		return nil, Notice{}, invalid("Please select at least one photo or add a caption.")
	}

	post := &models.SharedTrip{
		ID:                uuid.New().String(),
		UserID:            userID,
		Username:          user.Username,
		ProfilePictureURL: user.ProfilePictureURL,
		SharedText:        in.Caption,
		ImageURLs:         photos,
		Timestamp:         s.clock.Now(),
		OriginalTripID:    trip.ID,
	}
	err = s.dispatcher.Do(ctx, "share_trip", func(ctx context.Context) error {
		return s.sharedRepo.Create(ctx, post)
	}, sharedTripsPath())
	if err != nil {
		return nil, Notice{}, err
	}
	return post, info("Trip shared successfully!"), nil
}

// Edit changes the caption and photos of the user's own post
func (s *SharedTripService) Edit(ctx context.Context, userID, postID, caption string, photos []string) (Notice, error) {
	caption = strings.TrimSpace(caption)
	if len(photos) == 0 && caption == "" {
		return Notice{}, invalid("Please select at least one photo or add a caption.")
	}
	err := s.dispatcher.Do(ctx, "edit_shared_trip", func(ctx context.Context) error {
		return s.sharedRepo.Update(ctx, userID, postID, caption, photos, s.clock.Now())
	}, sharedTripsPath())
	if err != nil {
		return Notice{}, err
	}
	return info("Post updated successfully!"), nil
}

// Delete removes the user's own post
func (s *SharedTripService) Delete(ctx context.Context, userID, postID string) (Notice, error) {
	err := s.dispatcher.Do(ctx, "delete_shared_trip", func(ctx context.Context) error {
		return s.sharedRepo.Delete(ctx, userID, postID)
	}, sharedTripsPath())
	if err != nil {
		return Notice{}, err
	}
	return info("Post deleted successfully!"), nil
}

// Feed returns every shared trip, newest first
func (s *SharedTripService) Feed(ctx context.Context) ([]models.SharedTrip, error) {
	docs, err := s.source.Fetch(ctx, FeedQuery())
	if err != nil {
		return nil, err
	}
	return mapper.All("shared_trip", docs, mapper.SharedTrip), nil
}

// ByUser returns the posts of one user, newest first
func (s *SharedTripService) ByUser(ctx context.Context, userID string) ([]models.SharedTrip, error) {
	docs, err := s.source.Fetch(ctx, UserPostsQuery(userID))
	if err != nil {
		return nil, err
	}
	return mapper.All("shared_trip", docs, mapper.SharedTrip), nil
}

// tripPhotos keeps the picked urls that belong to trip, in picked order
func tripPhotos(trip *models.Trip, picked []string) []string {
	owned := make(map[string]bool, len(trip.ImageURLs))
	for _, url := range trip.ImageURLs {
		owned[url] = true
	}
	photos := make([]string, 0, len(picked))
	for _, url := range picked {
		if owned[url] {
			photos = append(photos, url)
			owned[url] = false
		}
	}
	return photos
}

// FeedQuery selects the public feed, newest first
func FeedQuery() livequery.Query {
	return livequery.NewQuery(sharedTripsPath()).OrderBy("timestamp", true)
}

// UserPostsQuery selects the posts shared by one user, newest first
func UserPostsQuery(userID string) livequery.Query {
	return FeedQuery().Where("user_id", livequery.Eq, userID)
}
