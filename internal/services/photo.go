package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tripwise-backend/internal/metrics"
	"tripwise-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Upload scopes
const (
	ScopeTrip     = "trips"
	ScopeTimeline = "timeline_items"
)

// PhotoLimits bounds uploads
type PhotoLimits struct {
	MaxBatch       int
	BatchTTL       time.Duration
	PresignTTL     time.Duration
	MaxPictureSize int64
}

// BatchRequest asks for upload URLs for Count photos
type BatchRequest struct {
	UploadTarget
	Count       int    `json:"count"`
	ContentType string `json:"content_type"`
}

// PhotoUpload is one presigned slot of a batch
type PhotoUpload struct {
	PhotoID   string `json:"photo_id"`
	UploadURL string `json:"upload_url"`
	URL       string `json:"url"`
}

// BatchTicket is returned when a batch starts
type BatchTicket struct {
	BatchID   string        `json:"batch_id"`
	ExpiresIn int           `json:"expires_in"`
	Uploads   []PhotoUpload `json:"uploads"`
}

// BatchOutcome is a finished batch with the public urls of its photos
type BatchOutcome struct {
	*BatchResult
	URLs []string `json:"urls"`
}

// PhotoService handles trip photos and profile pictures
type PhotoService struct {
	store        ObjectStore
	tracker      *UploadTracker
	userRepo     *repository.UserRepository
	tripRepo     *repository.TripRepository
	timelineRepo *repository.TimelineRepository
	dispatcher   *Dispatcher
	limits       PhotoLimits
}

// NewPhotoService creates a new photo service
func NewPhotoService(
	store ObjectStore,
	tracker *UploadTracker,
	userRepo *repository.UserRepository,
	tripRepo *repository.TripRepository,
	timelineRepo *repository.TimelineRepository,
	dispatcher *Dispatcher,
	limits PhotoLimits,
) *PhotoService {
	return &PhotoService{
		store:        store,
		tracker:      tracker,
		userRepo:     userRepo,
		tripRepo:     tripRepo,
		timelineRepo: timelineRepo,
		dispatcher:   dispatcher,
		limits:       limits,
	}
}

// StartBatch issues presigned upload urls for the photos of a trip or
// timeline item
func (s *PhotoService) StartBatch(ctx context.Context, userID string, req BatchRequest) (*BatchTicket, error) {
	if req.Count <= 0 {
		return nil, invalid("No images selected.")
	}
	if req.Count > s.limits.MaxBatch {
		return nil, invalid(fmt.Sprintf("You can upload at most %d images at a time.", s.limits.MaxBatch))
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, invalid("Only images can be uploaded.")
	}

	var scopeID, prefix string
	switch req.Scope {
	case ScopeTrip:
		if _, err := s.tripRepo.GetByID(ctx, userID, req.TripID); err != nil {
			return nil, err
		}
		scopeID, prefix = req.TripID, "trip"
	case ScopeTimeline:
		if _, err := s.timelineRepo.GetByID(ctx, userID, req.TripID, req.ItemID); err != nil {
			return nil, err
		}
		scopeID, prefix = req.ItemID, "timeline"
	default:
		return nil, invalid("Unknown upload scope.")
	}

	batchID := uuid.New().String()
	keys := make(map[string]string, req.Count)
	order := make([]string, 0, req.Count)
	uploads := make([]PhotoUpload, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		photoID := uuid.New().String()
		key := fmt.Sprintf("images/users/%s/%s/%s/%s_%s.jpg", userID, req.Scope, scopeID, prefix, photoID)
		url, err := s.store.PresignPut(ctx, key, req.ContentType, s.limits.PresignTTL)
		if err != nil {
			return nil, err
		}
		keys[photoID] = key
		order = append(order, photoID)
		uploads = append(uploads, PhotoUpload{PhotoID: photoID, UploadURL: url, URL: s.store.URL(key)})
	}

	s.tracker.Start(batchID, userID, req.UploadTarget, keys, order, s.limits.BatchTTL)

	log.Info().
		Str("user_id", userID).
		Str("batch_id", batchID).
		Str("scope", req.Scope).
		Int("count", req.Count).
		Msg("Upload batch started")

	return &BatchTicket{
		BatchID:   batchID,
		ExpiresIn: int(s.limits.PresignTTL.Seconds()),
		Uploads:   uploads,
	}, nil
}

// ReportUpload records the outcome of one photo upload. It returns nil
// until the whole batch has been reported; the finished batch's photos are
// then attached to their trip or timeline item.
func (s *PhotoService) ReportUpload(ctx context.Context, userID, batchID, photoID string, ok bool) (*BatchOutcome, error) {
	result, err := s.tracker.Report(userID, batchID, photoID, ok)
	if err != nil || result == nil {
		return nil, err
	}

	outcome := &BatchOutcome{BatchResult: result, URLs: make([]string, 0, len(result.Keys))}
	for _, key := range result.Keys {
		outcome.URLs = append(outcome.URLs, s.store.URL(key))
	}

	label := "complete"
	if result.Failed > 0 {
		label = "partial"
	}
	metrics.UploadBatches.WithLabelValues(label).Inc()

	if len(outcome.URLs) == 0 {
		return outcome, nil
	}

	t := result.Target
	switch t.Scope {
	case ScopeTrip:
		err = s.dispatcher.Do(ctx, "attach_trip_images", func(ctx context.Context) error {
			return s.tripRepo.AppendImages(ctx, userID, t.TripID, outcome.URLs)
		}, tripsPath(userID))
	case ScopeTimeline:
		err = s.dispatcher.Do(ctx, "attach_timeline_images", func(ctx context.Context) error {
			return s.timelineRepo.AppendImages(ctx, userID, t.TripID, t.ItemID, outcome.URLs)
		}, timelinePath(userID, t.TripID))
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ExpireBatches drops abandoned batches
func (s *PhotoService) ExpireBatches() {
	for _, b := range s.tracker.Expire() {
		metrics.UploadBatches.WithLabelValues("expired").Inc()
		log.Warn().
			Str("user_id", b.UserID).
			Str("batch_id", b.ID).
			Msg("Upload batch expired before every photo was reported")
	}
	log.Debug().Int("pending", s.tracker.Pending()).Msg("Upload batches swept")
}

// RunJanitor expires abandoned batches until ctx is cancelled
func (s *PhotoService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireBatches()
		}
	}
}

// SetProfilePicture stores a new profile picture. Objects are keyed by the
// BLAKE3 hash of their content so re-uploading the same image is a no-op
// for storage.
func (s *PhotoService) SetProfilePicture(ctx context.Context, userID string, data []byte) (string, Notice, error) {
	if len(data) == 0 {
		return "", Notice{}, invalid("No image selected.")
	}
	if int64(len(data)) > s.limits.MaxPictureSize {
		return "", Notice{}, invalid("Image is too large.")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", Notice{}, invalid("Only images can be uploaded.")
	}

	sum := blake3.Sum256(data)
	key := fmt.Sprintf("images/users/%s/profile_%s", userID, hex.EncodeToString(sum[:16]))
	url := s.store.URL(key)

	if err := s.store.Put(ctx, key, contentType, data); err != nil {
		return "", Notice{}, err
	}

	var previous *string
	err := s.dispatcher.Do(ctx, "set_profile_picture", func(ctx context.Context) error {
		var err error
		previous, err = s.userRepo.SetProfilePicture(ctx, userID, &url, &key)
		return err
	}, usersPath())
	if err != nil {
		return "", Notice{}, fmt.Errorf("failed to update profile picture url: %w", err)
	}

	if previous != nil && *previous != key {
		s.deleteObject(ctx, *previous)
	}
	return url, info("Profile picture updated!"), nil
}

// DeleteProfilePicture removes the picture and clears the url
func (s *PhotoService) DeleteProfilePicture(ctx context.Context, userID string) (Notice, error) {
	var previous *string
	err := s.dispatcher.Do(ctx, "delete_profile_picture", func(ctx context.Context) error {
		var err error
		previous, err = s.userRepo.SetProfilePicture(ctx, userID, nil, nil)
		return err
	}, usersPath())
	if err != nil {
		return Notice{}, err
	}
	if previous != nil {
		s.deleteObject(ctx, *previous)
	}
	return info("Profile picture removed."), nil
}

func (s *PhotoService) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to delete old profile picture")
	}
}
