package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService   *services.PhotoService
	maxPictureSize int64
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService, maxPictureSize int64) *PhotoHandler {
	return &PhotoHandler{
		photoService:   photoService,
		maxPictureSize: maxPictureSize,
	}
}

// StartBatch handles POST /api/v1/photos/batches
func (h *PhotoHandler) StartBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.photoService.StartBatch(ctx, userID, req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to prepare upload")
		return
	}
	respondJSON(w, http.StatusCreated, ticket)
}

// SetProfilePicture handles PUT /api/v1/users/me/picture. The image is
// either the raw body or the "picture" field of a multipart form.
func (h *PhotoHandler) SetProfilePicture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	data, err := h.readPicture(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Image is too large.", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to read profile picture")
		respondError(w, "Invalid image upload", http.StatusBadRequest)
		return
	}

	url, notice, err := h.photoService.SetProfilePicture(ctx, userID, data)
	if err != nil {
		respondServiceError(w, r, err, "Failed to upload profile picture")
		return
	}

	log.Info().Str("user_id", userID).Int("size", len(data)).Msg("Profile picture updated")
	respondNotice(w, http.StatusOK, notice, map[string]string{"profile_picture_url": url})
}

// DeleteProfilePicture handles DELETE /api/v1/users/me/picture
func (h *PhotoHandler) DeleteProfilePicture(w http.ResponseWriter, r *http.Request) {
	notice, err := h.photoService.DeleteProfilePicture(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to remove profile picture")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

func (h *PhotoHandler) readPicture(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	// Multipart framing needs some room on top of the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPictureSize+64<<10)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("picture")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
