package handlers

import (
	"net/http"

	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// SocialHandler handles the shared feed, friends and direct messages
type SocialHandler struct {
	sharedService  *services.SharedTripService
	friendService  *services.FriendService
	messageService *services.MessageService
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(
	sharedService *services.SharedTripService,
	friendService *services.FriendService,
	messageService *services.MessageService,
) *SocialHandler {
	return &SocialHandler{
		sharedService:  sharedService,
		friendService:  friendService,
		messageService: messageService,
	}
}

// EditPostRequest is the body of PUT /shared-trips/{shared_id}
type EditPostRequest struct {
	SharedText string   `json:"shared_text"`
	ImageURLs  []string `json:"image_urls"`
}

// AddFriendRequest is the body of POST /friends
type AddFriendRequest struct {
	FriendID string `json:"friend_id"`
}

// SendMessageRequest is the body of POST /conversations/{other_user_id}/messages
type SendMessageRequest struct {
	Text string `json:"text"`
}

// Feed handles GET /api/v1/shared-trips
func (h *SocialHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.sharedService.Feed(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Failed to load shared trips")
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// UserPosts handles GET /api/v1/users/{user_id}/shared-trips
func (h *SocialHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "me" {
		userID = middleware.GetUserID(r.Context())
	}

	posts, err := h.sharedService.ByUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to load shared trips")
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// Share handles POST /api/v1/shared-trips
func (h *SocialHandler) Share(w http.ResponseWriter, r *http.Request) {
	var in services.ShareInput
	if !decodeJSON(w, r, &in) {
		return
	}

	post, notice, err := h.sharedService.Share(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, r, err, "Failed to share trip")
		return
	}
	respondNotice(w, http.StatusCreated, notice, post)
}

// EditPost handles PUT /api/v1/shared-trips/{shared_id}
func (h *SocialHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	var req EditPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	notice, err := h.sharedService.Edit(r.Context(), middleware.GetUserID(r.Context()),
		chi.URLParam(r, "shared_id"), req.SharedText, req.ImageURLs)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update post")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

// DeletePost handles DELETE /api/v1/shared-trips/{shared_id}
func (h *SocialHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	notice, err := h.sharedService.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "shared_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete post")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

// ListFriends handles GET /api/v1/friends
func (h *SocialHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friendService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load friends")
		return
	}
	respondJSON(w, http.StatusOK, friends)
}

// AddFriend handles POST /api/v1/friends
func (h *SocialHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	var req AddFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	notice, err := h.friendService.Add(r.Context(), middleware.GetUserID(r.Context()), req.FriendID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to add friend")
		return
	}
	respondNotice(w, http.StatusCreated, notice, nil)
}

// RemoveFriend handles DELETE /api/v1/friends/{friend_id}
func (h *SocialHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	notice, err := h.friendService.Remove(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "friend_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to remove friend")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

// Conversations handles GET /api/v1/conversations
func (h *SocialHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.messageService.Conversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load conversations")
		return
	}
	respondJSON(w, http.StatusOK, convs)
}

// Messages handles GET /api/v1/conversations/{other_user_id}/messages
func (h *SocialHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messageService.Messages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "other_user_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load messages")
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

// SendMessage handles POST /api/v1/conversations/{other_user_id}/messages
func (h *SocialHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messageService.Send(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "other_user_id"), req.Text)
	if err != nil {
		respondServiceError(w, r, err, "Failed to send message.")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
