package handlers

import (
	"net/http"

	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles accounts, sessions and profiles
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// SignUpRequest is the body of POST /auth/signup
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UsernameRequest is the body of PUT /users/me/username
type UsernameRequest struct {
	Username string `json:"username"`
}

// PushTokenRequest is the body of PUT /users/me/push-token
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.userService.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create account")
		return
	}

	log.Info().Str("user_id", res.User.ID).Msg("User signed up")
	respondJSON(w, http.StatusCreated, res)
}

// SignIn handles POST /api/v1/auth/signin
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.userService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "Failed to sign in")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SignInAnonymously handles POST /api/v1/auth/anonymous
func (h *UserHandler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	res, err := h.userService.SignInAnonymously(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "Failed to sign in")
		return
	}

	log.Info().Str("user_id", res.User.ID).Msg("Anonymous user created")
	respondJSON(w, http.StatusCreated, res)
}

// Session handles GET /api/v1/session
func (h *UserHandler) Session(w http.ResponseWriter, r *http.Request) {
	state, err := h.userService.Session(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "Failed to load session")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// SetUsername handles PUT /api/v1/users/me/username
func (h *UserHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	var req UsernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	notice, err := h.userService.SetUsername(r.Context(), middleware.GetUserID(r.Context()), req.Username)
	if err != nil {
		respondServiceError(w, r, err, "Failed to set username")
		return
	}
	respondNotice(w, http.StatusOK, notice, nil)
}

// GetProfile handles GET /api/v1/users/{user_id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "me" {
		userID = middleware.GetUserID(r.Context())
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Search handles GET /api/v1/users?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Search(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to search users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondServiceError(w, r, err, "Failed to update push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
