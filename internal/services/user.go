package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxUsernameLength = 30
	searchLimit       = 20
)

// UserService handles accounts, sessions and profiles
type UserService struct {
	userRepo   *repository.UserRepository
	dispatcher *Dispatcher
	jwtSecret  string
	jwtTTL     time.Duration
	clock      clock.Clock
}

// NewUserService creates a new user service
func NewUserService(
	userRepo *repository.UserRepository,
	dispatcher *Dispatcher,
	jwtSecret string,
	jwtTTL time.Duration,
	clk clock.Clock,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
		jwtTTL:     jwtTTL,
		clock:      clk,
	}
}

// AuthResult is returned by every sign-in method
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SessionState describes who is signed in and whether the profile is
// complete
type SessionState struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Anonymous     bool   `json:"anonymous"`
	Ready         bool   `json:"ready"`
	NeedsUsername bool   `json:"needs_username"`
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// SignUp registers an email account. The username may be left empty and
// set later.
func (s *UserService) SignUp(ctx context.Context, email, password, username string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("Please enter a valid email address.")
	}
	if len(password) < minPasswordLength {
		return nil, invalid(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}
	username = strings.TrimSpace(username)
	if username != "" {
		if err := validateUsername(username); err != nil {
			return nil, err
		}
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:                uuid.New().String(),
		Username:          username,
		LowercaseUsername: strings.ToLower(username),
		Email:             email,
		PasswordHash:      string(hash),
		Friends:           []string{},
		CreatedAt:         s.clock.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if username != "" {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.dispatcher.Publish(ctx, usersPath())

	return s.issue(user)
}

// SignIn checks an email and password
func (s *UserService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// SignInAnonymously creates a guest account with no email or username
func (s *UserService) SignInAnonymously(ctx context.Context) (*AuthResult, error) {
	user := &models.User{
		ID:        uuid.New().String(),
		Anonymous: true,
		Friends:   []string{},
		CreatedAt: s.clock.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.dispatcher.Publish(ctx, usersPath())
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Session reports the state of a signed-in user. A token whose profile no
// longer exists is not ready.
func (s *UserService) Session(ctx context.Context, userID string) (*SessionState, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &SessionState{UserID: userID}, nil
		}
		return nil, err
	}
	return &SessionState{
		UserID:        user.ID,
		Username:      user.Username,
		Anonymous:     user.Anonymous,
		Ready:         true,
		NeedsUsername: user.Username == "",
	}, nil
}

// SetUsername claims a unique username for userID
func (s *UserService) SetUsername(ctx context.Context, userID, username string) (Notice, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return Notice{}, err
	}

	err := s.dispatcher.Do(ctx, "set_username", func(ctx context.Context) error {
		return s.userRepo.SetUsername(ctx, userID, username)
	}, usersPath())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Notice{}, ErrUsernameTaken
		}
		return Notice{}, err
	}
	return info("Username set successfully!"), nil
}

func validateUsername(username string) error {
	if username == "" {
		return invalid("Username cannot be empty")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return invalid(fmt.Sprintf("Username cannot be longer than %d characters", maxUsernameLength))
	}
	if strings.ContainsAny(username, "/ \t\n") {
		return invalid("Username cannot contain spaces or slashes")
	}
	return nil
}

// GetProfile returns a user's public profile
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Search finds users whose username starts with query, ignoring case. The
// caller is left out of the results.
func (s *UserService) Search(ctx context.Context, userID, query string) ([]*models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.User{}, nil
	}
	users, err := s.userRepo.SearchByUsername(ctx, query, searchLimit+1)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.ID != userID && len(out) < searchLimit {
			out = append(out, u)
		}
	}
	return out, nil
}

// UpdatePushToken stores the device token used for push notifications.
// An empty token turns push off.
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var ptr *string
	if token = strings.TrimSpace(token); token != "" {
		ptr = &token
	}
	return s.userRepo.UpdatePushToken(ctx, userID, ptr)
}
