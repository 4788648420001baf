package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tripwise-backend/internal/clock"

	"github.com/go-playground/assert/v2"
)

func newTestUserService(clk clock.Clock) *UserService {
	return NewUserService(nil, nil, "test-secret", time.Hour, clk)
}

func TestJWTRoundTrip(t *testing.T) {
	s := newTestUserService(clock.Fake(time.Now()))

	token, err := s.GenerateJWT("u1")
	assert.Equal(t, nil, err)

	userID, err := s.ValidateJWT(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "u1", userID)
}

func TestJWTExpires(t *testing.T) {
	clk := clock.Fake(time.Now())
	s := newTestUserService(clk)

	token, err := s.GenerateJWT("u1")
	assert.Equal(t, nil, err)

	clk.Advance(2 * time.Hour)
	_, err = s.ValidateJWT(token)
	assert.NotEqual(t, nil, err)
}

func TestJWTRejectsOtherSecret(t *testing.T) {
	clk := clock.Fake(time.Now())
	token, err := NewUserService(nil, nil, "other", time.Hour, clk).GenerateJWT("u1")
	assert.Equal(t, nil, err)

	_, err = newTestUserService(clk).ValidateJWT(token)
	assert.NotEqual(t, nil, err)
}

func TestSignUpValidatesInput(t *testing.T) {
	s := newTestUserService(clock.Real())
	ctx := context.Background()

	_, err := s.SignUp(ctx, "not-an-email", "secret123", "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = s.SignUp(ctx, "a@example.com", "123", "")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = s.SignUp(ctx, "a@example.com", "secret123", "has space")
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
}

func TestValidateUsername(t *testing.T) {
	assert.Equal(t, nil, validateUsername("traveller"))
	assert.NotEqual(t, nil, validateUsername(""))
	assert.NotEqual(t, nil, validateUsername("a/b"))
	assert.NotEqual(t, nil, validateUsername(strings.Repeat("x", maxUsernameLength+1)))

	var inputErr *InputError
	assert.Equal(t, true, errors.As(validateUsername(""), &inputErr))
	assert.Equal(t, "Username cannot be empty", inputErr.Message)
}
