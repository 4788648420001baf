package services

import (
	"errors"

	"tripwise-backend/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUsernameRequired   = errors.New("username not set")
	ErrAlreadyFriends     = errors.New("already friends")
	ErrNotFriends         = errors.New("not friends")
	ErrNotFound           = repository.ErrNotFound
)

// InputError is a validation failure carrying the message shown to the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(message string) error {
	return &InputError{Message: message}
}
