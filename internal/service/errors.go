package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleExists         = errors.New("role already exists")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrPermissionInUse    = errors.New("permission is referenced by a role")
	ErrHashing            = errors.New("credential hashing failed")
	ErrPersistence        = errors.New("persistence failure")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func missing(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// AccountLockedError is returned while a lockout window is open. Its message
// is shown to the user as is.
type AccountLockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked: too many failed login attempts, try again in %s", e.Remaining.Round(time.Second))
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s (%s): %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type HashingError struct {
	Err error
}

func (e *HashingError) Error() string { return fmt.Sprintf("credential hashing failed: %v", e.Err) }

func (e *HashingError) Unwrap() error { return e.Err }

func (e *HashingError) Is(target error) bool { return target == ErrHashing }

// translate maps repository sentinels onto service kinds and wraps anything
// else as a persistence failure.
func translate(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrRoleNotFound):
		return ErrRoleNotFound
	case errors.Is(err, repository.ErrPermissionNotFound):
		return ErrPermissionNotFound
	case errors.Is(err, repository.ErrPermissionInUse):
		return ErrPermissionInUse
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}
