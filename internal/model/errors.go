package model

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuth             = errors.New("auth error")
	ErrStore            = errors.New("store error")
	ErrScheduler        = errors.New("scheduler error")
	ErrValidation       = errors.New("validation error")
	ErrTimeout          = errors.New("operation timed out")
)

var (
	ErrMemoNotFound       = errors.New("memo not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrPermissionDenied   = errors.New("notification permission not granted")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// StoreError is returned by memo store operations. It matches ErrStore and
// whatever it wraps.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

type SchedulerError struct {
	Op  string
	Err error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler %s: %v", e.Op, e.Err)
}

func (e *SchedulerError) Unwrap() error { return e.Err }

func (e *SchedulerError) Is(target error) bool { return target == ErrScheduler }

type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }
