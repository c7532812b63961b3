// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound         = errors.New("not found")
	ErrCacheCorruption  = errors.New("persisted run corrupted")
	ErrOutputInUse      = errors.New("output directory holds a run for a different video")
	ErrChecklistMissing = errors.New("checklist is empty")

	// Frame source errors.
	ErrSourceUnavailable = errors.New("video source unavailable")

	// Aggregation errors.
	ErrFrameOrder        = errors.New("frame timestamp precedes previous frame")
	ErrChecklistMismatch = errors.New("golden checklist does not match run checklist")

	// Observer errors.
	ErrObserverFailed = errors.New("observer call failed")

	// Configuration errors.
	ErrConfig        = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// ConfigError reports a checklist or engine setup problem. It always unwraps to ErrConfig.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfig, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// CacheCorruptionError reports a persisted run that exists but cannot be trusted.
type CacheCorruptionError struct {
	Err  error
	Path string
	Key  string
}

func (e *CacheCorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s (key %s): %v", ErrCacheCorruption, e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("%s at %s (key %s)", ErrCacheCorruption, e.Path, e.Key)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *CacheCorruptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCacheCorruption}
	}
	return []error{ErrCacheCorruption, e.Err}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
