package core

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrSubscriptionGone is returned by push senders on HTTP 404/410
	ErrSubscriptionGone = errors.New("push subscription gone")
	// ErrNotConfigured marks an integration whose credentials are absent
	ErrNotConfigured = errors.New("integration not configured")
	// ErrDuplicateMessage means the platform message id was already stored
	ErrDuplicateMessage = errors.New("duplicate platform message")
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
)
