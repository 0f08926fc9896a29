// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidRecurrenceRule is returned when a recurrence rule is not valid.
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrInvalidNotificationStatus is returned when a notification status is not valid.
	ErrInvalidNotificationStatus = errors.New("invalid notification status")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
