package store

import "errors"

var (
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername = errors.New("Username already exists")

	// ErrDuplicateReview is returned when the same user already left the same
	// comment on the same book.
	ErrDuplicateReview = errors.New("You have already submitted this feedback.")

	// ErrStorageFailure wraps any failure to write the document back to storage.
	// Callers must treat the operation as not having happened.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidInput is returned when a new record misses required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedStore marks an unreadable persisted document. It is handled
	// internally by resetting to seed data and never returned to callers.
	ErrMalformedStore = errors.New("malformed store document")
)
