package store

import "errors"

var (
	// ErrConflict is returned when a write would double-book a provider;
	// the database exclusion constraint is the source of truth.
	ErrConflict = errors.New("appointment conflict")

	ErrNotFound = errors.New("not found")

	// ErrIdempotencyConflict means a create replayed an existing id with
	// different appointment fields.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
