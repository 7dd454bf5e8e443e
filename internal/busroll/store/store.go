package store

import "errors"

var (
	// ErrNotFound is returned by lookups for rows that do not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when inserting a live subject or any
	// actor whose ID is already taken.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStateConflict is returned by EventStore.Append when the subject's
	// latest action already equals the action being appended.
	ErrStateConflict = errors.New("store: presence state conflict")
)
