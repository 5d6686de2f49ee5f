package store

import "errors"

var (
	// ErrNotFound is returned when a key or record does not exist, or its
	// storage TTL has passed.
	ErrNotFound = errors.New("not found")
)
