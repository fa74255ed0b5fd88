package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a versioned save lost a race with another write.
var ErrVersionConflict = errors.New("version conflict")

var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateReviewID = errors.New("duplicate review id")
)
