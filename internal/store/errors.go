package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmailConflict is returned when an email already belongs to a member
	ErrEmailConflict = errors.New("email already exists")

	// ErrPairingCodeConflict is returned when a freshly generated pairing code
	// collides with an existing row; callers retry with a new code.
	ErrPairingCodeConflict = errors.New("pairing code already exists")
)
