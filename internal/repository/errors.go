package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateUsername signals a unique violation on the username column.
	ErrDuplicateUsername = errors.New("repository: duplicate username")
	// ErrDuplicateEmail signals a unique violation on the email column.
	ErrDuplicateEmail = errors.New("repository: duplicate email")
)
