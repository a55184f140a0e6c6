// Package common holds the sentinel errors, logging setup and retry helper
// shared across tally.
package common

import (
	"errors"
	"fmt"
)

// Storage errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrArchived          = errors.New("package is archived")
	ErrDatabaseCorrupted = errors.New("database corrupted")
)

// Input errors. A malformed record is withheld from matching; a stale
// override was recorded against values that are no longer extracted.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrStaleOverride   = errors.New("override does not match extracted values")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// UserError carries a message meant for the person at the terminal, while
// keeping the underlying cause for logs and errors.Is.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// NewUserError wraps err with a message for the CLI user.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}
