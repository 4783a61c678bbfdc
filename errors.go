package favour

import (
	"errors"
	"fmt"
)

// Common errors returned by the favour store and command surface.
var (
	// ErrNotFound is returned when an affinity record does not exist.
	ErrNotFound = errors.New("affinity record not found")

	// ErrInvalidUserID is returned when a user ID fails format validation.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrValueOutOfRange is returned when an admin-supplied value lies
	// outside the configured bounds.
	ErrValueOutOfRange = errors.New("favour value out of range")

	// ErrEmptyRelationship is returned when a relationship name is empty
	// after trimming.
	ErrEmptyRelationship = errors.New("relationship name cannot be empty")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrBackupFailed is returned when the pre-clear backup could not be
	// written; the destructive operation is aborted.
	ErrBackupFailed = errors.New("backup failed, clear aborted")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// PermissionError is returned when a caller does not meet a command's
// permission floor. Extractable via errors.As().
type PermissionError struct {
	Need PermLevel
	Have PermLevel
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: need %s, have %s", e.Need, e.Have)
}
