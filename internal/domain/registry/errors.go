package registry

import (
	"fmt"
)

// SessionNotFoundError means the id names no shell, or no live terminal
// when Terminal is set.
type SessionNotFoundError struct {
	ID       uint
	Terminal bool
}

func (e *SessionNotFoundError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("no terminal open for shell %d", e.ID)
	}
	return fmt.Sprintf("shell %d not found", e.ID)
}

// DuplicateShellError rejects a location+credential pair that is already
// registered.
type DuplicateShellError struct {
	ExistingID uint
}

func (e *DuplicateShellError) Error() string {
	return fmt.Sprintf("shell already registered as id %d", e.ExistingID)
}

// ValidationError rejects a malformed field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
