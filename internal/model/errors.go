package model

import (
	"errors"
	"strings"
)

// ValidationError rejects input before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictError reports that local and remote state disagree in a way
// the workflow cannot reconcile on its own.
type StateConflictError struct {
	Message string
}

func (e *StateConflictError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var (
	ErrCollectionLocked = &StateConflictError{Message: "The collection is locked and can't be edited"}
	ErrItemTooBig       = &ValidationError{Field: "contents", Message: "The item is too big to be uploaded"}
	ErrNotFound         = errors.New("not found")
)

// UnsyncedCollection builds the conflict returned when a publish detects the
// browser and the server hold different item sets.
func UnsyncedCollection(detail string) *StateConflictError {
	return &StateConflictError{Message: UnsyncedCollectionErrorPrefix + " " + detail}
}

// IsUnsynced reports whether a failure message came from UnsyncedCollection.
func IsUnsynced(message string) bool {
	return strings.HasPrefix(message, UnsyncedCollectionErrorPrefix)
}

// IsValidText rejects names and descriptions that would corrupt the
// colon-separated metadata written on chain.
func IsValidText(text string) bool {
	return !strings.ContainsAny(text, ":")
}
