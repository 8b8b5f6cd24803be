package app

import (
	"fmt"
	"net/http"

	"builder/internal/rbac"
)

// DomainError is an error the intent API reports with its own status and
// code instead of going through mapError's defaults.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func forbidden(action rbac.Action) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": action})
}

func notFound(what, id string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", map[string]any{"id": id})
}
