package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinel errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// Engine failure classes. Each one has its own propagation policy: a schema
// load failure aborts the pass for that document, the others degrade.
var (
	// ErrSchemaLoad means the vocabulary for a version spec could not be built.
	ErrSchemaLoad = errors.New("schema load failed")

	// ErrValidationInternal means the validator itself failed on a string.
	ErrValidationInternal = errors.New("validator failed")

	// ErrPositionResolution means an issue could not be pinned to a precise range.
	ErrPositionResolution = errors.New("position could not be resolved")

	// ErrModelLoad means the embedding provider could not be initialized.
	ErrModelLoad = errors.New("embedding model unavailable")

	// ErrDefinitionMiss means a Def reference names no known definition.
	ErrDefinitionMiss = errors.New("definition not found")
)

// AppError represents an application-specific error with an HTTP status code.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapError maps a common error to an AppError with an appropriate HTTP status code.
func MapError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDefinitionMiss):
		return NewAppError(http.StatusNotFound, "Resource not found", err)
	case errors.Is(err, ErrSchemaLoad):
		return NewAppError(http.StatusUnprocessableEntity, "Schema could not be loaded", err)
	case errors.Is(err, ErrModelLoad):
		return NewAppError(http.StatusServiceUnavailable, "Semantic search unavailable", err)
	}

	return NewAppError(http.StatusInternalServerError, "Internal server error", err)
}
