package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Collaborators wrap these so the resolver can tell
// "no data" apart from transport failures with errors.Is.
var (
	// ErrNotFound: the source has no record for the title or identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput: a caller passed an empty or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited: the source answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable: the source answered 5xx.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrMalformedResponse: the response body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoMatch: a candidate came back but its title fell below the threshold.
	ErrNoMatch = errors.New("no match")

	// ErrUnsupportedPublisher: no extractor is registered for the publisher.
	ErrUnsupportedPublisher = errors.New("unsupported publisher")
)

// ValidationError reports an invalid argument. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError names what was looked up. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ExternalAPIError is a non-success HTTP answer from a collaborator.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

func (e *ExternalAPIError) Unwrap() error { return e.Cause }

// NewExternalAPIError creates an ExternalAPIError. Without an explicit cause
// the status decides which sentinel it matches: 404 ErrNotFound, 429
// ErrRateLimited, 5xx ErrServiceUnavailable.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	if cause == nil {
		cause = statusCause(statusCode)
	}
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

func statusCause(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrServiceUnavailable
	default:
		return nil
	}
}
