// Package util holds the error taxonomy shared by the bot and HTTP surfaces.
package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Stagnxzione/ra-userbot/internal/repository"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewConfigMissing reports a required setting that is absent. Callers show
// the message and stop; retrying cannot help.
func NewConfigMissing(message string) error {
	return NewDomainError("CONFIG_MISSING", message, http.StatusServiceUnavailable, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError classifies store and tracker failures; anything else is
// internal.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &DomainError{Code: "NOT_FOUND", Message: "draft not found", HTTPStatus: http.StatusNotFound, Err: err}
	}

	var (
		apiErr    *tracker.APIError
		netErr    *tracker.NetworkError
		decodeErr *tracker.DecodeError
	)
	switch {
	case errors.As(err, &apiErr):
		details := map[string]any{"status": apiErr.Status}
		if len(apiErr.Messages) > 0 {
			details["messages"] = apiErr.Messages
		}
		if len(apiErr.FieldErrors) > 0 {
			details["fields"] = apiErr.FieldErrors
		}
		return &DomainError{Code: "TRACKER_REJECTED", Message: "issue tracker rejected the request",
			HTTPStatus: http.StatusBadGateway, Details: details, Err: err}
	case errors.As(err, &decodeErr):
		return &DomainError{Code: "TRACKER_BAD_RESPONSE", Message: "issue tracker returned an unreadable response",
			HTTPStatus: http.StatusBadGateway, Details: map[string]any{"status": decodeErr.Status}, Err: err}
	case errors.As(err, &netErr):
		return &DomainError{Code: "TRACKER_UNAVAILABLE", Message: "issue tracker unreachable",
			HTTPStatus: http.StatusGatewayTimeout, Err: err}
	}

	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
