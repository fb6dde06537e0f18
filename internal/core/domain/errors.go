package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a concurrent modification was detected
	ErrConflict = errors.New("conflict")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrProviderNotFound indicates no adapter is registered for a provider
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidFrequency indicates a schedule frequency could not be parsed
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrNegativeInventory indicates an adjustment would drive stock below zero
	ErrNegativeInventory = errors.New("insufficient inventory")

	// ErrSyncNotFound indicates the sync progress record is missing or expired
	ErrSyncNotFound = errors.New("sync not found")

	// ErrScheduleBusy indicates another instance holds the schedule lease
	ErrScheduleBusy = errors.New("schedule execution already in progress")
)

// ErrorCode is a stable, machine-readable identifier for integration failures.
type ErrorCode string

const (
	CodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
	CodeAuth                ErrorCode = "AUTH_ERROR"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeRequestRejected     ErrorCode = "REQUEST_REJECTED"
	CodeInvalidResponse     ErrorCode = "INVALID_RESPONSE"
	CodeMissingID           ErrorCode = "MISSING_ID"
	CodeTransport           ErrorCode = "TRANSPORT_ERROR"
)

// IntegrationError is the structured failure returned by provider calls.
type IntegrationError struct {
	Code       ErrorCode
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *IntegrationError) Error() string {
	msg := fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports missing credentials or endpoints. Never retried.
func NewConfigurationError(provider, message string) *IntegrationError {
	return &IntegrationError{Code: CodeConfiguration, Provider: provider, Message: message}
}

// IntegrationErrorFromStatus classifies an HTTP status returned by a provider.
func IntegrationErrorFromStatus(provider string, status int, body string) *IntegrationError {
	e := &IntegrationError{Provider: provider, StatusCode: status, Message: body}
	switch {
	case status == 429:
		e.Code = CodeRateLimited
		e.Retryable = true
	case status >= 500:
		e.Code = CodeProviderUnavailable
		e.Retryable = true
	case status == 401 || status == 403:
		e.Code = CodeAuth
	default:
		e.Code = CodeRequestRejected
	}
	return e
}

// IsRetryable reports whether err is a transient integration failure.
func IsRetryable(err error) bool {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// ErrorCodeOf returns the integration error code carried by err, if any.
func ErrorCodeOf(err error) ErrorCode {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
