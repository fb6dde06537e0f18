package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrNegativeInventory", ErrNegativeInventory, "insufficient inventory"},
		{"ErrInvalidFrequency", ErrInvalidFrequency, "invalid frequency"},
		{"ErrProviderNotFound", ErrProviderNotFound, "provider not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrConflict,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrProviderNotFound,
		ErrInvalidFrequency,
		ErrNegativeInventory,
		ErrSyncNotFound,
		ErrScheduleBusy,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIntegrationErrorFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{http.StatusTooManyRequests, CodeRateLimited, true},
		{http.StatusInternalServerError, CodeProviderUnavailable, true},
		{http.StatusBadGateway, CodeProviderUnavailable, true},
		{http.StatusUnauthorized, CodeAuth, false},
		{http.StatusForbidden, CodeAuth, false},
		{http.StatusBadRequest, CodeRequestRejected, false},
		{http.StatusNotFound, CodeRequestRejected, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := IntegrationErrorFromStatus("shipbob", tt.status, "body")
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable %v, got %v", tt.retryable, err.Retryable)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable mismatch for %d", tt.status)
			}
		})
	}
}

func TestIntegrationErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("call failed: %w", &IntegrationError{
		Code:      CodeTransport,
		Provider:  "stripe",
		Message:   "request failed",
		Retryable: true,
		Err:       cause,
	})

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if ErrorCodeOf(err) != CodeTransport {
		t.Errorf("expected TRANSPORT_ERROR, got %q", ErrorCodeOf(err))
	}
	if !IsRetryable(err) {
		t.Error("expected transport error to be retryable")
	}
	if ErrorCodeOf(ErrNotFound) != "" {
		t.Error("plain errors carry no code")
	}
	if IsRetryable(NewConfigurationError("stripe", "missing api key")) {
		t.Error("configuration errors are never retryable")
	}
}
