package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/vibesql/connector/internal/database"
)

func TestGetHTTPStatusCode(t *testing.T) {
	tests := []struct {
		errorCode      string
		expectedStatus int
	}{
		{ErrorCodeInvalidSQL, http.StatusBadRequest},
		{ErrorCodeInvalidInput, http.StatusBadRequest},
		{ErrorCodeMissingRequiredField, http.StatusBadRequest},
		{ErrorCodeUnsafeQuery, http.StatusBadRequest},
		{ErrorCodeQueryTimeout, http.StatusRequestTimeout},
		{ErrorCodeQueryTooLarge, http.StatusRequestEntityTooLarge},
		{ErrorCodeResultTooLarge, http.StatusRequestEntityTooLarge},
		{ErrorCodeTableNotFound, http.StatusNotFound},
		{ErrorCodePrimaryKeyNotFound, http.StatusUnprocessableEntity},
		{ErrorCodeConstraintViolation, http.StatusConflict},
		{ErrorCodeTransaction, http.StatusConflict},
		{ErrorCodeInternalError, http.StatusInternalServerError},
		{ErrorCodeDatabaseUnavailable, http.StatusServiceUnavailable},
		{"UNKNOWN_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.errorCode, func(t *testing.T) {
			if got := GetHTTPStatusCode(tt.errorCode); got != tt.expectedStatus {
				t.Errorf("GetHTTPStatusCode(%s) = %d, want %d", tt.errorCode, got, tt.expectedStatus)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name        string
		err         *database.Error
		wantCode    string
		wantMessage string
	}{
		{"missing field", NewMissingFieldError("sql"), ErrorCodeMissingRequiredField, "Missing required field: sql"},
		{"invalid request", NewInvalidRequestError("unexpected EOF"), ErrorCodeInvalidInput, "Invalid JSON request body"},
		{"invalid id", NewInvalidIDError("abc"), ErrorCodeInvalidInput, "Invalid row id"},
		{"internal", NewInternalError("boom"), ErrorCodeInternalError, "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMessage)
			}
			if tt.err.Detail == "" {
				t.Error("Detail should not be empty")
			}
		})
	}
}

func TestAsError(t *testing.T) {
	own := NewMissingFieldError("sql")
	if got := asError(own); got != own {
		t.Errorf("asError should pass *database.Error through, got %v", got)
	}

	wrapped := asError(errors.Join(errors.New("context"), own))
	if wrapped.Code != ErrorCodeMissingRequiredField {
		t.Errorf("asError should unwrap joined errors, got %s", wrapped.Code)
	}

	if got := asError(errors.New("plain")); got.Code != ErrorCodeInternalError {
		t.Errorf("plain errors should become INTERNAL_ERROR, got %s", got.Code)
	}
}

func TestValidateHTTPStatusMapping(t *testing.T) {
	if err := ValidateHTTPStatusMapping(); err != nil {
		t.Error(err)
	}
}
