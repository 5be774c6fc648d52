// Package server exposes a Connector over HTTP. Errors are reported with the
// database package's error codes, each mapped to an HTTP status.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vibesql/connector/internal/database"
)

// Error code constants (imported from database package for convenience)
const (
	ErrorCodeInvalidSQL           = database.ErrorCodeInvalidSQL
	ErrorCodeInvalidInput         = database.ErrorCodeInvalidInput
	ErrorCodeMissingRequiredField = database.ErrorCodeMissingRequiredField
	ErrorCodeUnsafeQuery          = database.ErrorCodeUnsafeQuery
	ErrorCodeQueryTimeout         = database.ErrorCodeQueryTimeout
	ErrorCodeQueryTooLarge        = database.ErrorCodeQueryTooLarge
	ErrorCodeResultTooLarge       = database.ErrorCodeResultTooLarge
	ErrorCodeTableNotFound        = database.ErrorCodeTableNotFound
	ErrorCodePrimaryKeyNotFound   = database.ErrorCodePrimaryKeyNotFound
	ErrorCodeConstraintViolation  = database.ErrorCodeConstraintViolation
	ErrorCodeTransaction          = database.ErrorCodeTransaction
	ErrorCodeInternalError        = database.ErrorCodeInternalError
	ErrorCodeDatabaseUnavailable  = database.ErrorCodeDatabaseUnavailable
)

// GetHTTPStatusCode returns the HTTP status code for a given error code
func GetHTTPStatusCode(errorCode string) int {
	return database.GetHTTPStatusCode(errorCode)
}

// NewMissingFieldError creates an error for a missing required field
func NewMissingFieldError(fieldName string) *database.Error {
	return database.NewError(
		ErrorCodeMissingRequiredField,
		fmt.Sprintf("Missing required field: %s", fieldName),
		fmt.Sprintf("The request must include a '%s' field", fieldName),
	)
}

// NewInvalidRequestError creates an error for a request body that cannot be decoded
func NewInvalidRequestError(detail string) *database.Error {
	return database.NewError(
		ErrorCodeInvalidInput,
		"Invalid JSON request body",
		detail,
	)
}

// NewInvalidIDError creates an error for a row id that is not an integer
func NewInvalidIDError(id string) *database.Error {
	return database.NewError(
		ErrorCodeInvalidInput,
		"Invalid row id",
		fmt.Sprintf("%q is not an integer", id),
	)
}

// NewInternalError creates an error for internal server errors
func NewInternalError(detail string) *database.Error {
	return database.NewError(
		ErrorCodeInternalError,
		"An internal error occurred",
		detail,
	)
}

// asError returns err as a *database.Error, translating anything else.
func asError(err error) *database.Error {
	var connErr *database.Error
	if errors.As(err, &connErr) {
		return connErr
	}
	return database.TranslateError(err)
}

// HTTPErrorCodeMapping maps error codes to HTTP status codes for reference.
var HTTPErrorCodeMapping = map[string]int{
	ErrorCodeInvalidSQL:           http.StatusBadRequest,            // 400
	ErrorCodeInvalidInput:         http.StatusBadRequest,            // 400
	ErrorCodeMissingRequiredField: http.StatusBadRequest,            // 400
	ErrorCodeUnsafeQuery:          http.StatusBadRequest,            // 400
	ErrorCodeQueryTimeout:         http.StatusRequestTimeout,        // 408
	ErrorCodeQueryTooLarge:        http.StatusRequestEntityTooLarge, // 413
	ErrorCodeResultTooLarge:       http.StatusRequestEntityTooLarge, // 413
	ErrorCodeTableNotFound:        http.StatusNotFound,              // 404
	ErrorCodePrimaryKeyNotFound:   http.StatusUnprocessableEntity,   // 422
	ErrorCodeConstraintViolation:  http.StatusConflict,              // 409
	ErrorCodeTransaction:          http.StatusConflict,              // 409
	ErrorCodeInternalError:        http.StatusInternalServerError,   // 500
	ErrorCodeDatabaseUnavailable:  http.StatusServiceUnavailable,    // 503
}

// ValidateHTTPStatusMapping checks HTTPErrorCodeMapping against the
// database package.
func ValidateHTTPStatusMapping() error {
	for code, expectedStatus := range HTTPErrorCodeMapping {
		actualStatus := GetHTTPStatusCode(code)
		if actualStatus != expectedStatus {
			return fmt.Errorf("HTTP status mismatch for %s: expected %d, got %d", code, expectedStatus, actualStatus)
		}
	}
	return nil
}
