// Package errors provides standardized error handling for the HTTP API and background workers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrCodeEmailInUse     ErrorCode = "EMAIL_IN_USE"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnknownField     ErrorCode = "UNKNOWN_FIELD"

	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDatabaseUpdateFailed     ErrorCode = "DATABASE_UPDATE_FAILED"
	ErrCodeDatabaseDeleteFailed     ErrorCode = "DATABASE_DELETE_FAILED"

	ErrCodeExtractionFailed            ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout           ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeExtractionMalformedResponse ErrorCode = "EXTRACTION_MALFORMED_RESPONSE"
	ErrCodeExtractionInProgress        ErrorCode = "EXTRACTION_IN_PROGRESS"

	ErrCodeEditSessionClosing ErrorCode = "EDIT_SESSION_CLOSING"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchDisabled    ErrorCode = "SEARCH_DISABLED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionExpiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionExpired,
		Message:   "Session expired or unknown",
		Details:   "sign in again",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEmailInUseError(email string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailInUse,
		Message:   "Email already registered",
		Details:   fmt.Sprintf("email: %s", email),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownField,
		Message:   "Unknown or read-only field",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseUpdateFailed,
		Message:   "Database update operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseDeleteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseDeleteFailed,
		Message:   "Database delete operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExtractionInProgressError(slot string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionInProgress,
		Message:   "An extraction is already running for this slot",
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEditSessionClosingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEditSessionClosing,
		Message:   "Edit session is closing; the edit was not applied",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchDisabledError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchDisabled,
		Message:   "Property search is not configured",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP mapping
// ==========================

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAuthentication, ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case ErrCodeValidationFailed, ErrCodeUnknownField:
		return http.StatusBadRequest
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeEmailInUse, ErrCodeExtractionInProgress, ErrCodeEditSessionClosing:
		return http.StatusConflict
	case ErrCodeSearchDisabled:
		return http.StatusNotImplemented
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeDatabaseDeleteFailed,
		ErrCodeSearchQueryFailed:
		return http.StatusServiceUnavailable
	case ErrCodeExtractionFailed, ErrCodeExtractionMalformedResponse:
		return http.StatusBadGateway
	case ErrCodeExtractionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandard unwraps err into a StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "EDIT_SESSION"):
		return "SYNC"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "EMAIL"):
		return "AUTH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "EXTRACTION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "FIELD"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
