package dto

import (
	"net/http"

	"github.com/erp/reconciler/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeValidation is used when a field fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeRunInProgress is used when another reconciliation run holds the lock
	ErrCodeRunInProgress = "ERR_RUN_IN_PROGRESS"
)

// Reconciliation failure codes. Each aborts the run.
const (
	// ErrCodePlatformNotConfigured is used when ERP credentials or settings are missing
	ErrCodePlatformNotConfigured = "ERR_PLATFORM_NOT_CONFIGURED"
	// ErrCodeTokenRefreshFailed is used when the ERP refresh-token grant fails
	ErrCodeTokenRefreshFailed = "ERR_TOKEN_REFRESH_FAILED"
	// ErrCodePlatformAuthFailed is used when the ERP rejects a freshly refreshed token
	ErrCodePlatformAuthFailed = "ERR_PLATFORM_AUTH_FAILED"
	// ErrCodeLockUnavailable is used when the run lock backend cannot be reached
	ErrCodeLockUnavailable = "ERR_LOCK_UNAVAILABLE"
	// ErrCodeRunFailed is used for store failures and other fatal run errors
	ErrCodeRunFailed = "ERR_RUN_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeRunInProgress: http.StatusConflict,

	// Run failures -> 500
	ErrCodePlatformNotConfigured: http.StatusInternalServerError,
	ErrCodeTokenRefreshFailed:    http.StatusInternalServerError,
	ErrCodePlatformAuthFailed:    http.StatusInternalServerError,
	ErrCodeLockUnavailable:       http.StatusInternalServerError,
	ErrCodeRunFailed:             http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps shared.DomainError codes to response codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeValidation: ErrCodeValidation,
}

// NormalizeErrorCode converts a domain error code to a response code.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
