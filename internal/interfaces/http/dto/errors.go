package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
)

// Domain error codes, matching shared.DomainError codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeAuthentication      = "AUTHENTICATION_FAILED"
	ErrCodeConnectivity        = "CONNECTIVITY"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeRefreshFailed       = "REFRESH_FAILED"
	ErrCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeAuthentication:      http.StatusUnauthorized,
	ErrCodeConnectivity:        http.StatusBadGateway,
	ErrCodeValidation:          http.StatusUnprocessableEntity,
	ErrCodeRefreshFailed:       http.StatusBadGateway,
	ErrCodeUnsupportedPlatform: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code,
// defaulting to 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
