package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrAuthentication      = NewDomainError("AUTHENTICATION_FAILED", "No usable credential for this platform")
	ErrConnectivity        = NewDomainError("CONNECTIVITY", "Platform or storage unreachable")
	ErrValidation          = NewDomainError("VALIDATION_FAILED", "Record failed normalization rules")
	ErrRefreshFailed       = NewDomainError("REFRESH_FAILED", "Credential refresh attempt failed")
	ErrUnsupportedPlatform = NewDomainError("UNSUPPORTED_PLATFORM", "Platform is not supported")
)
