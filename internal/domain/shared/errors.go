package shared

import "fmt"

// Error codes shared by every bounded context. The HTTP layer maps them to
// status codes; schedulers only log them.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeConflict            = "CONFLICT"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidState        = "INVALID_STATE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeCredential          = "CREDENTIAL_ERROR"
	CodeExternalAPI         = "EXTERNAL_API_ERROR"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeSecurity            = "SECURITY_VIOLATION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Is reports whether target is a DomainError of the same category, so
// errors.Is(err, shared.ErrNotFound) holds for every NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t == e || (t.Code == e.Code && t.Message == "")
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Category sentinels. They carry no message so errors.Is matches any error
// with the same code.
var (
	ErrNotFound            = &DomainError{Code: CodeNotFound}
	ErrAlreadyExists       = &DomainError{Code: CodeAlreadyExists}
	ErrConflict            = &DomainError{Code: CodeConflict}
	ErrForbidden           = &DomainError{Code: CodeForbidden}
	ErrInvalidState        = &DomainError{Code: CodeInvalidState}
	ErrValidation          = &DomainError{Code: CodeValidation}
	ErrCredential          = &DomainError{Code: CodeCredential}
	ErrExternalAPI         = &DomainError{Code: CodeExternalAPI}
	ErrConcurrencyConflict = &DomainError{Code: CodeConcurrencyConflict}
	ErrSecurity            = &DomainError{Code: CodeSecurity}
)

// NewValidationError builds a VALIDATION_ERROR with a formatted message.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// BestEffortFailure wraps the failure of a side operation (notification,
// cost lookup) that must never block the primary operation it belongs to.
// It is logged at the boundary and not returned to callers.
type BestEffortFailure struct {
	Operation string
	Err       error
}

func (e *BestEffortFailure) Error() string {
	return fmt.Sprintf("best effort %s failed: %v", e.Operation, e.Err)
}

func (e *BestEffortFailure) Unwrap() error {
	return e.Err
}

// NewBestEffortFailure wraps err for the named operation.
func NewBestEffortFailure(operation string, err error) *BestEffortFailure {
	return &BestEffortFailure{Operation: operation, Err: err}
}
