package units

import (
	"errors"
	"fmt"
)

// UnitError represents a domain-specific error
type UnitError struct {
	Code    string
	Message string
	Cause   error
}

func (e *UnitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *UnitError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodePolicyExhausted   = "POLICY_EXHAUSTED"
)

// NewUnitError creates a new unit error
func NewUnitError(code, message string, cause error) *UnitError {
	return &UnitError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the domain code from err, or "" for foreign errors.
func ErrorCode(err error) string {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}
