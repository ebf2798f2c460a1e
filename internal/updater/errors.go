package updater

import "fmt"

// ErrCode classifies updater failures so the API can map them to HTTP
// statuses without string matching.
type ErrCode string

const (
	ErrCodeInvalidState   ErrCode = "INVALID_STATE"
	ErrCodeCheckFailed    ErrCode = "CHECK_FAILED"
	ErrCodeNoUpdate       ErrCode = "NO_UPDATE"
	ErrCodeDownloadFailed ErrCode = "DOWNLOAD_FAILED"
	ErrCodeApplyFailed    ErrCode = "APPLY_FAILED"
	ErrCodeBackupFailed   ErrCode = "BACKUP_FAILED"
	ErrCodeRollbackFailed ErrCode = "ROLLBACK_FAILED"
	ErrCodeNoBackup       ErrCode = "NO_BACKUP"
	ErrCodeDisabled       ErrCode = "DISABLED"
)

// Error couples an ErrCode with context about what went wrong.
type Error struct {
	Code    ErrCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code ErrCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
