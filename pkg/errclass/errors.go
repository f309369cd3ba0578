package errclass

import "fmt"

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Version-tracking error classes.
var (
	ErrAlreadyTracked        = &Error{Code: "E_ALREADY_TRACKED"}
	ErrNotTracked            = &Error{Code: "E_NOT_TRACKED"}
	ErrVersionNotFound       = &Error{Code: "E_VERSION_NOT_FOUND"}
	ErrAmbiguousVersion      = &Error{Code: "E_AMBIGUOUS_VERSION"}
	ErrDuplicateEntry        = &Error{Code: "E_DUPLICATE_ENTRY"}
	ErrRepositoryUnavailable = &Error{Code: "E_REPOSITORY_UNAVAILABLE"}
	ErrRemoteNotConfigured   = &Error{Code: "E_REMOTE_NOT_CONFIGURED"}
	ErrPushFailed            = &Error{Code: "E_PUSH_FAILED"}
)

// Workspace and input error classes.
var (
	ErrFileNotFound      = &Error{Code: "E_FILE_NOT_FOUND"}
	ErrPathEscape        = &Error{Code: "E_PATH_ESCAPE"}
	ErrNameInvalid       = &Error{Code: "E_NAME_INVALID"}
	ErrFormatUnsupported = &Error{Code: "E_FORMAT_UNSUPPORTED"}
	ErrAuditChainBroken  = &Error{Code: "E_AUDIT_CHAIN_BROKEN"}
)
