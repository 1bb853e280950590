// Package tsqerr defines the single categorized error type the core
// subsystem raises. Every failure path in tsq produces one of these instead
// of a bare error, so the CLI boundary can translate it into the output
// envelope and the matching process exit code without re-deriving either.
package tsqerr

import (
	"errors"
	"fmt"
)

// Code is a symbolic error identifier shared with the on-wire output
// envelope's error.code field.
type Code string

// Validation errors (exit 1).
const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidEvent      Code = "INVALID_EVENT"
	CodeInvalidEventType  Code = "INVALID_EVENT_TYPE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodeTaskNotFound      Code = "TASK_NOT_FOUND"
	CodeTaskIDAmbiguous   Code = "TASK_ID_AMBIGUOUS"
	CodeTaskExists        Code = "TASK_EXISTS"
	CodeDependencyCycle   Code = "DEPENDENCY_CYCLE"
	CodeDuplicateCycle    Code = "DUPLICATE_CYCLE"
	CodeRelationSelfEdge  Code = "RELATION_SELF_EDGE"
	CodeClaimConflict     Code = "CLAIM_CONFLICT"
	CodeSpecConflict      Code = "SPEC_CONFLICT"
	CodeSpecValidation    Code = "SPEC_VALIDATION_FAILED"
)

// Internal/IO errors (exit 2).
const (
	CodeEventsCorrupt    Code = "EVENTS_CORRUPT"
	CodeEventReadFailed  Code = "EVENT_READ_FAILED"
	CodeEventAppendFail  Code = "EVENT_APPEND_FAILED"
	CodeStateReadFailed  Code = "STATE_READ_FAILED"
	CodeStateWriteFailed Code = "STATE_WRITE_FAILED"
	CodeSnapshotRead     Code = "SNAPSHOT_READ_FAILED"
	CodeSnapshotWrite    Code = "SNAPSHOT_WRITE_FAILED"
	CodeConfigRead       Code = "CONFIG_READ_FAILED"
	CodeConfigWrite      Code = "CONFIG_WRITE_FAILED"
	CodeConfigInvalid    Code = "CONFIG_INVALID"
	CodeIO               Code = "IO_ERROR"
	CodeLockAcquireFail  Code = "LOCK_ACQUIRE_FAILED"
	CodeLockReleaseFail  Code = "LOCK_RELEASE_FAILED"
	CodeLockRemoveFail   Code = "LOCK_REMOVE_FAILED"
	CodeIDCollision      Code = "ID_COLLISION"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Contention errors (exit 3).
const (
	CodeLockTimeout Code = "LOCK_TIMEOUT"
)

// exitCodeByCode maps every known code to its process exit code. Codes
// absent from this table (there should be none) fall back to exit 2.
var exitCodeByCode = map[Code]int{
	CodeValidation:        1,
	CodeInvalidEvent:      1,
	CodeInvalidEventType:  1,
	CodeInvalidTransition: 1,
	CodeInvalidStatus:     1,
	CodeTaskNotFound:      1,
	CodeTaskIDAmbiguous:   1,
	CodeTaskExists:        1,
	CodeDependencyCycle:   1,
	CodeDuplicateCycle:    1,
	CodeRelationSelfEdge:  1,
	CodeClaimConflict:     1,
	CodeSpecConflict:      1,
	CodeSpecValidation:    1,

	CodeEventsCorrupt:    2,
	CodeEventReadFailed:  2,
	CodeEventAppendFail:  2,
	CodeStateReadFailed:  2,
	CodeStateWriteFailed: 2,
	CodeSnapshotRead:     2,
	CodeSnapshotWrite:    2,
	CodeConfigRead:       2,
	CodeConfigWrite:      2,
	CodeConfigInvalid:    2,
	CodeIO:               2,
	CodeLockAcquireFail:  2,
	CodeLockReleaseFail:  2,
	CodeLockRemoveFail:   2,
	CodeIDCollision:      2,
	CodeInternal:         2,

	CodeLockTimeout: 3,
}

// Error is the categorized error every core package returns.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExitCode reports the process exit code for this error's category.
func (e *Error) ExitCode() int {
	if e == nil {
		return 0
	}
	if code, ok := exitCodeByCode[e.Code]; ok {
		return code
	}
	return 2
}

// New constructs an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetails attaches structured details and returns the receiver for
// chaining at the construction site.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// As reports whether err (or a wrapped cause) is an *Error, populating
// target on success.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// CodeOf returns the Code carried by err if it (or a wrapped cause) is an
// *Error, and ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code, true
	}
	return "", false
}

// ExitCodeFor returns the process exit code for err: the code carried by an
// *Error cause if present, otherwise 2 (internal/IO) for any other non-nil
// error, or 0 for nil.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.ExitCode()
	}
	return 2
}
