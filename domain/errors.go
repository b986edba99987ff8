package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error. Op and AccountID carry enough context
// for the dashboard to render a specific message.
type Error struct {
	Code      ErrorCode
	Message   string
	Op        string
	AccountID string
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	switch {
	case e.Op != "" && e.AccountID != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.AccountID, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OpError attaches operation and account context to err. The code of the
// innermost domain error is kept so errors.Is and CodeOf still work.
func OpError(op, accountID string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:      CodeOf(err),
		Op:        op,
		AccountID: accountID,
		Err:       err,
	}
}

// Common domain errors.
var (
	ErrAccountNotFound    = NewError(ErrCodeNotFound, "account not found")
	ErrMediaNotFound      = NewError(ErrCodeNotFound, "media file not found")
	ErrAuditEventNotFound = NewError(ErrCodeNotFound, "audit event not found")

	ErrDuplicateID     = NewError(ErrCodeConflict, "account id already exists")
	ErrStillEnabled    = NewError(ErrCodeConflict, "account is still enabled, disable it first")
	ErrAccountDisabled = NewError(ErrCodeConflict, "account is disabled")
	ErrWorkerStopping  = NewError(ErrCodeConflict, "worker is still stopping")

	ErrInvalidID          = NewError(ErrCodeInvalid, "account id must match [A-Za-z0-9][A-Za-z0-9_-]{0,63}")
	ErrImmutableID        = NewError(ErrCodeInvalid, "account id cannot be changed")
	ErrIndexOutOfRange    = NewError(ErrCodeInvalid, "template index out of range")
	ErrFileTooLarge       = NewError(ErrCodeInvalid, "file too large")
	ErrUnsupportedType    = NewError(ErrCodeInvalid, "unsupported media type")
	ErrInvalidFilename    = NewError(ErrCodeInvalid, "invalid media filename")
	ErrInvalidDocument    = NewError(ErrCodeInvalid, "malformed config document")
	ErrInvalidCookies     = NewError(ErrCodeInvalid, "cookies must contain ct0 and auth_token")
	ErrMissingCredentials = NewError(ErrCodeInvalid, "account has no session cookies")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")

	ErrStopTimeout  = NewError(ErrCodeTimeout, "worker did not stop within the grace period")
	ErrStartTimeout = NewError(ErrCodeTimeout, "worker did not become ready in time")

	ErrWorkerUnavailable = NewError(ErrCodeUnavailable, "worker unreachable")
	ErrAuditDisabled     = NewError(ErrCodeUnavailable, "audit trail is not configured")

	ErrUnauthorized = NewError(ErrCodeUnauthorized, "unauthorized")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf returns the code of the outermost domain error in err's chain, or
// ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	for e := err; e != nil; {
		if !errors.As(e, &dErr) {
			break
		}
		if dErr.Code != "" {
			return dErr.Code
		}
		e = dErr.Err
	}
	return ErrCodeInternal
}

// ContextOf returns the operation and account id recorded on err, if any.
func ContextOf(err error) (op, accountID string) {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Op, dErr.AccountID
	}
	return "", ""
}
