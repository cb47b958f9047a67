package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure independently of the store that caused it.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindUserNotFound
	KindOtpDispatchFailed
	KindInvalidCode
	KindUploadFailed
	KindDeleteFailed
	KindPersistenceFailed
	KindAuthRequired
)

var kindMessages = map[Kind]string{
	KindNotFound:          "not found",
	KindUserNotFound:      "User not found",
	KindOtpDispatchFailed: "failed to send one-time code",
	KindInvalidCode:       "invalid or expired code",
	KindUploadFailed:      "upload failed",
	KindDeleteFailed:      "delete failed",
	KindPersistenceFailed: "persistence failed",
	KindAuthRequired:      "authentication required",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every public service operation. Err holds the
// underlying store failure and is never shown to end users.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUserNotFound      = &Error{Kind: KindUserNotFound}
	ErrOtpDispatchFailed = &Error{Kind: KindOtpDispatchFailed}
	ErrInvalidCode       = &Error{Kind: KindInvalidCode}
	ErrUploadFailed      = &Error{Kind: KindUploadFailed}
	ErrDeleteFailed      = &Error{Kind: KindDeleteFailed}
	ErrPersistenceFailed = &Error{Kind: KindPersistenceFailed}
	ErrAuthRequired      = &Error{Kind: KindAuthRequired}
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or zero for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
