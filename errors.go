package httpd

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/behrlich/reactor-httpd/internal/errcode"
)

// Error represents a structured reactor-httpd error with request/connection
// context and errno mapping.
type Error struct {
	Op    string  // Operation that failed (e.g., "accept", "parse", "respond")
	Fd    int     // Connection descriptor (-1 if not applicable)
	Code  ErrCode // High-level error category
	Errno syscall.Errno
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Fd >= 0 {
		parts = append(parts, fmt.Sprintf("fd=%d", e.Fd))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("httpd: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("httpd: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/errors.As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrCode represents high-level error categories, one per policy row of
// spec.md §7. It is an alias of internal/errcode.Code so internal/reactor
// can classify per-request outcomes into the same taxonomy without
// importing this root package (which would cycle, since this package
// already imports internal/reactor).
type ErrCode = errcode.Code

const (
	ErrCodeTransient       = errcode.Transient
	ErrCodePeerClosed      = errcode.PeerClosed
	ErrCodeBadRequest      = errcode.BadRequest
	ErrCodeNotFound        = errcode.NotFound
	ErrCodeForbidden       = errcode.Forbidden
	ErrCodeMmapFailed      = errcode.MmapFailed
	ErrCodeServerBusy      = errcode.ServerBusy
	ErrCodeAuthUnavailable = errcode.AuthUnavailable
	ErrCodePoolClosed      = errcode.PoolClosed
)

// NewError creates a new structured error.
func NewError(op string, code ErrCode, msg string) *Error {
	return &Error{Op: op, Fd: -1, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a new structured error carrying a kernel errno.
func NewErrorWithErrno(op string, code ErrCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Fd: -1, Code: code, Errno: errno, Msg: errno.Error()}
}

// NewConnError creates a new connection-scoped error.
func NewConnError(op string, fd int, code ErrCode, msg string) *Error {
	return &Error{Op: op, Fd: fd, Code: code, Msg: msg}
}

// WrapError wraps an existing error with reactor-httpd context, mapping
// syscall errnos to an ErrCode the way spec.md §7's policy table expects.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if he, ok := inner.(*Error); ok {
		return &Error{Op: op, Fd: he.Fd, Code: he.Code, Errno: he.Errno, Msg: he.Msg, Inner: he.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Fd: -1, Code: errcode.FromErrno(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Fd: -1, Code: ErrCodeTransient, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}
