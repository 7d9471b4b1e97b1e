package mct

import (
	"fmt"
	"syscall"
)

// ErrorKind is the high-level category of a log-API failure (spec §7).
type ErrorKind string

const (
	KindOK              ErrorKind = "ok"
	KindLoggingDisabled ErrorKind = "logging-disabled"
	KindWrongParameter  ErrorKind = "wrong-parameter"
	KindUserBufferFull  ErrorKind = "user-buffer-full"
	KindBufferFull      ErrorKind = "buffer-full"
	KindPipeFull        ErrorKind = "pipe-full"
	KindPipeError       ErrorKind = "pipe-error"
	KindFileSizeError   ErrorKind = "file-size-error"
	KindError           ErrorKind = "error"
)

// Error is the structured error type returned by every client-facing
// operation. Code identifies the recovery path the caller should take;
// Op, Apid and Ctid narrow down where it happened.
type Error struct {
	Op      string    // operation that failed, e.g. "Log", "RegisterContext"
	Apid    string    // application id, when applicable
	Ctid    string    // context id, when applicable
	Code    ErrorKind
	Errno   syscall.Errno // kernel errno, when applicable
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	var loc string
	switch {
	case e.Apid != "" && e.Ctid != "":
		loc = fmt.Sprintf(" %s/%s", e.Apid, e.Ctid)
	case e.Apid != "":
		loc = " " + e.Apid
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("mct: %s%s: %s", e.Op, loc, msg)
	}
	return fmt.Sprintf("mct:%s %s", loc, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is against both another *Error (compared by Code)
// and a bare ErrorKind.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if kind, ok := target.(ErrorKind); ok {
		return e.Code == kind
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

func (k ErrorKind) Error() string { return string(k) }

// NewError builds a structured error for op/code with a plain message.
func NewError(op string, code ErrorKind, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewContextError builds a structured error scoped to an app/context.
func NewContextError(op, apid, ctid string, code ErrorKind, msg string) *Error {
	return &Error{Op: op, Apid: apid, Ctid: ctid, Code: code, Msg: msg}
}

// WrapError attaches op/code context to an existing error, preserving an
// inner *Error's fields when inner is already structured.
func WrapError(op string, code ErrorKind, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Apid: ie.Apid, Ctid: ie.Ctid, Code: code, Errno: ie.Errno, Msg: ie.Msg, Inner: ie.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: code, Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}
