package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
	kind          Kind
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the messages of all attached errors
// except the template itself.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrappedErrors {
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

func (e *appError) derive(msg string, wrapped []error) *appError {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: wrapped,
		statuscode:    e.statuscode,
		kind:          e.kind,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.wrappedErrors...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetKind(k Kind) Error {
	cp := *e
	cp.kind = k
	return &cp
}

func (e *appError) Kind() Kind {
	return e.kind
}

// Is reports whether target is the base of this error or any attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

// KindOf returns the kind of the first application error in err's chain.
func KindOf(err error) Kind {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindUnknown
}

// StatusCodeOf returns the status code of the first application error in err's chain.
func StatusCodeOf(err error) int {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return 0
}
