// Package apperrors provides chained error templates for the manager client. An error
// created from a template keeps the template as its base so errors.Is matches the whole
// chain, and carries a Kind that classifies where a request went wrong.
package apperrors

// Kind classifies an error by the stage of a request that produced it.
type Kind int

const (
	KindUnknown    Kind = iota
	KindValidation      // malformed request, rejected before dispatch
	KindNetwork         // transport-level failure
	KindTimeout         // transport gave up waiting for a response
	KindAuth            // session invalid or expired
	KindServer          // valid session, request rejected by the backend
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the interface implemented by all application errors. Every method that
// returns Error produces a new value, so templates can be shared package variables.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // new error using the current one as template
	Msg(msg string) Error                  // new message, wraps the original
	MsgErr(msg string, err ...error) Error // new message, wraps the original and extra errors
	Err(err ...error) Error                // same message, attaches extra errors
	SetStatusCode(int) Error               // HTTP status or backend result code
	StatusCode() int
	SetKind(Kind) Error
	Kind() Kind
	ErrorAll() string   // message followed by every wrapped error
	UnwrapAll() []error // wrapped errors in the order they were added
}
