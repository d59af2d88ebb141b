package request

import (
	"github.com/tidwall/gjson"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

// Payload is the raw JSON body of a successful exchange.
type Payload []byte

// Get returns the value at the gjson path.
func (p Payload) Get(path string) gjson.Result {
	return gjson.GetBytes(p, path)
}

// Data returns the raw "data" member of the backend envelope.
func (p Payload) Data() Payload {
	r := p.Get("data")
	if !r.Exists() {
		return nil
	}
	return Payload(r.Raw)
}

func (p Payload) String() string {
	return string(p)
}

// Outcome is the result of one transport exchange: either Success with a payload or
// a Failure whose error carries an apperrors.Kind.
type Outcome struct {
	Payload Payload
	Err     error
}

// Success returns a successful outcome.
func Success(p Payload) Outcome {
	return Outcome{Payload: p}
}

// Failure returns a failed outcome of the given kind. detail replaces the message of
// the kind's sentinel when set, and status is kept as the error's status code.
func Failure(kind apperrors.Kind, detail string, status int) Outcome {
	var err apperrors.Error
	switch kind {
	case apperrors.KindAuth:
		err = ErrAuth
	case apperrors.KindServer:
		err = ErrServer
	case apperrors.KindTimeout:
		err = ErrTimeout
	case apperrors.KindValidation:
		err = ErrValidation
	default:
		err = ErrNetwork
	}
	// SetStatusCode copies its receiver, so derive first to keep the sentinel in the chain
	if detail == "" {
		detail = err.Error()
	}
	err = err.Msg(detail)
	if status != 0 {
		err = err.SetStatusCode(status)
	}
	return Outcome{Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind returns the failure kind, or KindUnknown for a success.
func (o Outcome) Kind() apperrors.Kind {
	if o.Err == nil {
		return apperrors.KindUnknown
	}
	return apperrors.KindOf(o.Err)
}
