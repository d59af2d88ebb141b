package request

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/xiaozhi/managerctl/internal/common/uuid"
)

// Callbacks receive the result of a request. Exactly one of them runs per attempt.
// NetworkFail receives every failure the caller has to handle: network errors,
// timeouts, server rejections, validation errors and auth errors the session guard
// could not recover from.
type Callbacks struct {
	Success     func(Payload)
	NetworkFail func(error)
}

// Builder accumulates a request through chained calls. Every method returns a new
// Builder and leaves the receiver untouched, so a partially configured Builder can
// be shared and extended from several goroutines.
type Builder struct {
	exec    *Executor
	url     string
	method  string
	headers map[string]string
	body    Body
	timeout time.Duration
	cb      Callbacks
	errs    []error
}

// New returns a Builder that is not bound to an executor. It can only Build.
func New() Builder {
	return Builder{method: http.MethodGet}
}

func (b Builder) URL(v string) Builder {
	b.url = strings.TrimSpace(v)
	return b
}

func (b Builder) Method(v string) Builder {
	b.method = strings.ToUpper(strings.TrimSpace(v))
	return b
}

// Header merges h into the request headers.
func (b Builder) Header(h map[string]string) Builder {
	merged := make(map[string]string, len(b.headers)+len(h))
	for k, v := range b.headers {
		merged[k] = v
	}
	for k, v := range h {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	b.headers = merged
	return b
}

// Data sets the request body. Strings and byte slices are sent as-is, a *Form is
// sent as multipart/form-data and any other value is encoded as JSON.
func (b Builder) Data(v any) Builder {
	switch body := v.(type) {
	case nil:
		b.body = Body{}
	case string:
		b.body = RawBody([]byte(body))
	case []byte:
		b.body = RawBody(body)
	case *Form:
		b.body = FormBody(body)
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return b.fail(ErrValidation.MsgErr("unable to encode request body", err))
		}
		b.body = RawBody(raw)
		if _, ok := b.headers["Content-Type"]; !ok {
			b = b.Header(map[string]string{"Content-Type": "application/json"})
		}
	}
	return b
}

// Timeout bounds a single attempt.
func (b Builder) Timeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

// Success registers the success callback. It may be registered once.
func (b Builder) Success(fn func(Payload)) Builder {
	if b.cb.Success != nil {
		return b.fail(ErrValidation.Msg("success callback already registered"))
	}
	b.cb.Success = fn
	return b
}

// NetworkFail registers the failure callback. It may be registered once.
func (b Builder) NetworkFail(fn func(error)) Builder {
	if b.cb.NetworkFail != nil {
		return b.fail(ErrValidation.Msg("failure callback already registered"))
	}
	b.cb.NetworkFail = fn
	return b
}

func (b Builder) fail(err error) Builder {
	b.errs = append(b.errs[:len(b.errs):len(b.errs)], err)
	return b
}

// Build validates the accumulated configuration and returns the Spec.
func (b Builder) Build() (Spec, error) {
	if len(b.errs) > 0 {
		return Spec{}, ErrValidation.MsgErr(b.errs[0].Error(), b.errs...)
	}
	s := Spec{
		id:      uuid.NewRequestID(),
		url:     b.url,
		method:  b.method,
		headers: b.headers,
		body:    b.body,
		timeout: b.timeout,
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Send builds the request and dispatches it through the bound executor. A request
// that fails validation is reported to NetworkFail and never reaches the transport.
func (b Builder) Send(ctx context.Context) *Future {
	if b.exec == nil {
		fut := newFuture()
		deliver(b.cb, fut, Outcome{Err: ErrValidation.Msg("request is not bound to an executor")})
		return fut
	}
	s, err := b.Build()
	if err != nil {
		fut := newFuture()
		deliver(b.cb, fut, Outcome{Err: err})
		return fut
	}
	return b.exec.Execute(ctx, s, b.cb)
}
