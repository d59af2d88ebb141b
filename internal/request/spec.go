package request

import (
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// BodyKind tells how a request body is encoded.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyRaw
	BodyForm
)

// Body is an optional request body: raw bytes or a multipart form.
type Body struct {
	kind BodyKind
	raw  []byte
	form *Form
}

// RawBody returns a body sent as-is.
func RawBody(b []byte) Body {
	return Body{kind: BodyRaw, raw: append([]byte(nil), b...)}
}

// FormBody returns a multipart body. The form is copied.
func FormBody(f *Form) Body {
	if f == nil {
		return Body{}
	}
	return Body{kind: BodyForm, form: f.clone()}
}

func (b Body) Kind() BodyKind {
	return b.kind
}

// Bytes returns a copy of a raw body, nil for other kinds.
func (b Body) Bytes() []byte {
	if b.kind != BodyRaw {
		return nil
	}
	return append([]byte(nil), b.raw...)
}

// Form returns a copy of a form body, nil for other kinds.
func (b Body) Form() *Form {
	if b.kind != BodyForm {
		return nil
	}
	return b.form.clone()
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Spec is an immutable description of one HTTP call. A replay dispatches the same
// Spec value again.
type Spec struct {
	id      string
	url     string
	method  string
	headers map[string]string
	body    Body
	timeout time.Duration
}

func (s Spec) ID() string { return s.id }
func (s Spec) URL() string { return s.url }
func (s Spec) Method() string { return s.method }
func (s Spec) Body() Body { return s.body }
func (s Spec) Timeout() time.Duration { return s.timeout }

// Headers returns a copy of the request headers with canonical keys.
func (s Spec) Headers() map[string]string {
	h := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		h[k] = v
	}
	return h
}

// Header returns a single header value.
func (s Spec) Header(key string) string {
	return s.headers[http.CanonicalHeaderKey(key)]
}

// Validate checks that the spec can be dispatched.
func (s Spec) Validate() error {
	if s.url == "" {
		return ErrValidation.Msg("url is required")
	}
	u, err := url.Parse(s.url)
	if err != nil {
		return ErrValidation.MsgErr("invalid url "+s.url, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrValidation.Msg("url must be absolute http(s): " + s.url)
	}
	if !knownMethods[s.method] {
		return ErrValidation.Msg("unsupported method " + s.method)
	}
	if s.body.kind != BodyNone && (s.method == http.MethodGet || s.method == http.MethodHead) {
		return ErrValidation.Msg(s.method + " request cannot carry a body")
	}
	return s.validateContentType()
}

func (s Spec) validateContentType() error {
	ct := s.Header("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ErrValidation.MsgErr("invalid content type "+ct, err)
	}
	switch {
	case mediaType == "multipart/form-data":
		if s.body.kind != BodyForm {
			return ErrValidation.Msg("multipart/form-data requires a form body")
		}
	case s.body.kind == BodyForm:
		return ErrValidation.Msg("form body declared as " + mediaType)
	case mediaType == "application/json" && s.body.kind == BodyRaw:
		if !gjson.ValidBytes(s.body.raw) {
			return ErrValidation.Msg("body is not valid json")
		}
	}
	return nil
}
