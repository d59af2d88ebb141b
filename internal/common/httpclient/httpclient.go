package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
	"github.com/xiaozhi/managerctl/internal/request"
)

// codeUnauthorized is the envelope code the backend uses for an invalid session.
const codeUnauthorized = 401

// HTTPClient sends requests to the manager API over the network.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
	userAgent  string
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	DisableCertValidation bool          // If true, skips SSL certificate validation
	Timeout               time.Duration // Default per-request timeout, zero means none
	UserAgent             string
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a new HTTP client using the provided configuration and options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{Timeout: opts.Timeout}

	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "managerctl"
	}
	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
		userAgent:  ua,
	}
}

// Do performs the exchange described by spec.
func (c *HTTPClient) Do(ctx context.Context, spec request.Spec) request.Outcome {
	if spec.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout())
		defer cancel()
	}

	req, err := newHTTPRequest(ctx, c.config, spec)
	if err != nil {
		return request.Outcome{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(fmt.Errorf("failed to read response body: %w", err))
	}
	return classify(resp.StatusCode, body)
}

// newHTTPRequest renders spec as an *http.Request. The session token is sent as a
// bearer token unless the spec carries its own Authorization header.
func newHTTPRequest(ctx context.Context, config Configurator, spec request.Spec) (*http.Request, error) {
	var (
		bodyReader  io.Reader
		contentType string
	)
	body := spec.Body()
	switch body.Kind() {
	case request.BodyRaw:
		bodyReader = bytes.NewReader(body.Bytes())
		contentType = "application/json"
	case request.BodyForm:
		ct, encoded, err := body.Form().Encode()
		if err != nil {
			return nil, request.ErrValidation.MsgErr("unable to encode form", err)
		}
		bodyReader = bytes.NewReader(encoded)
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method(), spec.URL(), bodyReader)
	if err != nil {
		return nil, request.ErrValidation.MsgErr("failed to create request", err)
	}
	for k, v := range spec.Headers() {
		req.Header.Set(k, v)
	}
	// multipart content types must carry the boundary of the encoded body
	if body.Kind() == request.BodyForm || (contentType != "" && req.Header.Get("Content-Type") == "") {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if spec.ID() != "" {
		req.Header.Set("X-Request-Id", spec.ID())
	}
	if req.Header.Get("Authorization") == "" && config != nil {
		if token := config.GetToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func transportFailure(err error) request.Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return request.Outcome{Err: request.ErrTimeout.MsgErr("request timed out: "+err.Error(), err)}
	}
	return request.Outcome{Err: request.ErrNetwork.MsgErr("request failed: "+err.Error(), err)}
}

// classify maps an HTTP status and body to an outcome. The backend wraps every
// response in {"code":..., "msg":..., "data":...}, and reports an expired session
// either with HTTP 401 or with envelope code 401. A 403 is a permission problem of
// a valid session and is a server error.
func classify(status int, body []byte) request.Outcome {
	if status == http.StatusUnauthorized {
		return request.Failure(apperrors.KindAuth, serverMessage(body, http.StatusText(status)), status)
	}
	if status >= 400 {
		msg := serverMessage(body, "")
		if msg == "" {
			if status == http.StatusNotFound {
				msg = "server doesn't implement this endpoint"
			} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
				msg = trimmed
			} else {
				msg = http.StatusText(status)
			}
		}
		return request.Failure(apperrors.KindServer, msg, status)
	}

	if len(body) > 0 && gjson.ValidBytes(body) {
		code := gjson.GetBytes(body, "code")
		if code.Exists() && code.Int() != 0 {
			msg := serverMessage(body, fmt.Sprintf("server returned code %d", code.Int()))
			if code.Int() == codeUnauthorized {
				return request.Failure(apperrors.KindAuth, msg, http.StatusUnauthorized)
			}
			return request.Failure(apperrors.KindServer, msg, int(code.Int()))
		}
	}
	return request.Success(request.Payload(body))
}

func serverMessage(body []byte, fallback string) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return fallback
	}
	for _, field := range []string{"msg", "error", "message"} {
		if r := gjson.GetBytes(body, field); r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return fallback
}
