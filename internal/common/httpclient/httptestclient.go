package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/xiaozhi/managerctl/internal/request"
)

// HandlerTransport serves requests directly through an http.Handler. It uses
// httptest.NewRecorder to capture responses without making network calls and
// classifies them exactly like HTTPClient.
type HandlerTransport struct {
	config  Configurator
	handler http.Handler
}

// NewHandlerTransport returns a transport backed by h.
func NewHandlerTransport(config Configurator, h http.Handler) *HandlerTransport {
	return &HandlerTransport{
		config:  config,
		handler: h,
	}
}

// Do serves spec through the handler.
func (t *HandlerTransport) Do(ctx context.Context, spec request.Spec) request.Outcome {
	if err := ctx.Err(); err != nil {
		return transportFailure(err)
	}
	req, err := newHTTPRequest(ctx, t.config, spec)
	if err != nil {
		return request.Outcome{Err: err}
	}

	rr := httptest.NewRecorder()
	t.handler.ServeHTTP(rr, req)
	return classify(rr.Code, rr.Body.Bytes())
}
