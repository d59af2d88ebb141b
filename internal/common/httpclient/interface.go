// Package httpclient is the HTTP transport of the manager client. It turns a
// request.Spec into one HTTP exchange and classifies the response into a
// request.Outcome. The package requires a Configurator for the server URL and the
// session token.
package httpclient

import (
	"github.com/xiaozhi/managerctl/internal/request"
)

// Configurator provides server configuration and authentication details.
type Configurator interface {
	GetServerURL() string
	GetToken() string
}

// Verify that the HTTPClient and HandlerTransport implement request.Transport.
var _ request.Transport = &HTTPClient{}
var _ request.Transport = &HandlerTransport{}
