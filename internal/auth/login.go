// Package auth performs the login exchange the session guard uses to
// re-authenticate, and stores the resulting token.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xiaozhi/managerctl/internal/request"
)

// DefaultLoginPath is the login endpoint of the manager API, relative to the server URL.
const DefaultLoginPath = "/user/login"

// Credentials provides the login details and receives the issued token.
type Credentials interface {
	GetServerURL() string
	GetUsername() string
	GetPassword() string
	SetToken(token string, expiry time.Time) error
}

// PasswordLogin logs in with username and password. It sends the login request
// straight through the transport so a rejected login never re-enters the guard.
type PasswordLogin struct {
	creds     Credentials
	transport request.Transport
	path      string
	now       func() time.Time
}

// NewPasswordLogin returns an authenticator posting to DefaultLoginPath.
func NewPasswordLogin(creds Credentials, transport request.Transport) *PasswordLogin {
	return &PasswordLogin{
		creds:     creds,
		transport: transport,
		path:      DefaultLoginPath,
		now:       time.Now,
	}
}

// WithPath returns a copy of l posting to p.
func (l *PasswordLogin) WithPath(p string) *PasswordLogin {
	cp := *l
	cp.path = p
	return &cp
}

// Authenticate performs the login exchange and stores the token.
func (l *PasswordLogin) Authenticate(ctx context.Context) error {
	username, password := l.creds.GetUsername(), l.creds.GetPassword()
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	loginURL, err := joinURL(l.creds.GetServerURL(), l.path)
	if err != nil {
		return ErrLogin.MsgErr("invalid server url", err)
	}
	spec, err := request.New().
		URL(loginURL).
		Method(http.MethodPost).
		Data(map[string]string{"username": username, "password": password}).
		Build()
	if err != nil {
		return ErrLogin.MsgErr(err.Error(), err)
	}

	out := l.transport.Do(ctx, spec)
	if !out.OK() {
		return ErrLogin.MsgErr("login request failed: "+out.Err.Error(), out.Err)
	}

	token := out.Payload.Get("data.token").String()
	if token == "" {
		return ErrNoToken
	}
	var expiry time.Time
	if secs := out.Payload.Get("data.expire").Int(); secs > 0 {
		expiry = l.now().Add(time.Duration(secs) * time.Second)
	}
	if err := l.creds.SetToken(token, expiry); err != nil {
		return ErrLogin.MsgErr("unable to store token", err)
	}
	log.Info().Str("user", username).Msg("logged in")
	return nil
}

func joinURL(base, p string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = path.Join("/", u.Path, p)
	return u.String(), nil
}
