package auth

import (
	"net/http"

	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

var (
	// ErrLogin is the base error for login failures.
	ErrLogin apperrors.Error = apperrors.New("login failed").SetKind(apperrors.KindAuth).SetStatusCode(http.StatusUnauthorized)

	// ErrMissingCredentials is returned when no username or password is configured.
	ErrMissingCredentials apperrors.Error = ErrLogin.New("no credentials configured, run \"managerctl login\"")

	// ErrNoToken is returned when the login response does not carry a token.
	ErrNoToken apperrors.Error = ErrLogin.New("login response did not contain a token")
)
