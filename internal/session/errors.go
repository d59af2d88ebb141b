package session

import (
	"net/http"

	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetKind(apperrors.KindAuth).SetStatusCode(http.StatusUnauthorized)

	// ErrReauthentication is delivered to every request queued during a
	// re-authentication episode that failed.
	ErrReauthentication apperrors.Error = ErrSessionError.New("re-authentication failed")

	// ErrNoAuthenticator is returned when the guard has no way to re-authenticate.
	ErrNoAuthenticator apperrors.Error = ErrSessionError.New("no authenticator configured")
)
