package request

import (
	"net/http"

	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

var (
	// ErrRequest is the base error for all request failures.
	ErrRequest apperrors.Error = apperrors.New("request failed")

	// ErrValidation is returned when a request is malformed. It is raised before any
	// network call is made.
	ErrValidation apperrors.Error = ErrRequest.New("invalid request").SetKind(apperrors.KindValidation)

	// ErrNetwork is returned when the transport could not complete the exchange.
	ErrNetwork apperrors.Error = ErrRequest.New("network error").SetKind(apperrors.KindNetwork)

	// ErrTimeout is returned when the exchange did not finish in time.
	ErrTimeout apperrors.Error = ErrNetwork.New("request timed out").SetKind(apperrors.KindTimeout)

	// ErrAuth is returned when the backend rejects the session.
	ErrAuth apperrors.Error = ErrRequest.New("session is not authorized").SetKind(apperrors.KindAuth).SetStatusCode(http.StatusUnauthorized)

	// ErrServer is returned when the backend rejects the request itself.
	ErrServer apperrors.Error = ErrRequest.New("server rejected request").SetKind(apperrors.KindServer)
)
