package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("templates", func(t *testing.T) {
		ErrBase := New("base error")
		assert.Equal(t, "base error", ErrBase.Error())
		assert.ErrorIs(t, ErrBase, ErrBase)

		ErrFirstLevel := ErrBase.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBase)

		ErrOther := New("another error")
		ErrOtherMsg := ErrOther.Msg("another error msg")
		wrapped := ErrFirstLevel.Err(ErrOtherMsg)
		assert.Equal(t, "first level", wrapped.Error())
		assert.ErrorIs(t, wrapped, ErrBase)
		assert.ErrorIs(t, wrapped, ErrFirstLevel)
		assert.ErrorIs(t, wrapped, ErrOther)
		assert.ErrorIs(t, wrapped, ErrOtherMsg)
	})

	t.Run("go errors", func(t *testing.T) {
		ErrBase := New("base error")
		err := errors.New("error")
		wrapped := ErrBase.MsgErr("msg", err, fmt.Errorf("second"))
		assert.Equal(t, "msg", wrapped.Error())
		assert.Equal(t, "msg; error; second", wrapped.ErrorAll())
		assert.ErrorIs(t, wrapped, ErrBase)
		assert.ErrorIs(t, wrapped, err)
		assert.Len(t, wrapped.UnwrapAll(), 3)
	})

	t.Run("kind and status code propagate", func(t *testing.T) {
		ErrRequest := New("request failed")
		ErrServer := ErrRequest.New("server rejected request").SetKind(KindServer).SetStatusCode(http.StatusBadRequest)
		err := ErrServer.Msg("duplicate code")

		assert.Equal(t, KindServer, err.Kind())
		assert.Equal(t, http.StatusBadRequest, err.StatusCode())
		assert.Equal(t, KindServer, KindOf(fmt.Errorf("wrapped: %w", err)))
		assert.Equal(t, http.StatusBadRequest, StatusCodeOf(err))
		assert.Equal(t, KindUnknown, ErrRequest.Kind())
		assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
		assert.Equal(t, 0, StatusCodeOf(nil))
	})

	t.Run("setters do not mutate the template", func(t *testing.T) {
		ErrBase := New("base")
		_ = ErrBase.SetKind(KindAuth).SetStatusCode(http.StatusUnauthorized)
		assert.Equal(t, KindUnknown, ErrBase.Kind())
		assert.Equal(t, 0, ErrBase.StatusCode())
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "server", KindServer.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
