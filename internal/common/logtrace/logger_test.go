package logtrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithWriter(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("device", "D9").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"device":"D9"`)
	assert.Contains(t, out, `"time":`)

	buf.Reset()
	InitLoggerWithWriter(&buf, "nonsense")
	log.Info().Msg("info is default")
	assert.Contains(t, buf.String(), "info is default")
}

func TestRequestIdFromContext(t *testing.T) {
	var nilCtx context.Context
	assert.Equal(t, "", RequestIdFromContext(nilCtx))
	assert.Equal(t, "", RequestIdFromContext(context.Background()))
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIdFromContext(ctx))
}
