// Package logtrace provides logging and tracing utilities for the application.
// It integrates with zerolog for structured logging and carries request ids in contexts.
package logtrace

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamps at the given level.
// An unparsable level falls back to info.
func InitLogger(level string) {
	InitLoggerWithWriter(os.Stderr, level)
}

// InitLoggerWithWriter is InitLogger writing to w.
func InitLoggerWithWriter(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
