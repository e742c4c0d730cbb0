package taskflow

import (
	"github.com/rs/zerolog"

	"github.com/dagtask/planrunner/internal/infrastructure/logger"
)

// Logger is the structured logger type every ambient component logs through.
type Logger = zerolog.Logger

// NewLogger builds a Logger writing to stdout at the given level ("debug",
// "info", "warn", "error"; an unrecognized value falls back to "info").
func NewLogger(level string) Logger {
	return logger.Setup(level)
}

// DefaultLogger returns a Logger at info level, for callers that don't read
// their level from Config.
func DefaultLogger() Logger {
	return logger.Default()
}
