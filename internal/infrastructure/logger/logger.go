// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup builds a zerolog.Logger writing JSON to stdout at the given level
// ("debug", "info", "warn", "error"; anything else falls back to info).
func Setup(level string) zerolog.Logger {
	l := parseLevel(level)
	zerolog.SetGlobalLevel(l)
	return zerolog.New(os.Stdout).Level(l).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Default returns a logger at info level, for callers that don't need custom
// configuration.
func Default() zerolog.Logger {
	return Setup("info")
}
