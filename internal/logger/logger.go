package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line so aggregated logs can be split
// per deployment.
const ServiceName = "exstem-delivery"

// Setup builds the process logger writing to stdout.
//   - level: trace, debug, info, warn, error, fatal, panic (info if unknown)
//   - format: "pretty" for human-readable dev output, anything else is JSON
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// New builds a logger writing to w. The level is applied to the returned
// logger only, so tests can run loggers at different levels side by side.
func New(w io.Writer, level, format string) zerolog.Logger {
	if strings.EqualFold(format, "pretty") {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Str("service", ServiceName).
		Logger()
}
