// Package observability sets up logging, metrics and tracing for the process.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger. level is one of
// debug|info|warn|error; unknown values fall back to info.
func SetupLogger(level string, pretty bool) {
	SetupLoggerTo(os.Stdout, level, pretty)
}

// SetupLoggerTo is SetupLogger with an explicit sink
func SetupLoggerTo(w io.Writer, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "walletlink").Logger()
}
