package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the zerolog Logger every binary installs globally.
// APP_ENV=dev (or development) uses a human-friendly console writer.
// Every line carries service=guardia.
func NewLogger(env string) zerolog.Logger {
	l := zerolog.New(os.Stdout).With().Timestamp().Str("service", "guardia").Logger()
	if env == "dev" || env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("service", "guardia").Logger()
	}
	return l
}
