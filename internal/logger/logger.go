package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"dota-pipeline/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New() zerolog.Logger {
	return newLogger(os.Stderr, false)
}

// NewConsole returns a human readable logger, used when LOG_FORMAT=console.
func NewConsole() zerolog.Logger {
	return newLogger(os.Stderr, true)
}

func newLogger(w io.Writer, console bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ApplyLevel sets the process-wide level. Unknown levels fall back to info.
func ApplyLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// FromConfig builds the application logger and applies LOG_LEVEL.
func FromConfig(cfg *config.Config) zerolog.Logger {
	ApplyLevel(cfg.LogLevel)
	if strings.EqualFold(cfg.LogFormat, "console") {
		return NewConsole()
	}
	return New()
}

var Module = fx.Provide(FromConfig)
