package proxy

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/keymux/keymux/internal/config"
)

// NewLogger builds the process logger from configuration. Format "auto"
// picks human-readable console output when stderr is a terminal and JSON
// otherwise.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	pretty := cfg.Format == "pretty" ||
		(cfg.Format == "auto" && isatty.IsTerminal(os.Stderr.Fd()))
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
