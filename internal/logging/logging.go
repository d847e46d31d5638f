// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Setup replaces the global logger. format is "console" for human-readable
// output or "json" for one object per line. w defaults to stdout.
// Setup is not safe while other goroutines are logging; call it once at
// startup and use SetLevel afterwards.
func Setup(level, format string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stdout
	}

	zerolog.ErrorFieldName = "err"

	switch format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	case "json":
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// SetLevel changes the global level without rebuilding the writer.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
