// Package logging provides structured logging for mydumpkit using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

var logger *zerolog.Logger

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger. Debug lowers the level to debug.
// FormatAuto picks the console writer when stderr is a terminal.
func Init(debug bool, format string) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	l := zerolog.New(writerFor(format, os.Stderr)).With().Timestamp().Logger()
	logger = &l
}

func writerFor(format string, out *os.File) io.Writer {
	switch strings.ToLower(format) {
	case FormatJSON:
		return out
	case FormatConsole:
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
		return out
	}
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// WithRun returns a logger carrying the run id.
func WithRun(runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}
