// Package logging builds the per-run execution logger. Every run
// writes a complete debug-level JSON log file; the console shows a
// pretty, level-filtered view of the same events.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls console behavior. The log file is always written
// at debug level regardless of these switches.
type Options struct {
	// Verbose raises the console to info level.
	Verbose bool

	// Quiet lowers the console to errors only and wins over Verbose.
	Quiet bool

	// NoColor disables ANSI styling on the console.
	NoColor bool

	// Console overrides the console writer. Defaults to os.Stderr.
	Console io.Writer
}

// consoleLevel maps the verbosity switches onto a zerolog level.
// Default is warn, matching a tool that stays silent while healthy.
func (o Options) consoleLevel() zerolog.Level {
	switch {
	case o.Quiet:
		return zerolog.ErrorLevel
	case o.Verbose:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}

// New creates the run logger writing JSON lines to logPath. The
// returned cleanup closes the log file and must be called when the
// run ends.
func New(logPath string, opts Options) (zerolog.Logger, func() error, error) {
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening run log %s: %w", logPath, err)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(consoleWriter(opts), file)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()

	return logger, file.Close, nil
}

// NewConsole creates a console-only logger for commands that do not
// produce a run log file.
func NewConsole(opts Options) zerolog.Logger {
	return zerolog.New(consoleWriter(opts)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
}

func consoleWriter(opts Options) zerolog.LevelWriter {
	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	return &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: console},
		Level:  opts.consoleLevel(),
	}
}
