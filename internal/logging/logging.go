// Package logging builds the zerolog loggers used across corpusgen and
// carries them through context so every component tags its events the
// same way.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Output format names accepted in configuration.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is a zerolog level name ("debug", "info", ...). Unparseable
	// values fall back to info.
	Level string

	// Format selects console (human) or json (machine) output.
	Format string

	// File, when non-empty, appends log output to the given path instead
	// of stderr. Open failures fall back to stderr.
	File string
}

// Result holds a constructed logger plus the file handle backing it, if any.
type Result struct {
	Logger zerolog.Logger

	// FallbackUsed is set when a configured log file could not be opened
	// and stderr was used instead.
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if one was opened.
func (r *Result) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// New constructs the root logger from cfg. It never fails: bad levels
// default to info and unopenable files fall back to stderr console output.
func New(cfg Config) Result {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var result Result
	var out io.Writer = os.Stderr

	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if openErr != nil {
			result.FallbackUsed = true
			result.FallbackReason = openErr.Error()
		} else {
			result.file = f
			out = f
		}
	}

	// File output is always structured JSON; console formatting only
	// makes sense on a terminal.
	if cfg.Format != FormatJSON && result.file == nil {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	result.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return result
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger when
// none was attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// NewRunID returns a fresh ULID identifying one CLI invocation. Every log
// event of a run carries it, which keeps interleaved log files greppable.
func NewRunID() string {
	return ulid.Make().String()
}
