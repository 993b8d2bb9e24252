// Package logger provides opinionated logging capabilities for the stacks system.
// Every component receives a *slog.Logger; this package decides how records
// are rendered.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Format selects how records are rendered.
type Format string

const (
	// FormatText is slog's logfmt-style text handler.
	FormatText Format = "text"

	// FormatPretty is the colorized charmbracelet/log handler used by the CLI.
	FormatPretty Format = "pretty"

	// FormatJSON is one JSON object per record, for log files and collectors.
	FormatJSON Format = "json"
)

// ParseFormat returns the Format named by s. The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatPretty, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q: expected text, pretty or json", s)
	}
}

type options struct {
	level  slog.Level
	format Format
	source bool
	w      io.Writer
}

// Option configures a logger created with New.
type Option func(*options)

// WithDebug lowers the level to Debug when debug is true.
func WithDebug(debug bool) Option {
	return func(o *options) {
		if debug {
			o.level = slog.LevelDebug
		} else {
			o.level = slog.LevelInfo
		}
	}
}

// WithFormat sets the record format.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithWriter sets the output. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.w = w
	}
}

// WithSource reports the calling file and line.
func WithSource(source bool) Option {
	return func(o *options) {
		o.source = source
	}
}

// New creates a *slog.Logger. Without options it writes text records at
// Info level to os.Stderr.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		format: FormatText,
		w:      os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{Level: o.level, AddSource: o.source}

	switch o.format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(o.w, handlerOpts))
	case FormatPretty:
		return slog.New(charmlog.NewWithOptions(o.w, charmlog.Options{
			Level:           charmlog.Level(o.level),
			ReportTimestamp: true,
			ReportCaller:    o.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(o.w, handlerOpts))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewLogger returns the logger used by stacks commands: pretty records on
// stderr, so command output on stdout stays pipeable.
func NewLogger(debug bool) *slog.Logger {
	return New(
		WithDebug(debug),
		WithFormat(FormatPretty),
	)
}

// NewServeLogger returns the long-running server's logger. Records always go
// to stderr (stdout may carry MCP over stdio); when logFile is set they are
// also appended to it as JSON. The returned func closes the file.
func NewServeLogger(debug bool, logFile string) (*slog.Logger, func() error, error) {
	console := NewLogger(debug)
	if logFile == "" {
		return console, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithDebug(debug), WithFormat(FormatJSON), WithWriter(f))
	return Multi(console, file), f.Close, nil
}
