// Package logging builds the structured loggers used across dirscan.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // text|logfmt|json
	Prefix string

	// File, when set, receives a copy of every record with size based
	// rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Quiet drops terminal output; records still go to File.
	Quiet bool
}

// DefaultOptions returns warn-level text logging to stderr.
func DefaultOptions() Options {
	return Options{
		Level:      "warn",
		Format:     "text",
		MaxSizeMB:  128,
		MaxBackups: 5,
		MaxAgeDays: 16,
	}
}

// New builds a logger writing to stderr and, optionally, a rotating file.
// The returned closer releases the file; it is a no-op without one.
func New(opts Options) (*log.Logger, io.Closer, error) {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter is New with an explicit terminal writer.
func NewWithWriter(w io.Writer, opts Options) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	formatter, err := parseFormat(opts.Format)
	if err != nil {
		return nil, nil, err
	}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, w)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, rotating)
		closer = rotating
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.File != "" || formatter != log.TextFormatter,
		Formatter:       formatter,
	})
	return logger, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a level name to a log.Level. An empty name is warn.
func ParseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.WarnLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func parseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return log.TextFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	default:
		return 0, fmt.Errorf("invalid log format %q (expected text|logfmt|json)", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
