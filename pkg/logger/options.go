package logger

import (
	"io"
	"log/slog"
)

// Format selects the handler New builds.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota
	// FormatJSON is slog's JSON handler, for service logs and log files.
	FormatJSON
	// FormatPretty is the charmbracelet/log handler for terminals.
	FormatPretty
)

// Option configures a Logger created with New.
type Option func(*config)

// WithFormat picks the output format.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithJSON switches to FormatJSON when on.
func WithJSON(on bool) Option {
	return func(c *config) {
		if on {
			c.format = FormatJSON
		}
	}
}

// WithPretty switches to FormatPretty when on.
func WithPretty(on bool) Option {
	return func(c *config) {
		if on {
			c.format = FormatPretty
		}
	}
}

// WithDebug lowers the level to Debug when true.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel sets an explicit level. Use ParseLevel for user input.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writers = []io.Writer{w} }
}

// WithWriters writes every record to all of w.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
