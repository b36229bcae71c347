// Package logging provides structured logging for the CLI and the transfer engine.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures a Logger.
type Options struct {
	// Console is where human-readable output goes. Nil means stderr.
	Console io.Writer

	// Verbose lowers the console level from info to debug.
	Verbose bool

	// File receives every entry at debug level and above (nil = no file).
	File io.Writer
}

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog    zerolog.Logger
	mode    string // "cli" or "engine"
	opts    Options
	console zerolog.Level
}

// NewLogger creates a new logger for the specified mode.
func NewLogger(mode string, opts Options) *Logger {
	l := &Logger{mode: mode, opts: opts}
	l.console = zerolog.InfoLevel
	if opts.Verbose {
		l.console = zerolog.DebugLevel
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	l.rebuild(out)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", Options{})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "nop"}
}

// rebuild wires the console writer (level-filtered) and the optional file writer.
func (l *Logger) rebuild(out io.Writer) {
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	}

	var w io.Writer = &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: console},
		Level:  l.console,
	}
	if l.opts.File != nil {
		w = zerolog.MultiLevelWriter(w, l.opts.File)
	}

	l.zlog = zerolog.New(w).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Str("mode", l.mode).
		Logger()
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Named returns a child Logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	child := *l
	child.zlog = l.zlog.With().Str("component", component).Logger()
	return &child
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Per-writer filtering decides what reaches the console; the global level
	// stays at debug so the diagnostic file sees every adb output line.
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
