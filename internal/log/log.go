// Package log provides context-aware logging for han.
//
// User-facing messages go through Printf/Println and are suppressed by quiet
// mode. Diagnostics go through Debug/Warn as structured key-value records;
// Debug records only appear in verbose mode. Everything is written to the
// logger's writer (stderr in the CLI) so stdout stays reserved for results.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

type ctxKey struct{}

// Logger provides output, diagnostics and verbose command logging.
type Logger struct {
	out     io.Writer
	verbose bool
	quiet   bool
	slog    *slog.Logger
}

// New creates a new logger.
func New(out io.Writer, verbose, quiet bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Timestamps add noise to per-event output.
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return &Logger{out: out, verbose: verbose, quiet: quiet, slog: slog.New(h)}
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context.
// Returns a no-op logger if none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return New(io.Discard, false, true)
}

// Printf writes formatted output unless quiet.
func (l *Logger) Printf(format string, args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintf(l.out, format, args...)
}

// Println writes a line of output unless quiet.
func (l *Logger) Println(args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintln(l.out, args...)
}

// Debug logs a diagnostic record. Only emitted in verbose mode.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Warn logs a non-fatal problem such as a dropped plugin or hook.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Command logs an external command execution and returns a func that
// records its duration. Only prints when verbose mode is enabled.
func (l *Logger) Command(dir, name string, args ...string) func(time.Duration) {
	if !l.verbose {
		return func(time.Duration) {}
	}
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if dir != "" {
		fmt.Fprintf(l.out, "[%s] $ %s\n", dir, line)
	} else {
		fmt.Fprintf(l.out, "$ %s\n", line)
	}
	return func(d time.Duration) {
		fmt.Fprintf(l.out, "  (%s)\n", d.Round(time.Millisecond))
	}
}

// Verbose returns true if verbose mode is enabled.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// Writer returns the underlying writer.
func (l *Logger) Writer() io.Writer {
	return l.out
}

// Format renders msg and key-value pairs the way Warn prints them, for
// callers that also collect warnings for reports.
func Format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " !BADKEY=%v", args[i])
			break
		}
		v := fmt.Sprint(args[i+1])
		if v == "" || strings.ContainsAny(v, " =\"") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %v=%s", args[i], v)
	}
	return b.String()
}
