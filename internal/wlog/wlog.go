// Package wlog is the watcher's structured logger. It colors output by
// severity with github.com/fatih/color rather than emitting a bare text
// log, while staying a thin wrapper over the standard timestamp/writer
// plumbing.
package wlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	debugColor = color.New(color.FgHiBlack)
)

// Logger writes leveled, colorized lines to an io.Writer. The zero value
// is not usable; construct with New.
type Logger struct {
	out     io.Writer
	debug   bool
	nowFunc func() time.Time
}

// New creates a Logger writing to w. debug controls whether Debug calls
// produce output at all.
func New(w io.Writer, debug bool) *Logger {
	return &Logger{out: w, debug: debug, nowFunc: time.Now}
}

// Default returns a Logger writing to stderr, keeping rendered results
// on stdout and diagnostics on stderr. Color is disabled when stderr is
// not a terminal (piped to a
// file or CI log), so redirected output stays free of escape codes.
func Default(debug bool) *Logger {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
	return New(os.Stderr, debug)
}

func (l *Logger) timestamp() string {
	return l.nowFunc().Format("15:04:05.000")
}

func (l *Logger) Info(format string, args ...any) {
	fmt.Fprintf(l.out, "%s ", l.timestamp())
	infoColor.Fprintf(l.out, "INFO  ")
	fmt.Fprintf(l.out, format+"\n", args...)
}

func (l *Logger) Warn(format string, args ...any) {
	fmt.Fprintf(l.out, "%s ", l.timestamp())
	warnColor.Fprintf(l.out, "WARN  ")
	fmt.Fprintf(l.out, format+"\n", args...)
}

func (l *Logger) Error(format string, args ...any) {
	fmt.Fprintf(l.out, "%s ", l.timestamp())
	errColor.Fprintf(l.out, "ERROR ")
	fmt.Fprintf(l.out, format+"\n", args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	fmt.Fprintf(l.out, "%s ", l.timestamp())
	debugColor.Fprintf(l.out, "DEBUG ")
	fmt.Fprintf(l.out, format+"\n", args...)
}
