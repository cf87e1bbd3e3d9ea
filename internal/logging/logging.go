// Package logging provides the leveled stderr logger behind the CLI's
// --loglvl flag; the core packages send diagnostic lines here rather than
// calling log.Printf directly.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Level is one of the five verbosities named by --loglvl.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// ParseLevel parses one of "debug", "info", "warning", "error", "critical".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	return 0, fmt.Errorf("invalid --loglvl %q: want one of debug, info, warning, error, critical", s)
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ansiColor returns the ANSI color-code prefix for l, or "" for an unknown
// level.
func (l Level) ansiColor() string {
	switch l {
	case LevelDebug:
		return "\x1b[90m" // bright black
	case LevelInfo:
		return "\x1b[0m"
	case LevelWarning:
		return "\x1b[33m" // yellow
	case LevelError, LevelCritical:
		return "\x1b[31m" // red
	default:
		return ""
	}
}

const ansiReset = "\x1b[0m"

// Logger is a leveled wrapper around the standard library's log.Logger.
// Messages below the configured minimum level are discarded; the rest are
// written to the underlying *log.Logger with a level prefix, colorized when
// the destination is a terminal.
type Logger struct {
	mu    sync.Mutex
	min   Level
	std   *log.Logger
	color bool
}

// New returns a Logger writing to w at or above min. Color is enabled only
// when w is an *os.File attached to a terminal.
func New(w io.Writer, min Level) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{
		min:   min,
		std:   log.New(w, "", log.LstdFlags),
		color: color,
	}
}

func (l *Logger) logf(lvl Level, format string, args ...interface{}) {
	if lvl < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.color {
		l.std.Printf("%s%-8s%s %s", lvl.ansiColor(), lvl, ansiReset, msg)
	} else {
		l.std.Printf("%-8s %s", lvl, msg)
	}
}

func (l *Logger) Debugf(format string, args ...interface{})    { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})     { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{})  { l.logf(LevelWarning, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.logf(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.logf(LevelCritical, format, args...) }

// Default is a process-wide Logger at LevelInfo on os.Stderr, created at
// package initialization. Core packages take a *Logger explicitly rather
// than reaching for this global, and cmd/buildreqcheck builds its own
// Logger from -loglvl instead of using it.
var Default = New(os.Stderr, LevelInfo)
