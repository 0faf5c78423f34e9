// Package gbalog implements the CORE's log sink: a small leveled logger in
// the teacher's log.Printf/log.Fatalf idiom, generalized to five severities
// and adjacent-line deduplication so a spinning-loop warning doesn't flood
// the terminal.
package gbalog

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level orders severities from least to most urgent.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "?"
	}
}

// Logger is a leveled sink that collapses runs of identical adjacent lines
// into a single "repeated N times" summary, flushed either when a
// different line arrives or on Close.
type Logger struct {
	out      *log.Logger
	minLevel Level

	lastLine  string
	lastLevel Level
	repeat    int
}

// New returns a Logger writing to w at or above minLevel. Pass os.Stderr
// for the CORE's default, matching the teacher's unredirected log.Printf
// calls.
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags), minLevel: minLevel}
}

// Default returns a Logger writing to os.Stderr at Info and above.
func Default() *Logger { return New(os.Stderr, Info) }

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.minLevel {
		return
	}
	line := fmt.Sprintf(format, args...)
	if line == l.lastLine && level == l.lastLevel {
		l.repeat++
		return
	}
	l.flush()
	l.lastLine = line
	l.lastLevel = level
	l.repeat = 0
	l.out.Printf("[%s] %s", level, line)
}

// flush emits the pending "repeated N times" summary for the previous line,
// if any repeats were collapsed.
func (l *Logger) flush() {
	if l.repeat > 0 {
		l.out.Printf("[%s] (repeated %d times)", l.lastLevel, l.repeat)
	}
	l.repeat = 0
}

// Close flushes any pending repeat summary. Safe to call on a nil Logger.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.flush()
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }

// Fatalf logs at Fatal and exits the process, matching log.Fatalf.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(Fatal, format, args...)
	l.flush()
	os.Exit(1)
}
