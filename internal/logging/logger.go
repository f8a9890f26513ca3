// Package logging provides the levelled diagnostic sink used across webserv.
//
// It mirrors the original C++ Logger: five levels (Debug, Success, Info,
// Warning, Error), each independently hideable, plus toggles for the
// timestamp, file:line suffix, and ANSI colour that decorate every line.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Level mirrors Logger::LogLevel from the original source, with an extra
// Success level logrus has no built-in equivalent for.
type Level int

const (
	LevelDebug Level = iota
	LevelSuccess
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelSuccess:
		return "SUCCESS"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger wraps a logrus.Logger with the original's hide/colour toggles.
type Logger struct {
	base        *logrus.Logger
	hidden      map[Level]bool
	useFileLine bool
	useTimestamp bool
	useLevel    bool
}

// New constructs a Logger writing to w (os.Stdout in production).
func New(w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.TraceLevel)
	l := &Logger{
		base:         base,
		hidden:       make(map[Level]bool),
		useFileLine:  true,
		useTimestamp: true,
		useLevel:     true,
	}
	l.SetUseColour(true)
	return l
}

// Default is the process-wide logger, matching the original's static
// Logger class (no instances, only static calls).
var Default = New(os.Stdout)

// Hide suppresses a single level from all future output.
func (l *Logger) Hide(level Level) { l.hidden[level] = true }

// HideFileLine drops the "file:line" suffix from every entry.
func (l *Logger) HideFileLine() { l.useFileLine = false }

// HideTimestamp drops the leading timestamp from every entry.
func (l *Logger) HideTimestamp() {
	l.useTimestamp = false
	if f, ok := l.base.Formatter.(*logrus.TextFormatter); ok {
		f.DisableTimestamp = true
	}
}

// HideLevel drops the level field (DEBUG, SUCCESS, INFO, ...) that this
// package adds to every entry. logrus's own severity marker is still printed.
func (l *Logger) HideLevel() { l.useLevel = false }

// SetUseColour toggles ANSI colour in formatted output.
func (l *Logger) SetUseColour(value bool) {
	l.base.SetFormatter(&logrus.TextFormatter{
		DisableColors:    !value,
		ForceColors:      value,
		DisableTimestamp: !l.useTimestamp,
		FullTimestamp:    true,
	})
}

func (l *Logger) log(level Level, msg string) {
	if l.hidden[level] {
		return
	}
	entry := logrus.NewEntry(l.base)
	if l.useFileLine {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry = entry.WithField("at", fmt.Sprintf("%s:%d", filepath.Base(file), line))
		}
	}
	if l.useLevel {
		entry = entry.WithField("level", level.String())
	}
	switch level {
	case LevelDebug:
		entry.Debug(msg)
	case LevelError:
		entry.Error(msg)
	case LevelWarning:
		entry.Warn(msg)
	default: // Success and Info both print at Info severity
		entry.Info(msg)
	}
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Successf(format string, args ...interface{}) { l.log(LevelSuccess, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})    { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.log(LevelWarning, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Package-level helpers delegate to Default, matching the original's static
// call sites (INFO(...), ERROR(...), etc. used without an instance).
func Debugf(format string, args ...interface{})   { Default.log(LevelDebug, fmt.Sprintf(format, args...)) }
func Successf(format string, args ...interface{}) { Default.log(LevelSuccess, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{})    { Default.log(LevelInfo, fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...interface{}) { Default.log(LevelWarning, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{})   { Default.log(LevelError, fmt.Sprintf(format, args...)) }
