package models

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
	LogTrace
)

var levelNames = []string{"error", "warn", "info", "debug", "trace"}

var levelColors = []string{
	ansi.ColorCode("red+b"),
	ansi.ColorCode("yellow"),
	ansi.ColorCode("green"),
	ansi.ColorCode("cyan"),
	ansi.ColorCode("black+h"),
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", l)
}

// Logger writes kernel messages at or below a level.
type Logger struct {
	*log.Logger
	Level LogLevel
	Color bool
}

// NewLogger picks colour automatically when w is a terminal.
func NewLogger(w io.Writer, level LogLevel) *Logger {
	color := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		color = true
		w = colorable.NewColorable(f)
	}
	return &Logger{Logger: log.New(w, "", 0), Level: level, Color: color}
}

// LoggerFor builds a logger from the config's output and verbosity.
func LoggerFor(c *Config) *Logger {
	level := LogInfo
	if c.Verbose {
		level = LogDebug
	}
	l := NewLogger(c.Output, level)
	l.Color = l.Color || c.Color
	return l
}

func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && level <= l.Level
}

func (l *Logger) logf(level LogLevel, format string, a ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	tag := "[" + level.String() + "]"
	if l.Color {
		tag = levelColors[level] + tag + ansi.Reset
	}
	l.Printf("%s %s", tag, fmt.Sprintf(format, a...))
}

func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(LogError, format, a...) }
func (l *Logger) Warnf(format string, a ...interface{})  { l.logf(LogWarn, format, a...) }
func (l *Logger) Infof(format string, a ...interface{})  { l.logf(LogInfo, format, a...) }
func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(LogDebug, format, a...) }
func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(LogTrace, format, a...) }
