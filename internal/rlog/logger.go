// Package rlog provides structured, leveled logging for the memory node and
// compute node binaries. It is a small, dependency-free logger rather than a
// wrapper around a third-party framework: components log component-tagged
// lines with key=value fields, wrapped in ANSI colors whenever
// Config.Colorize is set (Default sets it; no terminal check is made), and a
// request-scoped logger can be derived per RPC call so every line a handler
// emits carries the correlation id a client can grep for.
package rlog

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	Info Level = iota
	Warn
	Error
	Fatal
)

var levelNames = map[Level]string{
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
	Fatal: "FATAL",
}

var levelColors = map[Level]string{
	Info:  "\033[32m", // Green
	Warn:  "\033[33m", // Yellow
	Error: "\033[31m", // Red
	Fatal: "\033[35m", // Magenta
}

const colorReset = "\033[0m"

// Logger is a structured, component-tagged logger.
type Logger struct {
	mu         sync.Mutex
	level      Level
	component  string
	requestID  string // set by WithRequestID, empty otherwise
	output     io.Writer
	colorize   bool
	timeFormat string
}

// Config configures a Logger instance.
type Config struct {
	Level      Level
	Component  string
	Output     io.Writer
	Colorize   bool
	TimeFormat string
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "15:04:05.000"
	}

	return &Logger{
		level:      cfg.Level,
		component:  cfg.Component,
		output:     cfg.Output,
		colorize:   cfg.Colorize,
		timeFormat: cfg.TimeFormat,
	}
}

// Default creates a logger with sensible defaults for the given component.
func Default(component string) *Logger {
	return New(Config{
		Level:     Info,
		Component: component,
		Output:    os.Stdout,
		Colorize:  true,
	})
}

// With returns a logger scoped to a different component, sharing config.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		level:      l.level,
		component:  component,
		requestID:  l.requestID,
		output:     l.output,
		colorize:   l.colorize,
		timeFormat: l.timeFormat,
	}
}

// WithRequestID returns a logger that tags every line it emits with id (an
// RPC correlation id, e.g. the uuid bytes rpc.NewRequestID generates). The
// memory node's RPC dispatcher derives one of these per inbound request so
// a client's correlation id can be grepped straight out of the server log.
func (l *Logger) WithRequestID(id []byte) *Logger {
	child := l.With(l.component)
	child.requestID = hex.EncodeToString(id)
	return child
}

func (l *Logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(Error, msg, fields...) }

// Fatal logs at Fatal level and exits the process.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(Fatal, msg, fields...)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format(l.timeFormat)
	levelStr := levelNames[level]

	var b strings.Builder
	if l.colorize {
		b.WriteString(levelColors[level])
	}
	b.WriteString("[")
	b.WriteString(timestamp)
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-5s", levelStr))
	b.WriteString("] ")
	if l.component != "" {
		b.WriteString("[")
		b.WriteString(l.component)
		b.WriteString("] ")
	}
	if l.requestID != "" {
		b.WriteString("req=")
		b.WriteString(l.requestID)
		b.WriteString(" ")
	}
	b.WriteString(msg)

	if len(fields) > 0 {
		b.WriteString(" ")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(f.Key)
			b.WriteString("=")
			b.WriteString(f.format())
		}
	}

	if l.colorize {
		b.WriteString(colorReset)
	}
	b.WriteString("\n")

	l.output.Write([]byte(b.String()))
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) format() string {
	switch v := f.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field   { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Err(err error) Field                     { return Field{Key: "error", Value: err} }
