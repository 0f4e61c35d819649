// Package log provides a structured logging system for logkv services.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(l zapcore.Level) Level {
	switch {
	case l <= zapcore.DebugLevel:
		return DebugLevel
	case l == zapcore.InfoLevel:
		return InfoLevel
	case l == zapcore.WarnLevel:
		return WarnLevel
	case l == zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// Context keys used as well-known field names.
const (
	ComponentKey = "component"
	OperationKey = "operation"
)

// Logger defines the core logging interface for logkv components.
type Logger interface {
	// Standard logging methods with structured context (Field-based API)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// printf-style variants
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})

	// With adds multiple fields to the logger
	With(fields ...Field) Logger

	// WithError attaches err under the "error" key
	WithError(err error) Logger

	// WithComponent tags logs with a component name
	WithComponent(component string) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)

	// GetLevel returns the current minimum log level
	GetLevel() Level

	// Zap exposes the underlying zap logger for libraries that accept one.
	Zap() *zap.Logger

	// Sync flushes buffered entries.
	Sync() error
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*loggerOptions)

type loggerOptions struct {
	level  Level
	format string
	writer io.Writer
}

// BaseLogger implements the Logger interface on top of zap.
type BaseLogger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// NewLogger creates a new logger with the given options. Defaults are
// level=info, format=json, output=stderr.
func NewLogger(options ...LoggerOption) Logger {
	o := loggerOptions{level: InfoLevel, format: "json", writer: os.Stderr}
	for _, option := range options {
		option(&o)
	}

	atom := zap.NewAtomicLevelAt(o.level.zapLevel())
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch o.format {
	case "text", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(o.writer), atom)
	return &BaseLogger{
		zap:   zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: atom,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &BaseLogger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(o *loggerOptions) {
		o.level = level
	}
}

// WithFormat selects "json" or "text" encoding.
func WithFormat(format string) LoggerOption {
	return func(o *loggerOptions) {
		o.format = format
	}
}

// WithWriter sets the destination of encoded entries.
func WithWriter(w io.Writer) LoggerOption {
	return func(o *loggerOptions) {
		if w != nil {
			o.writer = w
		}
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.zap.Fatal(msg, fields...) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.zap.Debug(fmt.Sprintf(msg, args...))
	}
}

func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.zap.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	l.zap.Warn(fmt.Sprintf(msg, args...))
}

func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	l.zap.Error(fmt.Sprintf(msg, args...))
}

// With returns a child logger carrying fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{zap: l.zap.With(fields...), level: l.level}
}

func (l *BaseLogger) WithError(err error) Logger {
	return l.With(Err(err))
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel changes the level of this logger and every logger derived from
// the same root.
func (l *BaseLogger) SetLevel(level Level) { l.level.SetLevel(level.zapLevel()) }

func (l *BaseLogger) GetLevel() Level { return fromZapLevel(l.level.Level()) }

func (l *BaseLogger) Zap() *zap.Logger { return l.zap }

func (l *BaseLogger) Sync() error { return l.zap.Sync() }
