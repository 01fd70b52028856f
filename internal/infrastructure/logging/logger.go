// Package logging provides a wrapper around zap for structured logging
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger providing a simplified API
type Logger struct {
	logger *zap.Logger
}

// Fields is a type alias for key-value pairs
type Fields map[string]interface{}

// LogLevel represents the log severity level
type LogLevel string

// Available log levels
const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// ParseLevel converts a level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(name))); level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return level, nil
	case "":
		return InfoLevel, nil
	default:
		return "", fmt.Errorf("unknown log level %q", name)
	}
}

// Config represents the logging configuration
type Config struct {
	Level         LogLevel
	Development   bool
	OutputPaths   []string
	InitialFields Fields
}

// DefaultConfig returns a default configuration for the logger.
// Logs go to stderr so stdout stays free for command output.
func DefaultConfig() Config {
	return Config{
		Level:       InfoLevel,
		Development: false,
		OutputPaths: []string{"stderr"},
	}
}

// DevelopmentConfig returns a development configuration for the logger
func DevelopmentConfig() Config {
	return Config{
		Level:       DebugLevel,
		Development: true,
		OutputPaths: []string{"stderr"},
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a new logger with the given configuration
func New(config Config) (*Logger, error) {
	outputs := config.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(config.Level.zapLevel()),
		Development:       config.Development,
		DisableCaller:     !config.Development,
		DisableStacktrace: !config.Development,
		Encoding:          "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	if config.InitialFields != nil {
		zapConfig.InitialFields = make(map[string]interface{}, len(config.InitialFields))
		for k, v := range config.InitialFields {
			zapConfig.InitialFields[k] = v
		}
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(zapLogger), nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{logger: z}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

// With returns a logger with the given fields
func (l *Logger) With(fields Fields) *Logger {
	if len(fields) == 0 {
		return l
	}
	return FromZap(l.logger.With(toZap(fields)...))
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return FromZap(l.logger.Named(name))
}

func toZap(fields Fields) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			zapFields = append(zapFields, zap.NamedError(k, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}

func first(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	return toZap(fields[0])
}

// Debug logs a message at debug level with optional fields
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.logger.Debug(msg, first(fields)...)
}

// Info logs a message at info level with optional fields
func (l *Logger) Info(msg string, fields ...Fields) {
	l.logger.Info(msg, first(fields)...)
}

// Warn logs a message at warn level with optional fields
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.logger.Warn(msg, first(fields)...)
}

// Error logs a message at error level with optional fields
func (l *Logger) Error(msg string, fields ...Fields) {
	l.logger.Error(msg, first(fields)...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}
