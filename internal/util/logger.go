package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging backed by zerolog.
type Logger struct {
	mu       sync.Mutex
	zl       zerolog.Logger
	file     *os.File
	filePath string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger(zerolog.InfoLevel, "")
	})
	return defaultLogger
}

// NewLogger creates a new logger with the specified level and optional file path.
// Console output goes to stdout; the file, when given, receives JSON lines.
func NewLogger(level zerolog.Level, filePath string) *Logger {
	l := &Logger{filePath: filePath}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"},
	}

	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				l.file = file
				writers = append(writers, file)
			}
		}
	}

	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return l
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Level(level)
}

// ParseLevel parses a string log level, falling back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "warning":
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Close closes the log file if open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

// WithComponent returns a structured logger tagged with a component name.
func (l *Logger) WithComponent(name string) zerolog.Logger {
	return l.Zerolog().With().Str("component", name).Logger()
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Debug().Msgf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Info().Msgf(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Warn().Msgf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	zl := l.Zerolog()
	zl.Error().Msgf(format, args...)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// WithComponent returns a component logger from the default logger.
func WithComponent(name string) zerolog.Logger {
	return GetLogger().WithComponent(name)
}

// InitLogger initializes the default logger with config.
func InitLogger(level string, filePath string) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	once.Do(func() {
		defaultLogger = NewLogger(ParseLevel(level), filePath)
	})
}
