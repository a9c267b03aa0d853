package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/killallgit/loom/pkg/config"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger provides a unified logging interface
type Logger struct {
	level       LogLevel
	logger      *log.Logger
	file        *os.File
	initialized bool
}

var defaultLogger *Logger

// Init initializes the logger with configuration from global config
func Init() error {
	if defaultLogger != nil && defaultLogger.initialized {
		return nil // Already initialized
	}

	settings := config.Get()
	level := parseLevel(settings.Logging.Level)
	logFile := settings.Logging.LogFile
	persist := settings.Logging.Persist

	logger, err := New(level, logFile, persist)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaultLogger = logger
	return nil
}

// New creates a new Logger instance
func New(level LogLevel, logFile string, persist bool) (*Logger, error) {
	// Handle log file path resolution
	logPath := logFile
	if !filepath.IsAbs(logPath) {
		// If path is relative, make it relative to settings directory
		logFilename := filepath.Base(logPath)
		logPath = config.BuildSettingsPath(logFilename)
	}

	// Ensure log directory exists
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Handle file clearing/creation based on persist flag
	var file *os.File
	var err error
	if persist {
		// Append to existing file
		file, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	} else {
		// Truncate existing file (clear it)
		file, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create the Go logger with our file as output
	goLogger := log.New(file, "", log.LstdFlags)

	return &Logger{
		level:       level,
		logger:      goLogger,
		file:        file,
		initialized: true,
	}, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// parseLevel converts a string level to LogLevel
func parseLevel(levelStr string) LogLevel {
	switch levelStr {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// shouldLog determines if a message should be logged based on level
func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

// log writes a structured log entry if the level is appropriate
func (l *Logger) log(level LogLevel, component, msg string, keysAndValues ...any) {
	if !l.shouldLog(level) {
		return
	}

	var entry string
	if component != "" {
		entry = fmt.Sprintf("[%s] [%s] %s%s", level.String(), component, msg, formatKeyvals(keysAndValues...))
	} else {
		entry = fmt.Sprintf("[%s] %s%s", level.String(), msg, formatKeyvals(keysAndValues...))
	}
	l.logger.Print(entry)

	// Also write to stderr for errors and fatal messages
	if level >= LevelError {
		fmt.Fprintln(os.Stderr, entry)
	}
}

// formatKeyvals renders alternating key/value pairs as " key=value" suffixes
func formatKeyvals(keysAndValues ...any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		var value any = "(MISSING)"
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fmt.Fprintf(&b, " %s=%v", key, value)
	}
	return b.String()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(LevelDebug, "", msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(LevelInfo, "", msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(LevelWarn, "", msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, "", msg, keysAndValues...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	l.log(LevelFatal, "", msg, keysAndValues...)
	os.Exit(1)
}

// ComponentLogger tags every entry with a component name. Safe to create
// and use before Init; entries are dropped until the default logger exists.
type ComponentLogger struct {
	component string
}

// WithComponent returns a logger that tags entries with the component name
func WithComponent(name string) *ComponentLogger {
	return &ComponentLogger{component: name}
}

// Debug logs a debug message with the component tag
func (c *ComponentLogger) Debug(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(LevelDebug, c.component, msg, keysAndValues...)
}

// Info logs an info message with the component tag
func (c *ComponentLogger) Info(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(LevelInfo, c.component, msg, keysAndValues...)
}

// Warn logs a warning message with the component tag
func (c *ComponentLogger) Warn(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(LevelWarn, c.component, msg, keysAndValues...)
}

// Error logs an error message with the component tag
func (c *ComponentLogger) Error(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(LevelError, c.component, msg, keysAndValues...)
}

// Fatal logs a fatal message with the component tag and exits
func (c *ComponentLogger) Fatal(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		fmt.Fprintf(os.Stderr, "[FATAL] [%s] %s%s\n", c.component, msg, formatKeyvals(keysAndValues...))
		os.Exit(1)
	}
	defaultLogger.log(LevelFatal, c.component, msg, keysAndValues...)
	os.Exit(1)
}

// Package-level convenience functions using the default logger

// Debug logs a debug message using the default logger
func Debug(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Debug(msg, keysAndValues...)
}

// Info logs an info message using the default logger
func Info(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Info(msg, keysAndValues...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Warn(msg, keysAndValues...)
}

// Error logs an error message using the default logger
func Error(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.Error(msg, keysAndValues...)
}

// Fatal logs a fatal message and exits using the default logger
func Fatal(msg string, keysAndValues ...any) {
	if defaultLogger == nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %s%s\n", msg, formatKeyvals(keysAndValues...))
		os.Exit(1)
	}
	defaultLogger.Fatal(msg, keysAndValues...)
}

// SetOutput sets the output writer for the logger (useful for testing)
func SetOutput(w io.Writer) {
	if defaultLogger != nil && defaultLogger.logger != nil {
		defaultLogger.logger.SetOutput(w)
	}
}

// Close closes the default logger
func Close() error {
	if defaultLogger != nil {
		return defaultLogger.Close()
	}
	return nil
}
