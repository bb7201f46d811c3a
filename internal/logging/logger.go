package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

type contextKey string

const runIDKey contextKey = "run_id"

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
	closer io.Closer
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
	// MaxSizeMB and MaxBackups control rotation of LogFile
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", config.Format)
	}

	logger.SetLevel(toLogrusLevel(config.Level))

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	l := &Logger{
		logger: logger,
		level:  config.Level,
	}

	if config.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", config.LogFile, err)
		}

		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := config.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}

		rotator := &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(output, rotator))
		l.closer = rotator
	}

	return l, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stderr,
		Format: "text",
	})
	return logger
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

// Close releases the rotated log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// WithContext returns a logger entry carrying the run id from ctx, if any
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)
	if runID := GetRunIDFromContext(ctx); runID != "" {
		entry = entry.WithField(string(runIDKey), runID)
	}
	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogConnectionProbe logs the outcome of a connectivity probe
func (l *Logger) LogConnectionProbe(ctx context.Context, identifier, host string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  "connection_probe",
		"connection": identifier,
		"host":       host,
		"duration":   duration.String(),
		"success":    success,
	}

	entry := l.WithContext(ctx).WithFields(fields)
	if err != nil {
		entry.WithField("error", err.Error()).Debug("Connection probe failed")
		return
	}
	entry.Debug("Connection probe succeeded")
}

// LogDumpAttempt logs the result of one dump
func (l *Logger) LogDumpAttempt(ctx context.Context, identifier, path string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "dump",
		"connection":  identifier,
		"backup_path": path,
		"duration":    duration.String(),
		"success":     success,
	}

	entry := l.WithContext(ctx).WithFields(fields)
	switch {
	case err != nil:
		entry.WithField("error", err.Error()).Error("Dump failed")
	case !success:
		entry.Warn("Dump reported an error")
	default:
		entry.Info("Dump completed")
	}
}

// LogCommand logs an external command line with secrets masked
func (l *Logger) LogCommand(ctx context.Context, name string, args []string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": "exec",
		"command":   name,
		"args":      strings.Join(SanitizeArgs(args), " "),
	}).Debug("Executing command")
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(toLogrusLevel(level))
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet, LogLevelNormal, LogLevelVerbose, LogLevelDebug:
		return l.logger.IsLevelEnabled(toLogrusLevel(level))
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(ctx context.Context, operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.WithContext(ctx).WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.WithContext(ctx).WithFields(logFields).Error("Operation failed")
			return
		}
		logFields["success"] = true
		l.WithContext(ctx).WithFields(logFields).Info("Operation completed")
	}
}

// ContextWithRunID returns a context carrying the given run id
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunIDFromContext extracts the run id from context
func GetRunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// SanitizeArgs masks password values in a command line
func SanitizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = sanitizeArg(arg)
	}
	return out
}

func sanitizeArg(arg string) string {
	lower := strings.ToLower(arg)
	for _, prefix := range []string{"--password=", "pgpassword=", "password="} {
		if strings.HasPrefix(lower, prefix) {
			return arg[:len(prefix)] + "***"
		}
	}
	// mysql short form: -psecret
	if strings.HasPrefix(arg, "-p") && len(arg) > 2 {
		return "-p***"
	}
	return arg
}
