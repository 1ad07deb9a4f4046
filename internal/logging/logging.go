// Package logging sets up the application's slog loggers: a structured JSON
// logger on stdout, a human-readable text logger on stderr, and rotating
// per-service file loggers.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init(level slog.Level) {
	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// LevelFromDebug maps the debug setting to a log level.
func LevelFromDebug(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// StructuredLogger returns the JSON logger writing to stdout.
func StructuredLogger() *slog.Logger {
	return structuredLogger
}

// HumanReadableLogger returns the text logger writing to stderr.
func HumanReadableLogger() *slog.Logger {
	return humanReadableLogger
}

// NewFileLogger creates a service-specific slog.Logger writing JSON records to
// a rotating log file. It returns the logger, a close function for the
// underlying writer, and an error if the log directory cannot be created.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(fileHandler).With("service", serviceName)
	closeFunc := func() error {
		return logWriter.Close()
	}

	return logger, closeFunc, nil
}

// ForService returns a service logger backed by logs/<service>.log, falling
// back to the default logger when the file cannot be opened. Most packages
// use this in their init.
func ForService(serviceName string) (*slog.Logger, func() error) {
	logFilePath := filepath.Join("logs", serviceName+".log")
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)

	logger, closeFunc, err := NewFileLogger(logFilePath, serviceName, levelVar)
	if err != nil {
		slog.Warn("failed to initialize service file logger, using default logger",
			"service", serviceName, "path", logFilePath, "error", err)
		return slog.Default().With("service", serviceName), func() error { return nil }
	}
	return logger, closeFunc
}
