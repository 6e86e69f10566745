// Package logger provides process-wide structured logging built on log/slog.
//
// The logger is configured once at startup via Init and used through the
// package-level Debug/Info/Warn/Error functions. Output is colorized text
// when attached to a terminal and JSON when configured for machines.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`   // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format" yaml:"format"` // text, json
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	slogger = slog.New(NewColorTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}, isTerminal(os.Stdout.Fd())))
	outFile *os.File
)

// parseLevel maps a config level string to a slog.Level.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// Init initializes the logger with the given configuration.
// Output can be "stdout", "stderr", or a file path.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var out io.Writer
	var file *os.File
	color := false

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
		color = isTerminal(os.Stdout.Fd())
	case "stderr":
		out = os.Stderr
		color = isTerminal(os.Stderr.Fd())
	default:
		file, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log output: %w", err)
		}
		out = file
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = NewColorTextHandler(out, opts, color)
	}

	mu.Lock()
	defer mu.Unlock()
	if outFile != nil {
		outFile.Close()
	}
	outFile = file
	slogger = slog.New(handler)
	return nil
}

// Default returns the current process logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// Debug logs a message at debug level with optional key-value pairs.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs a message at info level with optional key-value pairs.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs a message at warn level with optional key-value pairs.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs a message at error level with optional key-value pairs.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
