package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Options controls where and what the logger writes
type Options struct {
	// Path of the log file. Empty means ~/.eino-chatlab/chatlab.log.
	Path string
	// Level is the minimum level written: debug, info, warn or error.
	Level string
	// Console mirrors every line to stderr.
	Console bool
}

// Logger represents the application logger
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	out      io.Writer
	logLevel LogLevel
}

var logger *Logger

// Init initializes the logger. Without a path the log file goes to the
// user directory, like the rest of chatlab's local state.
func Init(opts Options) error {
	logPath := opts.Path
	if logPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		logPath = filepath.Join(homeDir, ".eino-chatlab", "chatlab.log")
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file (append mode, create if doesn't exist)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if opts.Console {
		out = io.MultiWriter(file, os.Stderr)
	}

	if logger != nil {
		Close()
	}
	logger = &Logger{
		file:     file,
		out:      out,
		logLevel: ParseLevel(opts.Level),
	}

	logger.write(INFO, "LOGGER", "chatlab logging initialized")
	logger.write(INFO, "LOGGER", fmt.Sprintf("Log file: %s", logPath))

	return nil
}

// Close closes the log file
func Close() error {
	if logger != nil && logger.file != nil {
		logger.write(INFO, "LOGGER", "chatlab logging shutdown")
		err := logger.file.Close()
		logger = nil
		return err
	}
	return nil
}

// Debug logs a debug message
func Debug(category, message string) {
	logger.write(DEBUG, category, message)
}

// Info logs an info message
func Info(category, message string) {
	logger.write(INFO, category, message)
}

// Warn logs a warning message
func Warn(category, message string) {
	logger.write(WARN, category, message)
}

// Error logs an error message
func Error(category, message string) {
	logger.write(ERROR, category, message)
}

func (l *Logger) write(level LogLevel, category, message string) {
	if l == nil {
		// Fallback to console if logger not initialized
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", levelString(level), category, message)
		return
	}

	if level < l.logLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	logLine := fmt.Sprintf("[%s] [%s] %s: %s\n", timestamp, levelString(level), category, message)

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, logLine)
	l.file.Sync() // Ensure immediate write to disk
}

// ParseLevel maps a config string to a LogLevel, INFO when unknown
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// levelString converts LogLevel to string
func levelString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// GetLogPath returns the current log file path
func GetLogPath() string {
	if logger == nil {
		return ""
	}
	return logger.file.Name()
}
