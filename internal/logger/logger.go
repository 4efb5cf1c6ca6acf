// Package logger is a leveled, daily-rotated file logger. The package-level
// functions are no-ops until Init is called, so library code can log freely.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel defines log level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

const (
	defaultFilePrefix = "lyricsleuth"
	defaultMaxDays    = 7
	dateLayout        = "2006-01-02"
)

func (l LogLevel) String() string {
	switch l {
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

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a LogLevel.
// Unknown values map to INFO.
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

// Config logger configuration
type Config struct {
	LogDir     string   // Log directory
	FilePrefix string   // Log file name prefix, defaults to "lyricsleuth"
	Level      LogLevel // Log level
	MaxDays    int      // Days of files kept, counting today
	ConsoleOut bool     // Echo to stderr; stdout is reserved for results and MCP
}

// Logger writes one file per day named <prefix>-YYYY-MM-DD.log. It is safe
// for concurrent use; the engine logs from its fetch workers.
type Logger struct {
	level   LogLevel
	dir     string
	prefix  string
	maxDays int
	console io.Writer // nil disables console echo
	now     func() time.Time

	mu   sync.Mutex
	file *os.File
	date string
}

var defaultLogger atomic.Pointer[Logger]

// Init installs the default logger. Later calls are ignored.
func Init(cfg Config) error {
	if defaultLogger.Load() != nil {
		return nil
	}
	l, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	if !defaultLogger.CompareAndSwap(nil, l) {
		l.Close()
	}
	return nil
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = defaultMaxDays
	}
	if strings.TrimSpace(cfg.FilePrefix) == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		level:   cfg.Level,
		dir:     cfg.LogDir,
		prefix:  cfg.FilePrefix,
		maxDays: cfg.MaxDays,
		now:     time.Now,
	}
	if cfg.ConsoleOut {
		l.console = os.Stderr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.rotate(l.now()); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) fileName(date string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%s.log", l.prefix, date))
}

// rotate switches to the file for now's date. Caller holds mu.
func (l *Logger) rotate(now time.Time) error {
	date := now.Format(dateLayout)
	if l.file != nil && l.date == date {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	f, err := os.OpenFile(l.fileName(date), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = f
	l.date = date
	l.prune(now)
	return nil
}

// prune removes files dated before the retention window. Files whose name
// does not parse as a date are left alone.
func (l *Logger) prune(now time.Time) {
	files, err := filepath.Glob(filepath.Join(l.dir, l.prefix+"-*.log"))
	if err != nil {
		return
	}
	today, _ := time.Parse(dateLayout, now.Format(dateLayout))
	cutoff := today.AddDate(0, 0, -(l.maxDays - 1))

	for _, f := range files {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), l.prefix+"-"), ".log")
		date, err := time.Parse(dateLayout, stamp)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			os.Remove(f)
		}
	}
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}
	now := l.now()
	line := fmt.Sprintf("[%s] [%s] %s\n", now.Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.rotate(now); err != nil {
		fmt.Fprintf(os.Stderr, "Logger rotation error: %v\n", err)
	} else {
		l.file.WriteString(line)
	}
	if l.console != nil {
		io.WriteString(l.console, line)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...any) { l.log(INFO, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) { l.log(WARN, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

// Close closes the current file. Logging after Close reopens it.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Debug logs a debug message using the default logger
func Debug(format string, args ...any) {
	if l := defaultLogger.Load(); l != nil {
		l.Debug(format, args...)
	}
}

// Info logs an info message using the default logger
func Info(format string, args ...any) {
	if l := defaultLogger.Load(); l != nil {
		l.Info(format, args...)
	}
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...any) {
	if l := defaultLogger.Load(); l != nil {
		l.Warn(format, args...)
	}
}

// Error logs an error message using the default logger
func Error(format string, args ...any) {
	if l := defaultLogger.Load(); l != nil {
		l.Error(format, args...)
	}
}

// Close closes the default logger
func Close() error {
	if l := defaultLogger.Load(); l != nil {
		return l.Close()
	}
	return nil
}

// GetDefault returns the default logger, nil before Init.
func GetDefault() *Logger {
	return defaultLogger.Load()
}
