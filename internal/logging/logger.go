// Package logging provides config-driven categorized file-based logging for testgen.
// Logs are written to .testgen/logs/ with separate files per category.
// Logging is controlled by logging.debug_mode in .testgen/config.yaml - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, configuration
	CategoryScan     Category = "scan"     // Source tree walking
	CategoryExtract  Category = "extract"  // Descriptor extraction
	CategoryGenerate Category = "generate" // Template selection and rendering
	CategoryStore    Category = "store"    // Artifact writes, ledger
	CategoryWatch    Category = "watch"    // fsnotify watcher
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// StructuredLogEntry is one JSON log line.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`  // Unix milliseconds
	Category  string                 `json:"cat"` // Log category
	Level     string                 `json:"lvl"` // debug/info/warn/error
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    Options
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory for the workspace.
// Should be called once at startup; calling it again replaces the settings.
func Initialize(ws string, opts Options) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	configMu.Lock()
	workspace = ws
	logsDir = filepath.Join(workspace, ".testgen", "logs")
	config = opts
	logLevel = parseLevel(opts.Level)
	configMu.Unlock()

	if !opts.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== testgen logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", opts.Level)
	if len(opts.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// LogsDir returns the directory log files are written to.
func LogsDir() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return logsDir
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	dir := LogsDir()
	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level string, threshold int, format string, args ...interface{}) {
	if l.logger == nil || logLevel > threshold {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if IsJSONFormat() {
		l.logJSON(level, msg, nil)
		return
	}
	l.logger.Printf("[%s] %s", levelTag(level), msg)
}

func levelTag(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "warn":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l *Logger) logJSON(level, msg string, fields map[string]interface{}) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", levelTag(level), msg)
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write("debug", LevelDebug, format, args...)
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("info", LevelInfo, format, args...)
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("warn", LevelWarn, format, args...)
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("error", LevelError, format, args...)
}

// StructuredLog writes a log entry with custom fields
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	if IsJSONFormat() {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", levelTag(level), msg, fields)
}

// IsJSONFormat returns whether JSON logging is enabled
func IsJSONFormat() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.JSONFormat
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Scan logs to the scan category
func Scan(format string, args ...interface{}) {
	Get(CategoryScan).Info(format, args...)
}

// ScanDebug logs debug to the scan category
func ScanDebug(format string, args ...interface{}) {
	Get(CategoryScan).Debug(format, args...)
}

// Extract logs to the extract category
func Extract(format string, args ...interface{}) {
	Get(CategoryExtract).Info(format, args...)
}

// ExtractDebug logs debug to the extract category
func ExtractDebug(format string, args ...interface{}) {
	Get(CategoryExtract).Debug(format, args...)
}

// Generate logs to the generate category
func Generate(format string, args ...interface{}) {
	Get(CategoryGenerate).Info(format, args...)
}

// GenerateDebug logs debug to the generate category
func GenerateDebug(format string, args ...interface{}) {
	Get(CategoryGenerate).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}
