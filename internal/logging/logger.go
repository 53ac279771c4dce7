// Package logging provides the category-based structured log sink for promptpilot.
// Every pipeline component logs through a per-category logger; categories can be
// enabled or disabled individually, and the whole sink is a silent no-op until
// Configure is called with Enabled=true.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup/initialization
	CategoryAgent       Category = "agent"       // Orchestrator pipeline stages
	CategorySession     Category = "session"     // Session lifecycle and bookkeeping
	CategoryPlanner     Category = "planner"     // Workflow plan creation
	CategoryPrompt      Category = "prompt"      // Prompt synthesis
	CategoryExecution   Category = "execution"   // Provider calls, retries, backoff
	CategoryRecovery    Category = "recovery"    // Error-recovery strategy runs
	CategoryQuality     Category = "quality"     // QA pipeline checks and reports
	CategoryLearning    Category = "learning"    // Learning store writes and insights
	CategoryMemory      Category = "memory"      // Session memory reads/writes
	CategoryAPI         Category = "api"         // Raw provider API traffic
	CategoryPerformance Category = "performance" // Timing metrics, slow operations
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls the sink. Zero value = disabled (all logging is a no-op).
type Options struct {
	Enabled    bool
	Dir        string          // Log directory; empty with Enabled=true logs to stderr
	Level      string          // debug/info/warn/error (default info)
	JSONFormat bool            // Structured JSON lines instead of text
	Categories map[string]bool // nil = all categories enabled
}

// StructuredLogEntry is one JSON log line.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger writes to one category's output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	opts     Options
	logLevel = LevelInfo
	loggers  = make(map[Category]*Logger)
)

// Configure sets up the sink. Safe to call more than once; subsequent calls
// close any open log files and start fresh with the new options.
func Configure(o Options) error {
	CloseAll()

	mu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	mu.Unlock()

	if !o.Enabled || o.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	Boot("=== promptpilot logging initialized (dir=%s level=%s) ===", o.Dir, o.Level)
	return nil
}

// IsCategoryEnabled reports whether a category currently produces output.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if !opts.Enabled {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. A no-op logger is
// returned when the sink or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	dir := opts.Dir
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	var out io.Writer = os.Stderr
	var file *os.File
	if dir != "" {
		date := time.Now().Format("2006-01-02")
		logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
			return &Logger{category: category}
		}
		out = f
		file = f
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
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
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) emit(level int, tag, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	mu.RLock()
	minLevel := logLevel
	jsonFormat := opts.JSONFormat
	mu.RUnlock()
	if level < minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat {
		l.logJSON(tag, msg, nil)
		return
	}
	l.logger.Printf("[%s] %s", tag, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, "DEBUG", format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, "WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, "ERROR", format, args...)
}

// StructuredLog writes an entry with custom fields regardless of text/JSON mode.
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	mu.RLock()
	jsonFormat := opts.JSONFormat
	mu.RUnlock()
	if jsonFormat {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
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

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Agent logs to the agent category.
func Agent(format string, args ...interface{}) {
	Get(CategoryAgent).Info(format, args...)
}

// AgentDebug logs debug to the agent category.
func AgentDebug(format string, args ...interface{}) {
	Get(CategoryAgent).Debug(format, args...)
}

// Session logs to the session category.
func Session(format string, args ...interface{}) {
	Get(CategorySession).Info(format, args...)
}

// Planner logs to the planner category.
func Planner(format string, args ...interface{}) {
	Get(CategoryPlanner).Info(format, args...)
}

// Prompt logs to the prompt category.
func Prompt(format string, args ...interface{}) {
	Get(CategoryPrompt).Info(format, args...)
}

// Execution logs to the execution category.
func Execution(format string, args ...interface{}) {
	Get(CategoryExecution).Info(format, args...)
}

// ExecutionDebug logs debug to the execution category.
func ExecutionDebug(format string, args ...interface{}) {
	Get(CategoryExecution).Debug(format, args...)
}

// Recovery logs to the recovery category.
func Recovery(format string, args ...interface{}) {
	Get(CategoryRecovery).Info(format, args...)
}

// Quality logs to the quality category.
func Quality(format string, args ...interface{}) {
	Get(CategoryQuality).Info(format, args...)
}

// Learning logs to the learning category.
func Learning(format string, args ...interface{}) {
	Get(CategoryLearning).Info(format, args...)
}

// Memory logs to the memory category.
func Memory(format string, args ...interface{}) {
	Get(CategoryMemory).Info(format, args...)
}

// API logs to the api category.
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// Performance logs to the performance category.
func Performance(format string, args ...interface{}) {
	Get(CategoryPerformance).Info(format, args...)
}
