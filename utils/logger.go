package utils

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
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

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
}

// Logger is a structured logger writing JSON or text lines to stdout.
type Logger struct {
	level   LogLevel
	format  string // "json" or "text"
	traceID string
	source  string
	context map[string]interface{}
}

// NewLogger creates a new logger instance
func NewLogger(level, format string) *Logger {
	if format != "json" && format != "text" {
		format = "json"
	}
	return &Logger{
		level:  parseLogLevel(level),
		format: format,
	}
}

// parseLogLevel parses string log level to LogLevel enum
func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// WithTraceID returns a logger that stamps entries with the trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	clone := l.clone()
	clone.traceID = traceID
	return clone
}

// WithSource returns a logger that stamps entries with a source label.
func (l *Logger) WithSource(source string) *Logger {
	clone := l.clone()
	clone.source = source
	return clone
}

// WithContext returns a logger carrying additional context fields.
func (l *Logger) WithContext(context map[string]interface{}) *Logger {
	clone := l.clone()
	for k, v := range context {
		clone.context[k] = v
	}
	return clone
}

func (l *Logger) clone() *Logger {
	context := make(map[string]interface{}, len(l.context))
	for k, v := range l.context {
		context[k] = v
	}
	return &Logger{
		level:   l.level,
		format:  l.format,
		traceID: l.traceID,
		source:  l.source,
		context: context,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.log(DEBUG, message, "", context...)
}

// Info logs an info message
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.log(INFO, message, "", context...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.log(WARN, message, "", context...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	errorMsg := ""
	if err != nil {
		errorMsg = err.Error()
	}
	l.log(ERROR, message, errorMsg, context...)
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, message, errorMsg string, context ...map[string]interface{}) {
	if level < l.level {
		return
	}

	// Caller file:line, trimmed to the bare filename
	_, file, line, ok := runtime.Caller(2)
	if ok {
		if idx := strings.LastIndex(file, "/"); idx != -1 {
			file = file[idx+1:]
		}
	}

	merged := make(map[string]interface{}, len(l.context))
	for k, v := range l.context {
		merged[k] = v
	}
	for _, ctx := range context {
		for k, v := range ctx {
			merged[k] = v
		}
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		TraceID:   l.traceID,
		Source:    l.source,
		Context:   merged,
		Error:     errorMsg,
		File:      file,
		Line:      line,
	}

	if l.format == "json" {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Printf("error marshaling log entry: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Println(formatTextEntry(entry))
}

// formatTextEntry renders a log entry in human-readable text format
func formatTextEntry(entry LogEntry) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("[%s] %s: %s",
		entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Level, entry.Message))

	if entry.TraceID != "" {
		out.WriteString(fmt.Sprintf(" [trace_id=%s]", entry.TraceID))
	}
	if entry.Source != "" {
		out.WriteString(fmt.Sprintf(" [source=%s]", entry.Source))
	}
	if entry.File != "" && entry.Line > 0 {
		out.WriteString(fmt.Sprintf(" [%s:%d]", entry.File, entry.Line))
	}
	if entry.Error != "" {
		out.WriteString(fmt.Sprintf(" [error=%s]", entry.Error))
	}
	if len(entry.Context) > 0 {
		contextJSON, _ := json.Marshal(entry.Context)
		out.WriteString(fmt.Sprintf(" [context=%s]", string(contextJSON)))
	}
	return out.String()
}

// Global logger instance
var globalLogger *Logger

// InitLogger initializes the global logger
func InitLogger(level, format string) {
	globalLogger = NewLogger(level, format)
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger("info", "json")
	}
	return globalLogger
}
