package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message.
// A logger set to INFO shows INFO, WARN, ERROR and SUCCESS, but not DEBUG or TRACE.
type LogLevel int

const (
	TRACE   LogLevel = iota // 0 - every single request
	DEBUG                   // 1 - detailed debugging information
	INFO                    // 2 - general information
	WARN                    // 3 - warnings
	ERROR                   // 4 - errors
	SUCCESS                 // 5 - findings
)

// ParseLevel maps a level name to a LogLevel, falling back to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "success":
		return SUCCESS
	default:
		return INFO
	}
}

// Logger holds the loggers for different levels and a mutex for concurrent writes.
type Logger struct {
	infoLogger    *log.Logger
	warnLogger    *log.Logger
	errorLogger   *log.Logger
	debugLogger   *log.Logger
	traceLogger   *log.Logger
	successLogger *log.Logger
	mu            sync.Mutex
	minLevel      LogLevel
}

// NewLogger creates a Logger writing to stdout and stderr.
func NewLogger(minLevel LogLevel) *Logger {
	return NewWithWriters(minLevel, os.Stdout, os.Stderr)
}

// NewWithWriters creates a Logger with explicit destinations. WARN and ERROR go to errOut,
// everything else to out.
func NewWithWriters(minLevel LogLevel, out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime
	return &Logger{
		infoLogger:    log.New(out, "[INFO] ", flags),
		warnLogger:    log.New(errOut, "[WARN] ", flags),
		errorLogger:   log.New(errOut, "[ERROR] ", flags),
		debugLogger:   log.New(out, "[DEBUG] ", flags),
		traceLogger:   log.New(out, "[TRACE] ", flags),
		successLogger: log.New(out, "[SUCCESS] ", flags),
		minLevel:      minLevel,
	}
}

// Discard returns a Logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithWriters(SUCCESS+1, io.Discard, io.Discard)
}

func (l *Logger) log(level LogLevel, logger *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level >= l.minLevel {
		logger.Printf(format, v...)
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, l.infoLogger, format, v...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, l.warnLogger, format, v...)
}

// Error logs an error message.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, l.errorLogger, format, v...)
}

// Debug logs a debug message. Only active if minLevel is DEBUG.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, l.debugLogger, format, v...)
}

// Trace logs a trace message. Only active if minLevel is TRACE.
func (l *Logger) Trace(format string, v ...interface{}) {
	l.log(TRACE, l.traceLogger, format, v...)
}

// Success logs a success message, typically for found vulnerabilities.
func (l *Logger) Success(format string, v ...interface{}) {
	l.log(SUCCESS, l.successLogger, format, v...)
}

// Report surfaces a finding description. It makes *Logger usable as the scanner's output sink.
func (l *Logger) Report(message string) {
	l.Success("%s", message)
}

// SetMinLevel sets the minimum logging level.
func (l *Logger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}
