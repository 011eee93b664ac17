package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type output struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	redact bool
}

var out = &output{w: os.Stderr, level: INFO, redact: true}

// SetLevel sets the minimum level for every logger.
func SetLevel(l Level) {
	out.mu.Lock()
	out.level = l
	out.mu.Unlock()
}

// SetRedactSecrets enables or disables secret redaction.
func SetRedactSecrets(r bool) {
	out.mu.Lock()
	out.redact = r
	out.mu.Unlock()
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	out.mu.Lock()
	out.w = w
	out.mu.Unlock()
}

// Logger writes structured JSON entries tagged with a component name.
type Logger struct {
	component string
}

// New returns a logger that adds a component field to every entry.
func New(component string) *Logger {
	return &Logger{component: component}
}

// Debug emits a DEBUG-level structured log entry.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

var root = &Logger{}

// Debug emits a DEBUG-level entry without a component.
func Debug(msg string, fields ...interface{}) { root.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry without a component.
func Info(msg string, fields ...interface{}) { root.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry without a component.
func Warn(msg string, fields ...interface{}) { root.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry without a component.
func Error(msg string, fields ...interface{}) { root.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	out.mu.Lock()
	defer out.mu.Unlock()
	if level < out.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	if l != nil && l.component != "" {
		entry["component"] = l.component
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if out.redact {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(out.w, string(data))
}
