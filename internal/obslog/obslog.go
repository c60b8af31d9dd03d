// Package obslog provides the standardized structured-logging helper shared
// by every lair-keystore package, generalized from a per-package helper of
// the same shape into one that takes its package name as a parameter.
package obslog

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger accumulates structured fields for one function's logging calls.
type Logger struct {
	function string
	fields   logrus.Fields
}

// New creates a Logger scoped to pkg (e.g. "entry", "ipc") and function.
func New(pkg, function string) *Logger {
	return &Logger{
		function: function,
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// WithCaller records the call site of the caller of this method.
func (l *Logger) WithCaller() *Logger {
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			l.fields["caller"] = fmt.Sprintf("%s:%d", file, line)
			l.fields["caller_func"] = name
		}
	}
	return l
}

// WithField adds a single field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	l.fields[key] = value
	return l
}

// WithFields merges fields into the logger's accumulated set.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithError records an error, its category, and the operation that failed.
func (l *Logger) WithError(err error, errorType, operation string) *Logger {
	l.fields["error"] = err.Error()
	l.fields["error_type"] = errorType
	l.fields["operation"] = operation
	return l
}

// Entry logs function entry at debug level.
func (l *Logger) Entry(message string) { logrus.WithFields(l.fields).Debug("Function entry: " + message) }

// Exit logs function exit at debug level.
func (l *Logger) Exit() { logrus.WithFields(l.fields).Debug("Function exit: " + l.function) }

// Debug logs a debug message.
func (l *Logger) Debug(message string) { logrus.WithFields(l.fields).Debug(message) }

// Info logs an info message.
func (l *Logger) Info(message string) { logrus.WithFields(l.fields).Info(message) }

// Warn logs a warning message.
func (l *Logger) Warn(message string) { logrus.WithFields(l.fields).Warn(message) }

// Error logs an error message.
func (l *Logger) Error(message string) { logrus.WithFields(l.fields).Error(message) }

// KeyPreview renders the first few bytes of sensitive material as a hex
// preview field, for logging without exposing the full key.
func KeyPreview(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		n := 8
		if len(data) < n {
			n = len(data)
		}
		preview = fmt.Sprintf("%x", data[:n])
		if len(data) > n {
			preview += "..."
		}
	}
	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}

// OperationFields builds the standard {operation, status} field set used
// across the codebase's structured log lines.
func OperationFields(operation, status string, additional ...logrus.Fields) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"status":    status,
	}
	for _, extra := range additional {
		for k, v := range extra {
			fields[k] = v
		}
	}
	return fields
}
