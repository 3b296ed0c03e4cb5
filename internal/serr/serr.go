// Package serr defines the structured error kind shared by every subsystem
// of the binding runtime. Each failure carries a stable code, a human
// message and enough context to locate the offending path, ref or binding.
package serr

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
)

// Severity classifies how an error should be treated by callers.
type Severity int

const (
	// SeverityFatal means the operation cannot proceed and the error is
	// surfaced to the caller synchronously.
	SeverityFatal Severity = iota
	// SeverityBatch means one render batch is aborted but the runtime
	// stays usable for subsequent batches.
	SeverityBatch
	// SeverityBinding means a single binding failed to apply; sibling
	// bindings in the same pass are unaffected.
	SeverityBinding
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityBatch:
		return "batch"
	case SeverityBinding:
		return "binding"
	default:
		return "fatal"
	}
}

// Error is the single structured error kind used across the runtime.
type Error struct {
	Code     string         // stable code, e.g. "PTH-101"
	Message  string         // human readable message
	Context  map[string]any // subsystem plus salient identifiers
	Hint     string         // optional remediation hint
	Docs     string         // optional documentation pointer
	Severity Severity
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Option mutates an Error during construction.
type Option func(*Error)

// WithContext attaches one context key/value pair.
func WithContext(key string, value any) Option {
	return func(e *Error) {
		if e.Context == nil {
			e.Context = make(map[string]any)
		}
		e.Context[key] = value
	}
}

// WithHint attaches a remediation hint.
func WithHint(hint string) Option {
	return func(e *Error) { e.Hint = hint }
}

// WithDocs attaches a documentation pointer.
func WithDocs(docs string) Option {
	return func(e *Error) { e.Docs = docs }
}

// WithSeverity overrides the default fatal severity.
func WithSeverity(s Severity) Option {
	return func(e *Error) { e.Severity = s }
}

// WithCause attaches an underlying error.
func WithCause(cause error) Option {
	return func(e *Error) { e.Cause = cause }
}

// New builds a structured error. In debug mode the error is logged with its
// grouped context before being returned, mirroring the behavior users see
// in the browser console of the original runtime.
func New(code, subsystem, message string, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: message,
		Context: map[string]any{"subsystem": subsystem},
	}
	for _, opt := range opts {
		opt(e)
	}
	if Debug() {
		attrs := make([]any, 0, 2*len(e.Context)+4)
		attrs = append(attrs, "code", e.Code, "severity", e.Severity.String())
		for k, v := range e.Context {
			attrs = append(attrs, k, v)
		}
		if e.Hint != "" {
			attrs = append(attrs, "hint", e.Hint)
		}
		slog.Error(e.Message, attrs...)
	}
	return e
}

// Newf builds a structured error with a formatted message.
func Newf(code, subsystem, format string, args ...any) *Error {
	return New(code, subsystem, fmt.Sprintf(format, args...))
}

var debugMode atomic.Bool

// SetDebug toggles debug logging for all structured errors.
func SetDebug(on bool) { debugMode.Store(on) }

// Debug reports whether debug logging is enabled.
func Debug() bool { return debugMode.Load() }

// CodeOf returns the structured code of err, or "" if no *Error is found in
// its unwrap chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
