package structive

import (
	"github.com/structive/structive-go/internal/serr"
)

// Error is the structured error kind every subsystem of the runtime returns:
// a stable code ("PTH-101", "LIST-202", ...), a message, a context map and an
// optional cause reachable through errors.Unwrap.
type Error = serr.Error

// Severity classifies how an error should be treated by callers.
type Severity = serr.Severity

const (
	// SeverityFatal means the operation cannot proceed.
	SeverityFatal = serr.SeverityFatal
	// SeverityBatch means one render batch was aborted but the runtime
	// stays alive.
	SeverityBatch = serr.SeverityBatch
	// SeverityBinding means a single binding failed to apply.
	SeverityBinding = serr.SeverityBinding
)

// CodeOf returns the structured code of err, or "" when err carries none.
func CodeOf(err error) string { return serr.CodeOf(err) }

// SetDebug toggles grouped debug logging of structured errors.
func SetDebug(on bool) { serr.SetDebug(on) }
