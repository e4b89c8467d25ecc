// Package log provides the logging surface shared by every chrootctl package.
//
// Library packages (registry, mount, environment, service) accept a
// LibraryLogger and never write to the terminal directly. The CLI wires a
// Logger; tests wire a MemoryLogger.
package log

// LibraryLogger is the minimal printf-style logging interface consumed by
// library packages.
type LibraryLogger interface {
	// Info logs informational messages (e.g., "mounted proc")
	Info(format string, args ...any)

	// Debug logs diagnostic messages, hidden unless debug output is enabled
	Debug(format string, args ...any)

	// Warn logs non-fatal issues (e.g., an unmount that failed during teardown)
	Warn(format string, args ...any)

	// Error logs failures
	Error(format string, args ...any)
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

func (NoOpLogger) Info(format string, args ...any)  {}
func (NoOpLogger) Debug(format string, args ...any) {}
func (NoOpLogger) Warn(format string, args ...any)  {}
func (NoOpLogger) Error(format string, args ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l LibraryLogger) LibraryLogger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
