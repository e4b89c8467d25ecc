package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Compile-time interface checks
var _ LibraryLogger = (*Logger)(nil)

// LogFileName is the append-only log kept in the configuration directory.
// Shutdown frequently runs unattended from an init script, so every
// invocation also leaves a trail on disk.
const LogFileName = "chrootctl.log"

// Logger writes leveled messages to a console writer and, optionally, to a
// log file. Debug messages reach the console only when debug is enabled;
// the log file always receives them.
type Logger struct {
	console io.Writer
	file    *os.File
	debug   bool
	mu      sync.Mutex
}

// NewLogger creates a console-only logger writing to w.
func NewLogger(w io.Writer, debug bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{console: w, debug: debug}
}

// OpenFile starts appending log lines to dir/LogFileName.
//
// The directory must exist. A logger whose file cannot be opened keeps
// working console-only; the error is returned so the caller can report it.
func (l *Logger) OpenFile(dir string) error {
	path := filepath.Join(dir, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	return nil
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// SetDebug toggles debug output on the console.
func (l *Logger) SetDebug(debug bool) {
	l.mu.Lock()
	l.debug = debug
	l.mu.Unlock()
}

func (l *Logger) Info(format string, args ...any) {
	l.write("INFO", true, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.write("DEBUG", false, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write("WARN", true, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write("ERROR", true, format, args...)
}

func (l *Logger) write(level string, always bool, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	if always || l.debug {
		fmt.Fprintf(l.console, "[%s] %s\n", level, msg)
	}

	if l.file != nil {
		timestamp := time.Now().Format(time.RFC3339)
		fmt.Fprintf(l.file, "%s [%d] %s: %s\n", timestamp, os.Getpid(), level, msg)
	}
}
