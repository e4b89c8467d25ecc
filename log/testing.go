package log

import (
	"fmt"
	"strings"
	"sync"
)

// Level names recorded by MemoryLogger.
const (
	LevelInfo  = "INFO"
	LevelDebug = "DEBUG"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// MemoryLogger records every message for later inspection in tests.
// Safe for concurrent use.
type MemoryLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage is one captured entry
type LogMessage struct {
	Level   string
	Message string
}

// NewMemoryLogger creates an empty MemoryLogger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Info(format string, args ...any)  { m.record(LevelInfo, format, args...) }
func (m *MemoryLogger) Debug(format string, args ...any) { m.record(LevelDebug, format, args...) }
func (m *MemoryLogger) Warn(format string, args ...any)  { m.record(LevelWarn, format, args...) }
func (m *MemoryLogger) Error(format string, args ...any) { m.record(LevelError, format, args...) }

func (m *MemoryLogger) record(level, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Messages returns a copy of all captured messages
func (m *MemoryLogger) Messages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// HasMessage reports whether any message contains substring
func (m *MemoryLogger) HasMessage(substring string) bool {
	return m.HasMessageWithLevel("", substring)
}

// HasMessageWithLevel reports whether a message at level contains substring.
// An empty level matches any level.
func (m *MemoryLogger) HasMessageWithLevel(level, substring string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if (level == "" || msg.Level == level) && strings.Contains(msg.Message, substring) {
			return true
		}
	}
	return false
}

// CountByLevel returns the number of messages at level
func (m *MemoryLogger) CountByLevel(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Level == level {
			n++
		}
	}
	return n
}

// String formats all messages, one per line (handy in t.Log output)
func (m *MemoryLogger) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for i, msg := range m.messages {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, msg.Level, msg.Message)
	}
	return sb.String()
}
