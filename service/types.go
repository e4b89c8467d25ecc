package service

import (
	"io"

	"chrootctl/registry"
)

// StartOptions contains options for the Start service.
type StartOptions struct {
	BaseDir  string // Chroot base directory (required)
	HostType string // Host type name (empty = config default)
	Shell    string // Shell started inside the chroot (empty = config default)

	// Session streams; nil inherits the invoking process's streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StartResult contains the results of a Start operation.
type StartResult struct {
	Key       registry.Key // Canonical session key
	PID       int          // Session process ID (0 if never launched)
	SessionID string       // Registry record ID (empty if never registered)
	Mounted   bool         // Whether this session ran the setup sequence
	ExitCode  int          // Session exit code
}

// ShutdownStatus distinguishes a shutdown that reclaimed sessions from one
// that found nothing to do.
type ShutdownStatus int

const (
	StatusNothingToDo ShutdownStatus = iota
	StatusProcessed
)

func (s ShutdownStatus) String() string {
	if s == StatusProcessed {
		return "processed"
	}
	return "nothing to do"
}

// ShutdownOptions contains options for the Shutdown service.
// Empty fields match every key.
type ShutdownOptions struct {
	BaseDir  string
	HostType string
}

// ShutdownResult contains the results of a Shutdown operation.
type ShutdownResult struct {
	Status          ShutdownStatus
	Keys            []registry.Key // Keys that were shut down
	Signalled       int            // Sessions that received SIGTERM
	SignalFailures  int            // Sessions that could not be signalled
	UnmountWarnings []error        // Non-fatal unmount failures, one per key
}

// SessionStatus is one registered session with its liveness.
type SessionStatus struct {
	registry.Session
	Alive bool
}

// KeyStatus describes one key of the registry.
type KeyStatus struct {
	Key       registry.Key
	Sessions  []SessionStatus
	Mounted   []string // Mount targets currently mounted
	Supported bool     // Whether the stored host type is known
}

// StatusResult contains the results of a status query.
type StatusResult struct {
	RegistryPath string
	Exists       bool // Whether the registry file exists
	Keys         []KeyStatus
}

// MigrateResult contains the results of a legacy import.
type MigrateResult struct {
	LegacyFile string // Path of the legacy count file
	Found      bool   // Whether a legacy file was present
	Imported   int    // Sessions imported
}
