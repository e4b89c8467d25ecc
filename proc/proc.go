// Package proc signals and inspects chroot session processes by PID.
//
// Sessions are recorded by PID only, so a PID may have exited (or been
// reused by an unrelated process) by the time shutdown runs. Terminate
// treats a vanished process as done and a process it may not signal as a
// warning; neither stops a shutdown.
package proc

import (
	"errors"
	"fmt"

	"chrootctl/log"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"
)

// ErrInvalidPID is returned for PIDs that would address a process group
// or every process (kill(2) semantics for 0 and negative values).
var ErrInvalidPID = errors.New("invalid process ID")

// Result is the outcome of one Terminate call.
type Result struct {
	PID int

	// Signalled is true when SIGTERM was delivered.
	Signalled bool

	// Err is set for failures other than "no such process" and
	// "operation not permitted", which are logged instead.
	Err error
}

// Terminator sends the termination signal to one PID.
type Terminator func(pid int, logger log.LibraryLogger) Result

// Terminate sends SIGTERM to pid without waiting for it to exit.
//
// ESRCH (already gone) is logged at Debug and EPERM (not ours, or PID
// reused) at Warn; both yield Signalled=false with a nil Err.
func Terminate(pid int, logger log.LibraryLogger) Result {
	logger = log.OrNoOp(logger)
	res := Result{PID: pid}

	if pid <= 0 {
		res.Err = fmt.Errorf("%w: %d", ErrInvalidPID, pid)
		return res
	}

	err := unix.Kill(pid, unix.SIGTERM)
	switch {
	case err == nil:
		logger.Debug("sent SIGTERM to process %d", pid)
		res.Signalled = true
	case errors.Is(err, unix.ESRCH):
		logger.Debug("process %d no longer exists", pid)
	case errors.Is(err, unix.EPERM):
		logger.Warn("not permitted to signal process %d", pid)
	default:
		res.Err = fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return res
}

// Alive reports whether a process with pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
