package environment

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"chrootctl/log"

	"golang.org/x/term"
)

// ExecCommand describes the session command: chroot(8) invoked on the base
// directory with the user's shell.
type ExecCommand struct {
	// Chroot is the chroot(8) binary.
	Chroot string

	// BaseDir is the directory passed to chroot.
	BaseDir string

	// Shell is the program started inside the chroot.
	Shell string

	// Stdin, Stdout and Stderr default to the invoking process's streams
	// when nil, so the shell shares the caller's terminal.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Args returns the argument vector passed to Chroot.
func (c *ExecCommand) Args() []string {
	return []string{c.BaseDir, c.Shell}
}

// ExecResult contains the result of a finished session.
type ExecResult struct {
	// ExitCode is the session's exit code. A session killed by a signal
	// reports 128+signal, as shells do.
	ExitCode int

	// Duration is how long the session ran.
	Duration time.Duration
}

// Process is a started session.
type Process interface {
	// PID returns the operating system process ID.
	PID() int

	// Wait blocks until the session exits. A non-zero exit is reported in
	// ExecResult with a nil error; the error is reserved for failures to
	// wait at all.
	Wait() (*ExecResult, error)
}

// Launcher starts sessions.
type Launcher interface {
	Start(ctx context.Context, cmd *ExecCommand) (Process, error)
}

// ExecLauncher starts sessions with os/exec.
type ExecLauncher struct {
	logger log.LibraryLogger
}

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher(logger log.LibraryLogger) *ExecLauncher {
	return &ExecLauncher{logger: log.OrNoOp(logger)}
}

// Compile-time interface check
var _ Launcher = (*ExecLauncher)(nil)

// Start launches cmd in the foreground. Cancelling ctx kills the session.
func (l *ExecLauncher) Start(ctx context.Context, cmd *ExecCommand) (Process, error) {
	execCmd := exec.CommandContext(ctx, cmd.Chroot, cmd.Args()...)
	execCmd.Stdin = cmd.Stdin
	execCmd.Stdout = cmd.Stdout
	execCmd.Stderr = cmd.Stderr
	if execCmd.Stdin == nil {
		execCmd.Stdin = os.Stdin
	}
	if execCmd.Stdout == nil {
		execCmd.Stdout = os.Stdout
	}
	if execCmd.Stderr == nil {
		execCmd.Stderr = os.Stderr
	}

	if f, ok := execCmd.Stdin.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		l.logger.Debug("stdin is not a terminal, %s runs non-interactively", cmd.Shell)
	}

	l.logger.Debug("starting %s %v", cmd.Chroot, cmd.Args())
	if err := execCmd.Start(); err != nil {
		return nil, &ErrExecutionFailed{Op: "start", Command: cmd.Chroot, Err: err}
	}
	return &execProcess{cmd: execCmd, started: time.Now()}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	started time.Time
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (*ExecResult, error) {
	err := p.cmd.Wait()
	result := &ExecResult{Duration: time.Since(p.started)}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitCode(exitErr)
		return result, nil
	}

	result.ExitCode = -1
	return result, &ErrExecutionFailed{Op: "wait", Command: p.cmd.Path, Err: err}
}

func exitCode(exitErr *exec.ExitError) int {
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}
