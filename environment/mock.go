package environment

import (
	"context"
	"sync"
)

// MockLauncher is a test implementation of Launcher.
//
// MockLauncher records every Start call and hands out fake processes with
// increasing PIDs. Sessions finish as soon as Wait is called, after running
// the optional OnWait hook, which lets a test observe state while a session
// is "running".
//
// Usage example:
//
//	mock := NewMockLauncher()
//	mock.ExitCode = 3
//
//	p, _ := mock.Start(ctx, cmd)
//	res, _ := p.Wait()
//	// res.ExitCode == 3
type MockLauncher struct {
	mu sync.Mutex

	// NextPID is the PID handed to the next started process.
	NextPID int

	// StartCalls records each command passed to Start.
	StartCalls []*ExecCommand

	// StartError makes Start fail.
	StartError error

	// ExitCode and WaitError are returned by every process's Wait.
	ExitCode  int
	WaitError error

	// OnWait runs at the beginning of Wait with the process PID.
	OnWait func(pid int)

	// Waited lists PIDs whose Wait was called.
	Waited []int
}

// NewMockLauncher creates a MockLauncher whose first PID is 1000.
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{NextPID: 1000}
}

// Compile-time interface check
var _ Launcher = (*MockLauncher)(nil)

// Start records cmd and returns a MockProcess.
func (m *MockLauncher) Start(ctx context.Context, cmd *ExecCommand) (Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCalls = append(m.StartCalls, cmd)

	if err := ctx.Err(); err != nil {
		return nil, &ErrExecutionFailed{Op: "start", Command: cmd.Chroot, Err: err}
	}
	if m.StartError != nil {
		return nil, &ErrExecutionFailed{Op: "start", Command: cmd.Chroot, Err: m.StartError}
	}

	pid := m.NextPID
	m.NextPID++
	return &MockProcess{pid: pid, launcher: m}, nil
}

// GetStartCallCount returns the number of times Start was called.
func (m *MockLauncher) GetStartCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.StartCalls)
}

// GetLastStartCall returns the most recent Start call, or nil if none.
func (m *MockLauncher) GetLastStartCall() *ExecCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.StartCalls) == 0 {
		return nil
	}
	return m.StartCalls[len(m.StartCalls)-1]
}

// MockProcess is a process started by MockLauncher.
type MockProcess struct {
	pid      int
	launcher *MockLauncher
}

func (p *MockProcess) PID() int {
	return p.pid
}

// Wait runs the launcher's OnWait hook and returns its configured result.
func (p *MockProcess) Wait() (*ExecResult, error) {
	p.launcher.mu.Lock()
	hook := p.launcher.OnWait
	p.launcher.mu.Unlock()

	if hook != nil {
		hook(p.pid)
	}

	p.launcher.mu.Lock()
	defer p.launcher.mu.Unlock()
	p.launcher.Waited = append(p.launcher.Waited, p.pid)
	if p.launcher.WaitError != nil {
		return &ExecResult{ExitCode: -1}, p.launcher.WaitError
	}
	return &ExecResult{ExitCode: p.launcher.ExitCode}, nil
}
