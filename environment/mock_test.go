package environment

import (
	"context"
	"errors"
	"testing"
)

func TestMockLauncher_Interface(t *testing.T) {
	var _ Launcher = (*MockLauncher)(nil)
	var _ Process = (*MockProcess)(nil)
}

func TestMockLauncher_PIDsIncrease(t *testing.T) {
	mock := NewMockLauncher()
	cmd := &ExecCommand{Chroot: "chroot", BaseDir: "/srv/c", Shell: "/bin/sh"}

	p1, err := mock.Start(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := mock.Start(context.Background(), cmd)

	if p1.PID() != 1000 || p2.PID() != 1001 {
		t.Errorf("PIDs = %d, %d; want 1000, 1001", p1.PID(), p2.PID())
	}
	if mock.GetStartCallCount() != 2 || mock.GetLastStartCall() != cmd {
		t.Error("Start calls not recorded")
	}
}

func TestMockLauncher_Wait(t *testing.T) {
	mock := NewMockLauncher()
	mock.ExitCode = 3

	var hooked int
	mock.OnWait = func(pid int) { hooked = pid }

	p, _ := mock.Start(context.Background(), &ExecCommand{Chroot: "chroot"})
	res, err := p.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if hooked != p.PID() {
		t.Errorf("OnWait got pid %d, want %d", hooked, p.PID())
	}
	if len(mock.Waited) != 1 {
		t.Errorf("Waited = %v", mock.Waited)
	}
}

func TestMockLauncher_Errors(t *testing.T) {
	mock := NewMockLauncher()
	mock.StartError = errors.New("exec format error")

	_, err := mock.Start(context.Background(), &ExecCommand{Chroot: "chroot"})
	var execErr *ErrExecutionFailed
	if !errors.As(err, &execErr) || execErr.Op != "start" {
		t.Errorf("expected start ErrExecutionFailed, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.StartError = nil
	if _, err := mock.Start(ctx, &ExecCommand{Chroot: "chroot"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mock.GetStartCallCount() != 2 {
		t.Errorf("StartCalls = %d, want 2", mock.GetStartCallCount())
	}
}
