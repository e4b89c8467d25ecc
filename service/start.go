package service

import (
	"context"
	"fmt"
	"time"

	"chrootctl/environment"
	"chrootctl/registry"

	"github.com/google/uuid"
)

// Start runs one chroot session in the foreground.
//
// The first session for a (base directory, host type) key prepares the
// chroot; later sessions reuse the standing mounts. The session is recorded
// in the registry as soon as its PID is known and stays recorded after it
// exits: mounts are released only by Shutdown.
//
// A session that exits non-zero is reported as *environment.ErrExecutionFailed
// with ExitCode set; the result is returned alongside the error.
func (s *Service) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	hostType := opts.HostType
	if hostType == "" {
		hostType = s.cfg.HostType
	}
	shell := opts.Shell
	if shell == "" {
		shell = s.cfg.Shell
	}

	key, err := registry.NewKey(opts.BaseDir, hostType)
	if err != nil {
		return nil, err
	}
	if err := registry.ValidateKey(key); err != nil {
		return nil, err
	}

	if err := s.cfg.EnsureConfigDir(); err != nil {
		return nil, err
	}

	var existing []registry.Session
	err = s.withRegistry(false, func(reg *registry.Registry) error {
		var err error
		existing, err = reg.Lookup(key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up sessions: %w", err)
	}

	result := &StartResult{Key: key, Mounted: len(existing) == 0}

	if err := s.manager.EnsureMounted(ctx, key, len(existing)); err != nil {
		return result, err
	}

	p, err := s.launcher.Start(ctx, &environment.ExecCommand{
		Chroot:  s.cfg.Binaries.Chroot,
		BaseDir: key.BaseDir,
		Shell:   shell,
		Stdin:   opts.Stdin,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
	})
	if err != nil {
		return result, err
	}
	result.PID = p.PID()

	session := registry.Session{
		PID:     p.PID(),
		ID:      uuid.New().String(),
		Shell:   shell,
		Started: time.Now(),
	}
	err = s.withRegistry(false, func(reg *registry.Registry) error {
		return reg.Add(key, session)
	})
	if err != nil {
		// An unrecorded session would pin the mounts with no way to
		// reclaim them.
		if res := s.terminate(p.PID(), s.logger); res.Err != nil {
			s.logger.Error("Failed to stop unregistered session %d: %v", p.PID(), res.Err)
		}
		return result, fmt.Errorf("failed to register session %d: %w", p.PID(), err)
	}
	result.SessionID = session.ID
	s.logger.Info("Session %s (pid %d) started in %s", session.ID, session.PID, key)

	execResult, err := p.Wait()
	if err != nil {
		return result, err
	}
	result.ExitCode = execResult.ExitCode
	s.logger.Debug("Session %s exited with code %d after %v", session.ID, execResult.ExitCode, execResult.Duration)

	if execResult.ExitCode != 0 {
		return result, &environment.ErrExecutionFailed{
			Op:       "exit",
			Command:  shell,
			ExitCode: execResult.ExitCode,
		}
	}
	return result, nil
}
