package service

import (
	"context"
	"fmt"

	"chrootctl/host"
	"chrootctl/registry"

	"github.com/hashicorp/go-multierror"
)

// Shutdown stops every registered session matching opts and releases its
// mounts.
//
// For each matching key the sessions are sent SIGTERM (without waiting),
// the mounts are released in teardown order and the key is removed from
// the registry. Unmount failures are collected in the result, not
// returned. A key that cannot be removed from the registry does not stop
// the remaining keys; those failures are returned together once every
// key has been handled. A missing registry, or one without matching keys, yields
// StatusNothingToDo; running Shutdown twice is therefore safe.
//
// The base directory filter is canonicalized when it still exists and
// compared as a cleaned absolute path otherwise.
func (s *Service) Shutdown(ctx context.Context, opts ShutdownOptions) (*ShutdownResult, error) {
	result := &ShutdownResult{Status: StatusNothingToDo}

	var filterDir string
	if opts.BaseDir != "" {
		dir, err := registry.NormalizeFilter(opts.BaseDir)
		if err != nil {
			return nil, err
		}
		filterDir = dir
	}
	var filterHost host.Type
	if opts.HostType != "" {
		t, err := host.Parse(opts.HostType)
		if err != nil {
			return nil, err
		}
		filterHost = t
	}

	exists, err := registry.Exists(s.cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	if !exists && !s.legacyPending() {
		s.logger.Info("Registry %s does not exist, nothing to shut down", s.cfg.RegistryPath)
		return result, nil
	}

	var entries []registry.Entry
	err = s.withRegistry(false, func(reg *registry.Registry) error {
		var err error
		entries, err = reg.Enumerate()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var removeErrs *multierror.Error
	matched := 0
	for _, e := range entries {
		if filterDir != "" && e.Key.BaseDir != filterDir {
			continue
		}
		if filterHost != "" && e.Key.HostType != filterHost {
			continue
		}
		matched++
		if err := s.shutdownEntry(ctx, e, result); err != nil {
			s.logger.Error("%v", err)
			removeErrs = multierror.Append(removeErrs, err)
		}
	}

	if matched == 0 {
		s.logger.Info("No registered sessions match, nothing to shut down")
		return result, nil
	}
	result.Status = StatusProcessed
	return result, removeErrs.ErrorOrNil()
}

func (s *Service) shutdownEntry(ctx context.Context, e registry.Entry, result *ShutdownResult) error {
	s.logger.Info("Shutting down %s (%d session(s))", e.Key, len(e.Sessions))

	for _, session := range e.Sessions {
		res := s.terminate(session.PID, s.logger)
		switch {
		case res.Signalled:
			result.Signalled++
		case res.Err != nil:
			result.SignalFailures++
			s.logger.Warn("Could not stop session %d: %v", session.PID, res.Err)
		}
	}

	if !e.Key.HostType.Valid() {
		s.logger.Error("Host type %q of %s is not supported (registry corrupted), removing without unmounting",
			e.Key.HostType, e.Key.BaseDir)
	} else if err := s.manager.EnsureUnmounted(ctx, e.Key); err != nil {
		s.logger.Warn("Unmounting %s incomplete: %v", e.Key, err)
		result.UnmountWarnings = append(result.UnmountWarnings, err)
	}

	err := s.withRegistry(false, func(reg *registry.Registry) error {
		return reg.RemoveHostType(e.Key)
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s from registry: %w", e.Key, err)
	}
	result.Keys = append(result.Keys, e.Key)
	return nil
}
