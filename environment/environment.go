// Package environment prepares and releases the auxiliary filesystems a
// chroot needs, and launches the session shell inside it.
//
// The Manager is the single place where a host Profile is turned into
// mount and unmount calls. It does not count sessions itself: callers pass
// the number of sessions already registered for the key, and setup runs
// only for the first one.
//
// Usage example:
//
//	mgr := environment.NewManager(driver, cfg.ResolvConf, logger)
//	if err := mgr.EnsureMounted(ctx, key, len(existing)); err != nil {
//	    return err
//	}
//	...
//	if err := mgr.EnsureUnmounted(ctx, key); err != nil {
//	    logger.Warn("%v", err)
//	}
package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chrootctl/host"
	"chrootctl/log"
	"chrootctl/mount"
	"chrootctl/registry"
	"chrootctl/util"

	"github.com/hashicorp/go-multierror"
)

// Manager runs the setup and teardown sequences of a host profile.
type Manager struct {
	driver     mount.Driver
	resolvConf string
	logger     log.LibraryLogger
}

// NewManager creates a Manager. resolvConf is the host resolver
// configuration copied into each chroot.
func NewManager(driver mount.Driver, resolvConf string, logger log.LibraryLogger) *Manager {
	return &Manager{
		driver:     driver,
		resolvConf: resolvConf,
		logger:     log.OrNoOp(logger),
	}
}

// Specs returns the absolute mount specs of p for baseDir, in setup order.
func Specs(baseDir string, p host.Profile) []mount.Spec {
	specs := make([]mount.Spec, len(p.Mounts))
	for i, m := range p.Mounts {
		specs[i] = mount.Spec{
			Source:  m.Source,
			Target:  filepath.Join(baseDir, m.Target),
			FSType:  m.FSType,
			Options: m.Options,
		}
	}
	return specs
}

// Targets returns the absolute unmount targets of p for baseDir, in
// teardown order.
func Targets(baseDir string, p host.Profile) []string {
	targets := make([]string, len(p.Unmounts))
	for i, rel := range p.Unmounts {
		targets[i] = filepath.Join(baseDir, rel)
	}
	return targets
}

// EnsureMounted prepares key's base directory unless existing sessions
// already hold it.
//
// Setup loads the profile's kernel modules (failures are tolerated, the
// module is usually loaded already), mounts in profile order and replaces
// <base>/etc/resolv.conf with a copy of the host's. Every mount is lazy, so
// re-running after a partial failure completes the remaining steps.
//
// A mount failure aborts setup with *ErrSetupFailed. Mounts completed
// before the failure are left in place.
func (m *Manager) EnsureMounted(ctx context.Context, key registry.Key, existing int) error {
	profile, err := host.ProfileFor(key.HostType)
	if err != nil {
		return err
	}

	if existing > 0 {
		m.logger.Info("%s has %d running session(s), skipping setup", key, existing)
		return nil
	}

	m.logger.Info("Preparing %s", key)

	if len(profile.KernelModules) > 0 {
		if err := m.driver.LoadModules(ctx, profile.KernelModules...); err != nil {
			m.logger.Debug("kernel module loading reported errors (ignored): %v", err)
		}
	}

	for _, spec := range Specs(key.BaseDir, profile) {
		if _, err := m.driver.Mount(ctx, spec); err != nil {
			return &ErrSetupFailed{Op: "mount", Target: spec.Target, Err: err}
		}
	}

	if profile.ResolvConf {
		if err := m.replaceResolvConf(key.BaseDir); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) replaceResolvConf(baseDir string) error {
	etc := filepath.Join(baseDir, "etc")
	dst := filepath.Join(etc, "resolv.conf")

	// Keep the chroot's copy when there is nothing to replace it with.
	if !util.FileExists(m.resolvConf) {
		return &ErrSetupFailed{Op: "copy", Target: dst, Err: fmt.Errorf("%s: %w", m.resolvConf, os.ErrNotExist)}
	}
	if err := util.RemoveIfExists(dst); err != nil {
		return &ErrSetupFailed{Op: "remove", Target: dst, Err: err}
	}
	if !util.DirExists(etc) {
		if err := os.MkdirAll(etc, 0755); err != nil {
			return &ErrSetupFailed{Op: "mkdir", Target: etc, Err: err}
		}
	}
	if err := util.CopyFile(m.resolvConf, dst, 0644); err != nil {
		return &ErrSetupFailed{Op: "copy", Target: dst, Err: err}
	}
	m.logger.Debug("copied %s to %s", m.resolvConf, dst)
	return nil
}

// EnsureUnmounted releases key's mounts in teardown order.
//
// Every target is attempted. Failures are logged at Warn and returned
// together as *ErrCleanupFailed; callers treat it as informational.
// Only an unsupported host type prevents the attempt.
func (m *Manager) EnsureUnmounted(ctx context.Context, key registry.Key) error {
	profile, err := host.ProfileFor(key.HostType)
	if err != nil {
		return err
	}

	var result *multierror.Error
	var remaining []string
	for _, target := range Targets(key.BaseDir, profile) {
		if _, err := m.driver.Unmount(ctx, target); err != nil {
			m.logger.Warn("failed to unmount %s: %v", target, err)
			result = multierror.Append(result, err)
			remaining = append(remaining, target)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ErrCleanupFailed{Op: "unmount", Err: err, Mounts: remaining}
	}
	m.logger.Info("Released %s", key)
	return nil
}

// ErrSetupFailed indicates preparing a chroot failed.
type ErrSetupFailed struct {
	Op     string // Operation that failed: "mount", "remove", "mkdir", "copy"
	Target string // Path the operation acted on
	Err    error  // Underlying error
}

func (e *ErrSetupFailed) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("setup failed (%s %s): %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("setup failed (%s): %v", e.Op, e.Err)
}

func (e *ErrSetupFailed) Unwrap() error {
	return e.Err
}

// ErrExecutionFailed indicates the session command could not be run, or
// ran and exited non-zero.
type ErrExecutionFailed struct {
	Op       string // Operation: "start", "wait", "exit"
	Command  string // Command path
	ExitCode int    // Exit code (0 if execution failed, >0 if command failed)
	Err      error  // Underlying error, may be nil for a plain non-zero exit
}

func (e *ErrExecutionFailed) Error() string {
	if e.ExitCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("command %s exited with code %d: %v", e.Command, e.ExitCode, e.Err)
		}
		return fmt.Sprintf("command %s exited with code %d", e.Command, e.ExitCode)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s failed: command %s: %v", e.Op, e.Command, e.Err)
	}
	return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Err)
}

func (e *ErrExecutionFailed) Unwrap() error {
	return e.Err
}

// ErrCleanupFailed collects teardown failures.
type ErrCleanupFailed struct {
	Op     string   // Operation that failed: "unmount"
	Err    error    // Underlying error (a *multierror.Error for unmounts)
	Mounts []string // Targets that could not be released
}

func (e *ErrCleanupFailed) Error() string {
	if len(e.Mounts) > 0 {
		return fmt.Sprintf("cleanup failed (%s): %v (remaining mounts: %v)",
			e.Op, e.Err, e.Mounts)
	}
	return fmt.Sprintf("cleanup failed (%s): %v", e.Op, e.Err)
}

func (e *ErrCleanupFailed) Unwrap() error {
	return e.Err
}
