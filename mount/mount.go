// Package mount performs lazy mounts and unmounts by invoking the host's
// mount(8), mount_nullfs(8), umount(8) and kldload(8) binaries.
//
// "Lazy" means every operation first consults the kernel mount table: a
// target that is already mounted is not mounted again, and a target that is
// not mounted is not unmounted. This is what lets a later invocation recover
// after a crash left mounts standing but the session registry empty.
package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"chrootctl/log"

	"github.com/hashicorp/go-multierror"
	"github.com/moby/sys/mountinfo"
)

// Spec is a single mount request with an absolute target.
//
// An empty FSType requests a bind mount of Source onto Target.
type Spec struct {
	Source  string
	Target  string
	FSType  string
	Options []string
}

func (s Spec) String() string {
	if s.FSType == "" {
		return fmt.Sprintf("%s (bind of %s)", s.Target, s.Source)
	}
	return fmt.Sprintf("%s (%s)", s.Target, s.FSType)
}

// Driver is the mount surface consumed by the lifecycle manager.
type Driver interface {
	// Mount mounts spec unless its target is already a mount point,
	// creating the target directory when missing. The bool reports
	// whether a mount was actually performed.
	Mount(ctx context.Context, spec Spec) (bool, error)

	// Unmount unmounts target if it is a mount point. The bool reports
	// whether an unmount was actually performed.
	Unmount(ctx context.Context, target string) (bool, error)

	// IsMounted reports whether target is a mount point.
	IsMounted(target string) (bool, error)

	// LoadModules loads kernel modules, skipping ones already loaded.
	LoadModules(ctx context.Context, modules ...string) error
}

// Binaries names the external programs a CommandDriver runs.
type Binaries struct {
	Mount       string
	MountNullfs string
	Umount      string
	Kldload     string
}

// CommandDriver implements Driver by running external binaries.
type CommandDriver struct {
	bin     Binaries
	timeout time.Duration
	logger  log.LibraryLogger

	// useNullfs selects mount_nullfs for bind specs (BSD hosts).
	useNullfs bool

	// mounted reports mount state; replaced in tests.
	mounted func(string) (bool, error)
}

// NewCommandDriver creates a driver running bin. A positive timeout bounds
// every external command.
func NewCommandDriver(bin Binaries, timeout time.Duration, logger log.LibraryLogger) *CommandDriver {
	return &CommandDriver{
		bin:       bin,
		timeout:   timeout,
		logger:    log.OrNoOp(logger),
		useNullfs: runtime.GOOS == "freebsd" || runtime.GOOS == "dragonfly",
		mounted:   mountinfo.Mounted,
	}
}

// Compile-time interface check
var _ Driver = (*CommandDriver)(nil)

// Mount implements Driver.
func (d *CommandDriver) Mount(ctx context.Context, spec Spec) (bool, error) {
	if err := os.MkdirAll(spec.Target, 0755); err != nil {
		return false, &MountError{Op: "mkdir", Path: spec.Target, Err: err}
	}

	already, err := d.IsMounted(spec.Target)
	if err != nil {
		return false, &MountError{Op: "mount", Path: spec.Target, FSType: spec.FSType, Source: spec.Source, Err: err}
	}
	if already {
		d.logger.Debug("%s already mounted, skipping", spec.Target)
		return false, nil
	}

	name, args := d.mountCommand(spec)
	if err := d.run(ctx, name, args...); err != nil {
		return false, &MountError{Op: "mount", Path: spec.Target, FSType: spec.FSType, Source: spec.Source, Err: err}
	}
	d.logger.Debug("mounted %s", spec)
	return true, nil
}

// mountCommand builds the command line for spec.
func (d *CommandDriver) mountCommand(spec Spec) (string, []string) {
	if spec.FSType == "" && d.useNullfs {
		return d.bin.MountNullfs, []string{spec.Source, spec.Target}
	}

	var args []string
	if spec.FSType != "" {
		args = append(args, "-t", spec.FSType)
	}
	if len(spec.Options) > 0 {
		args = append(args, "-o", strings.Join(spec.Options, ","))
	}
	args = append(args, spec.Source, spec.Target)
	return d.bin.Mount, args
}

// Unmount implements Driver.
//
// A target that does not exist, or exists but is not a mount point, is
// reported as not unmounted without error.
func (d *CommandDriver) Unmount(ctx context.Context, target string) (bool, error) {
	mounted, err := d.IsMounted(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d.logger.Debug("%s does not exist, nothing to unmount", target)
			return false, nil
		}
		// Unknown state; let umount decide.
		d.logger.Debug("cannot determine mount state of %s: %v", target, err)
		mounted = true
	}
	if !mounted {
		d.logger.Debug("%s not mounted, skipping", target)
		return false, nil
	}

	if err := d.run(ctx, d.bin.Umount, target); err != nil {
		return false, &MountError{Op: "unmount", Path: target, Err: err}
	}
	d.logger.Debug("unmounted %s", target)
	return true, nil
}

// IsMounted implements Driver.
func (d *CommandDriver) IsMounted(target string) (bool, error) {
	return d.mounted(target)
}

// LoadModules implements Driver.
//
// Each module is loaded by its own kldload -n invocation, so one failure
// does not prevent the others. Failures are aggregated.
func (d *CommandDriver) LoadModules(ctx context.Context, modules ...string) error {
	var result *multierror.Error
	for _, m := range modules {
		if err := d.run(ctx, d.bin.Kldload, "-n", m); err != nil {
			result = multierror.Append(result, &MountError{Op: "kldload", Path: m, Err: err})
		}
	}
	return result.ErrorOrNil()
}

// run executes name with args, bounded by the driver timeout.
func (d *CommandDriver) run(ctx context.Context, name string, args ...string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %v", name, d.timeout)
		}
		out := strings.TrimSpace(string(output))
		if out != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, out)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
