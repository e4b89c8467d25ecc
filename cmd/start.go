package cmd

import (
	"errors"
	"os"
	"os/signal"

	"chrootctl/environment"
	"chrootctl/service"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

type startOptions struct {
	shell       string
	hostType    string
	chroot      string
	mount       string
	mountNullfs string
	kldload     string
}

func newStartCommand(a *app) *cobra.Command {
	var o startOptions

	c := &cobra.Command{
		Use:   "start BASE_DIR",
		Short: "Start a shell in the chroot at BASE_DIR",
		Long: `Start a shell in the chroot at BASE_DIR, mounting its auxiliary
filesystems first unless another session already did.

The shell runs in the foreground. chrootctl exits with the shell's exit code.`,
		Example: `  chrootctl start /srv/debian
  chrootctl start --host-type freebsd --shell /bin/sh /compat/linux`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStart(cmd, args[0], &o)
		},
	}

	flags := c.Flags()
	flags.StringVar(&o.shell, "shell", "", "Shell started inside the chroot (default from config, /bin/bash)")
	flags.StringVar(&o.hostType, "host-type", "", "Host type: debian, freebsd (default from config, debian)")
	flags.StringVar(&o.chroot, "chroot", "", "chroot binary")
	flags.StringVar(&o.mount, "mount", "", "mount binary")
	flags.StringVar(&o.mountNullfs, "mount-nullfs", "", "mount_nullfs binary")
	flags.StringVar(&o.kldload, "kldload", "", "kldload binary")
	return c
}

func (a *app) runStart(cmd *cobra.Command, baseDir string, o *startOptions) error {
	cfg, logger, err := a.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	if o.chroot != "" {
		cfg.Binaries.Chroot = o.chroot
	}
	if o.mount != "" {
		cfg.Binaries.Mount = o.mount
	}
	if o.mountNullfs != "" {
		cfg.Binaries.MountNullfs = o.mountNullfs
	}
	if o.kldload != "" {
		cfg.Binaries.Kldload = o.kldload
	}

	// The session shares our terminal: keyboard interrupts are meant for
	// the shell, not for us.
	stop := holdInterrupts()
	defer stop()

	_, err = a.service(cfg, logger).Start(cmd.Context(), service.StartOptions{
		BaseDir:  baseDir,
		HostType: o.hostType,
		Shell:    o.shell,
		Stdin:    cmd.InOrStdin(),
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
	})

	var execErr *environment.ErrExecutionFailed
	if errors.As(err, &execErr) && execErr.ExitCode > 0 {
		logger.Debug("%v", err)
		return &ExitError{Code: execErr.ExitCode}
	}
	return err
}

// holdInterrupts catches SIGINT and SIGQUIT until the returned function is
// called. Caught (rather than ignored) signals are reset to their default
// disposition in the child, so the shell still receives them.
func holdInterrupts() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGQUIT)
	go func() {
		for range ch {
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
