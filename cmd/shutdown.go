package cmd

import (
	"fmt"

	"chrootctl/service"

	"github.com/spf13/cobra"
)

type shutdownOptions struct {
	umount          string
	nothingExitCode int
}

func newShutdownCommand(a *app) *cobra.Command {
	var o shutdownOptions

	c := &cobra.Command{
		Use:   "shutdown [BASE_DIR [HOST_TYPE]]",
		Short: "Stop registered sessions and unmount their chroots",
		Long: `Send SIGTERM to every registered session and unmount the auxiliary
filesystems of their chroots. BASE_DIR and HOST_TYPE restrict the shutdown
to matching chroots.

Without arguments shutdown needs no input at all, which makes it suitable
for an init script.`,
		Example: `  chrootctl shutdown
  chrootctl shutdown /srv/debian
  chrootctl shutdown /compat/linux freebsd`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts service.ShutdownOptions
			if len(args) > 0 {
				opts.BaseDir = args[0]
			}
			if len(args) > 1 {
				opts.HostType = args[1]
			}
			return a.runShutdown(cmd, opts, &o)
		},
	}

	flags := c.Flags()
	flags.StringVar(&o.umount, "umount", "", "umount binary")
	flags.IntVar(&o.nothingExitCode, "nothing-exit-code", 0, "Exit code when there is nothing to shut down")
	return c
}

func (a *app) runShutdown(cmd *cobra.Command, opts service.ShutdownOptions, o *shutdownOptions) error {
	cfg, logger, err := a.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	if o.umount != "" {
		cfg.Binaries.Umount = o.umount
	}

	res, err := a.service(cfg, logger).Shutdown(cmd.Context(), opts)
	if err != nil && (res == nil || res.Status != service.StatusProcessed) {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Status == service.StatusNothingToDo {
		fmt.Fprintln(out, "Nothing to shut down")
		if o.nothingExitCode != 0 {
			return &ExitError{Code: o.nothingExitCode}
		}
		return nil
	}

	for _, key := range res.Keys {
		fmt.Fprintf(out, "Shut down %s\n", key)
	}
	fmt.Fprintf(out, "Signalled %d session(s)", res.Signalled)
	if res.SignalFailures > 0 {
		fmt.Fprintf(out, ", %d could not be signalled", res.SignalFailures)
	}
	fmt.Fprintln(out)
	if n := len(res.UnmountWarnings); n > 0 {
		fmt.Fprintf(out, "%d chroot(s) could not be fully unmounted, see log\n", n)
	}
	// Keys that could not be removed from the registry
	return err
}
