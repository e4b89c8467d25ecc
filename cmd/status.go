package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List registered sessions and mounted filesystems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			res, err := a.service(cfg, logger).Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registry: %s\n", res.RegistryPath)
			if len(res.Keys) == 0 {
				fmt.Fprintln(out, "No registered sessions")
				return nil
			}

			for _, ks := range res.Keys {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s\n", ks.Key)
				if !ks.Supported {
					fmt.Fprintln(out, "  unsupported host type")
				}
				for _, s := range ks.Sessions {
					state := "gone"
					if s.Alive {
						state = "running"
					}
					started := "-"
					if !s.Started.IsZero() {
						started = s.Started.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "  pid %-8d %-8s %s  %s\n", s.PID, state, started, s.Shell)
				}
				if len(ks.Mounted) > 0 {
					fmt.Fprintf(out, "  mounted: %s\n", strings.Join(ks.Mounted, " "))
				}
			}
			return nil
		},
	}
}
