package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import the session count file of earlier releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			res, err := a.service(cfg, logger).Migrate(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Found {
				fmt.Fprintf(out, "No legacy count file at %s\n", res.LegacyFile)
				return nil
			}
			fmt.Fprintf(out, "Imported %d session(s) from %s\n", res.Imported, res.LegacyFile)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chrootctl version %s\n", Version)
		},
	}
}
