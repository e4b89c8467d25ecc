// Package cmd implements the chrootctl command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"chrootctl/config"
	"chrootctl/log"
	"chrootctl/service"
	"chrootctl/util"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X chrootctl/cmd.Version=...".
var Version = "dev"

// ExitError makes the process exit with Code. A nil Err exits silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// app carries the options shared by every subcommand.
type app struct {
	configDir string
	debug     bool

	// deps are handed to every Service; zero selects real binaries.
	deps service.Deps
}

// NewRootCommand builds the chrootctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "chrootctl",
		Short: "Manage auxiliary mounts for shared chroot sessions",
		Long: `chrootctl starts interactive shells inside a chroot and keeps the
filesystems the chroot needs (proc, sys, dev, ...) mounted for as long as
sessions use it.

The first session for a base directory mounts everything; later sessions
reuse the mounts. "chrootctl shutdown" stops the registered sessions and
unmounts again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", "", "Configuration directory (default ~/.chrootctl)")
	flags.BoolVarP(&a.debug, "debug", "d", false, "Debug verbosity")

	root.AddCommand(
		newStartCommand(a),
		newShutdownCommand(a),
		newStatusCommand(a),
		newMigrateCommand(a),
		newVersionCommand(),
	)
	return root
}

// load reads the configuration and creates the console logger. The log file
// is opened when the configuration directory exists.
func (a *app) load(stderr io.Writer) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return nil, nil, err
	}
	if a.debug {
		cfg.Debug = true
	}

	logger := log.NewLogger(stderr, cfg.Debug)
	if util.DirExists(cfg.ConfigDir) {
		if err := logger.OpenFile(cfg.ConfigDir); err != nil {
			logger.Warn("%v", err)
		}
	}
	return cfg, logger, nil
}

func (a *app) service(cfg *config.Config, logger log.LibraryLogger) *service.Service {
	return service.NewService(cfg, logger, a.deps)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
