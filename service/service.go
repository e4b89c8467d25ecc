// Package service provides the chrootctl operations: starting a chroot
// session, shutting sessions down, reporting status and importing legacy
// data.
//
// The service layer sits between the CLI (cmd/) and the library packages
// (registry, environment, mount, proc):
//
//   - CLI layer (cmd/): argument parsing, exit codes, terminal output
//   - Service layer (service/): orchestration of registry and mounts
//   - Library layer: one concern each, no terminal coupling
//
// All service methods report through the LibraryLogger interface.
package service

import (
	"fmt"
	"os"
	"path/filepath"

	"chrootctl/config"
	"chrootctl/environment"
	"chrootctl/log"
	"chrootctl/migration"
	"chrootctl/mount"
	"chrootctl/proc"
	"chrootctl/registry"
)

// Deps are the collaborators a Service drives. Nil fields select the
// production implementation.
type Deps struct {
	Driver    mount.Driver
	Launcher  environment.Launcher
	Terminate proc.Terminator
	Alive     func(pid int) bool
}

// Service coordinates the registry and the mount lifecycle.
//
// Usage:
//
//	cfg, _ := config.Load("")
//	svc := service.NewService(cfg, logger, service.Deps{})
//
//	result, err := svc.Start(ctx, service.StartOptions{BaseDir: "/srv/debian"})
type Service struct {
	cfg       *config.Config
	logger    log.LibraryLogger
	driver    mount.Driver
	manager   *environment.Manager
	launcher  environment.Launcher
	terminate proc.Terminator
	alive     func(int) bool

	// migrationChecked is set once the legacy count file has been looked
	// for in this invocation.
	migrationChecked bool
}

// NewService creates a Service for cfg.
func NewService(cfg *config.Config, logger log.LibraryLogger, deps Deps) *Service {
	logger = log.OrNoOp(logger)

	if deps.Driver == nil {
		deps.Driver = mount.NewCommandDriver(mount.Binaries{
			Mount:       cfg.Binaries.Mount,
			MountNullfs: cfg.Binaries.MountNullfs,
			Umount:      cfg.Binaries.Umount,
			Kldload:     cfg.Binaries.Kldload,
		}, cfg.CommandTimeout, logger)
	}
	if deps.Launcher == nil {
		deps.Launcher = environment.NewExecLauncher(logger)
	}
	if deps.Terminate == nil {
		deps.Terminate = proc.Terminate
	}
	if deps.Alive == nil {
		deps.Alive = proc.Alive
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		driver:    deps.Driver,
		manager:   environment.NewManager(deps.Driver, cfg.ResolvConf, logger),
		launcher:  deps.Launcher,
		terminate: deps.Terminate,
		alive:     deps.Alive,
	}
}

// Config returns the service's configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// withRegistry runs fn inside one open/close span of the registry file.
//
// Writable spans create the registry directory and, on the first span of
// the invocation, import a legacy count file when AutoMigrate is set.
func (s *Service) withRegistry(readOnly bool, fn func(*registry.Registry) error) error {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(s.cfg.RegistryPath), 0755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	reg, err := registry.Open(s.cfg.RegistryPath, registry.Options{
		Timeout:  s.cfg.LockTimeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	if !readOnly && s.cfg.Migration.AutoMigrate && !s.migrationChecked {
		s.migrationChecked = true
		if migration.DetectLegacyCountFile(s.cfg) {
			if _, err := migration.MigrateLegacyCountFile(s.cfg, reg, s.logger); err != nil {
				s.logger.Warn("Legacy count file import failed: %v", err)
			}
		}
	}

	return fn(reg)
}

// legacyPending reports whether an automatic import would run.
func (s *Service) legacyPending() bool {
	return s.cfg.Migration.AutoMigrate && migration.DetectLegacyCountFile(s.cfg)
}
