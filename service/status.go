package service

import (
	"context"
	"fmt"

	"chrootctl/environment"
	"chrootctl/host"
	"chrootctl/migration"
	"chrootctl/registry"
)

// Status lists every registered key with its sessions and the targets
// currently mounted below it, in setup order.
//
// The registry is opened read-only; a missing registry yields an empty
// result.
func (s *Service) Status(ctx context.Context) (*StatusResult, error) {
	result := &StatusResult{RegistryPath: s.cfg.RegistryPath}

	exists, err := registry.Exists(s.cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return result, nil
	}
	result.Exists = true

	var entries []registry.Entry
	err = s.withRegistry(true, func(reg *registry.Registry) error {
		var err error
		entries, err = reg.Enumerate()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	for _, e := range entries {
		ks := KeyStatus{Key: e.Key}
		for _, session := range e.Sessions {
			ks.Sessions = append(ks.Sessions, SessionStatus{
				Session: session,
				Alive:   s.alive(session.PID),
			})
		}

		if profile, err := host.ProfileFor(e.Key.HostType); err == nil {
			ks.Supported = true
			for _, spec := range environment.Specs(e.Key.BaseDir, profile) {
				target := spec.Target
				mounted, err := s.driver.IsMounted(target)
				if err != nil {
					s.logger.Debug("cannot determine mount state of %s: %v", target, err)
					continue
				}
				if mounted {
					ks.Mounted = append(ks.Mounted, target)
				}
			}
		}
		result.Keys = append(result.Keys, ks)
	}
	return result, nil
}

// Migrate imports the legacy count file into the registry.
func (s *Service) Migrate(ctx context.Context) (*MigrateResult, error) {
	result := &MigrateResult{LegacyFile: s.cfg.LegacyRegistryPath()}
	if !migration.DetectLegacyCountFile(s.cfg) {
		return result, nil
	}
	result.Found = true

	if err := s.cfg.EnsureConfigDir(); err != nil {
		return nil, err
	}

	// Run the import explicitly rather than through the automatic check.
	s.migrationChecked = true
	err := s.withRegistry(false, func(reg *registry.Registry) error {
		n, err := migration.MigrateLegacyCountFile(s.cfg, reg, s.logger)
		result.Imported = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
