// Package migration imports the session count file written by older
// releases into the bbolt registry.
//
// The legacy file lives at ${ConfigDir}/chroot_count.dta with one session
// per line:
//
//	base_dir;pid;host_type
//
// Example usage:
//
//	if migration.DetectLegacyCountFile(cfg) {
//	    n, err := migration.MigrateLegacyCountFile(cfg, reg, logger)
//	    ...
//	}
package migration

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chrootctl/config"
	"chrootctl/host"
	"chrootctl/log"
	"chrootctl/registry"

	"github.com/google/uuid"
)

// Separator is the field separator of the legacy count file.
const Separator = ";"

// CountRecord is one parsed line of the legacy count file.
type CountRecord struct {
	BaseDir  string
	PID      int
	HostType host.Type
}

// MigrateLegacyCountFile imports every session of the legacy count file
// into reg and returns how many were imported.
//
// Lines that cannot be parsed, or that the registry rejects, are logged as
// warnings and skipped. When cfg.Migration.BackupLegacy is set the file is
// renamed to chroot_count.dta.bak afterwards, otherwise it is removed, so
// the import runs at most once.
//
// Returns 0 and nil if no legacy file exists.
func MigrateLegacyCountFile(cfg *config.Config, reg *registry.Registry, logger log.LibraryLogger) (int, error) {
	logger = log.OrNoOp(logger)
	legacyFile := cfg.LegacyRegistryPath()

	if _, err := os.Stat(legacyFile); os.IsNotExist(err) {
		return 0, nil
	}

	logger.Info("Found legacy count file: %s", legacyFile)

	records, err := readLegacyCountFile(legacyFile, logger)
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy count file: %w", err)
	}

	migrated := 0
	for _, rec := range records {
		key := registry.Key{BaseDir: rec.BaseDir, HostType: rec.HostType}
		s := registry.Session{PID: rec.PID, ID: uuid.New().String(), Started: time.Now()}
		if err := reg.Add(key, s); err != nil {
			logger.Warn("failed to migrate %s pid %d: %v", key, rec.PID, err)
			continue
		}
		migrated++
	}

	logger.Info("Migrated %d/%d legacy sessions", migrated, len(records))

	if cfg.Migration.BackupLegacy {
		backupFile := legacyFile + ".bak"
		if err := os.Rename(legacyFile, backupFile); err != nil {
			logger.Warn("failed to backup legacy file: %v", err)
		} else {
			logger.Info("Legacy file backed up to: %s", backupFile)
		}
	} else if err := os.Remove(legacyFile); err != nil {
		logger.Warn("failed to remove legacy file: %v", err)
	}

	return migrated, nil
}

// readLegacyCountFile parses the legacy count file.
//
// The pid and host type are taken from the last two fields, so a base
// directory that itself contains the separator is still recovered intact.
func readLegacyCountFile(path string, logger log.LibraryLogger) ([]CountRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []CountRecord
	scanner := bufio.NewScanner(file)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			logger.Warn("skipping line %d of legacy count file: %v", lineNo, err)
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseLine(line string) (CountRecord, error) {
	hostIdx := strings.LastIndex(line, Separator)
	if hostIdx < 0 {
		return CountRecord{}, fmt.Errorf("no separator in %q", line)
	}
	pidIdx := strings.LastIndex(line[:hostIdx], Separator)
	if pidIdx < 0 {
		return CountRecord{}, fmt.Errorf("expected base_dir;pid;host_type, got %q", line)
	}

	baseDir := line[:pidIdx]
	pid, err := strconv.Atoi(line[pidIdx+1 : hostIdx])
	if err != nil || pid <= 0 {
		return CountRecord{}, fmt.Errorf("invalid pid in %q", line)
	}
	hostType, err := host.Parse(line[hostIdx+1:])
	if err != nil {
		return CountRecord{}, err
	}
	if baseDir == "" {
		return CountRecord{}, fmt.Errorf("empty base directory in %q", line)
	}

	return CountRecord{BaseDir: baseDir, PID: pid, HostType: hostType}, nil
}

// DetectLegacyCountFile reports whether a legacy count file exists at
// ${ConfigDir}/chroot_count.dta.
func DetectLegacyCountFile(cfg *config.Config) bool {
	info, err := os.Stat(cfg.LegacyRegistryPath())
	return err == nil && !info.IsDir()
}
