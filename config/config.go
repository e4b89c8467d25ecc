package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/ini.v1"
)

// Defaults applied when neither the config file nor the command line sets a value.
const (
	AppName = "chrootctl"

	ConfigFileName         = "chrootctl.ini"
	RegistryFileName       = "chroot_sessions.db"
	LegacyRegistryFileName = "chroot_count.dta"

	DefaultHostType   = "debian"
	DefaultShell      = "/bin/bash"
	DefaultResolvConf = "/etc/resolv.conf"

	DefaultChroot      = "chroot"
	DefaultMount       = "mount"
	DefaultMountNullfs = "mount_nullfs"
	DefaultKldload     = "kldload"
	DefaultUmount      = "umount"

	DefaultCommandTimeout = 60 * time.Second
	DefaultLockTimeout    = 10 * time.Second
)

// globalSection is the ini section every key is read from.
const globalSection = "Global Configuration"

// Config holds chrootctl configuration.
//
// A Config is built once per invocation (Load, then command line overrides)
// and passed explicitly to every operation.
type Config struct {
	ConfigDir    string
	RegistryPath string
	HostType     string
	Shell        string
	ResolvConf   string

	// External binaries, resolved through $PATH unless absolute
	Binaries struct {
		Chroot      string
		Mount       string
		MountNullfs string
		Kldload     string
		Umount      string
	}

	// CommandTimeout bounds each mount, umount and kldload invocation.
	// Zero disables the bound.
	CommandTimeout time.Duration

	// LockTimeout bounds how long an invocation waits for the registry
	// file lock held by a concurrent invocation.
	LockTimeout time.Duration

	Debug bool

	// Migration settings
	Migration struct {
		AutoMigrate  bool // Default: true
		BackupLegacy bool // Default: true
	}
}

// DefaultConfigDir returns ~/.chrootctl for the invoking user.
func DefaultConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName), nil
}

// Load builds a Config for configDir.
//
// An empty configDir selects DefaultConfigDir. Values are read from
// configDir/chrootctl.ini when that file exists; a missing file is not an
// error. Unset values receive defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	cfg := &Config{ConfigDir: configDir}
	cfg.Migration.AutoMigrate = true
	cfg.Migration.BackupLegacy = true
	cfg.CommandTimeout = DefaultCommandTimeout
	cfg.LockTimeout = DefaultLockTimeout

	configFile := filepath.Join(configDir, ConfigFileName)
	if info, err := os.Stat(configFile); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("config file %s is a directory", configFile)
		}
		iniFile, err := ini.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		if sec, err := iniFile.GetSection(globalSection); err == nil {
			if err := cfg.loadFromSection(sec); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", configFile, err)
			}
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every empty field. It is idempotent and is called
// again after command line overrides so a cleared flag falls back cleanly.
func (cfg *Config) ApplyDefaults() {
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = filepath.Join(cfg.ConfigDir, RegistryFileName)
	}
	if cfg.HostType == "" {
		cfg.HostType = DefaultHostType
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	if cfg.ResolvConf == "" {
		cfg.ResolvConf = DefaultResolvConf
	}
	if cfg.Binaries.Chroot == "" {
		cfg.Binaries.Chroot = DefaultChroot
	}
	if cfg.Binaries.Mount == "" {
		cfg.Binaries.Mount = DefaultMount
	}
	if cfg.Binaries.MountNullfs == "" {
		cfg.Binaries.MountNullfs = DefaultMountNullfs
	}
	if cfg.Binaries.Kldload == "" {
		cfg.Binaries.Kldload = DefaultKldload
	}
	if cfg.Binaries.Umount == "" {
		cfg.Binaries.Umount = DefaultUmount
	}
}

// LegacyRegistryPath is where the line-delimited count file of earlier
// releases lives.
func (cfg *Config) LegacyRegistryPath() string {
	return filepath.Join(cfg.ConfigDir, LegacyRegistryFileName)
}

// EnsureConfigDir creates the configuration directory if needed and fails
// if the path exists but is not a directory.
func (cfg *Config) EnsureConfigDir() error {
	info, err := os.Stat(cfg.ConfigDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat config directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config directory %s is not a directory", cfg.ConfigDir)
	}
	return nil
}

// loadFromSection loads config values from an INI section
func (cfg *Config) loadFromSection(sec *ini.Section) error {
	strKeys := map[string]*string{
		"Registry_path":       &cfg.RegistryPath,
		"Host_type":           &cfg.HostType,
		"Shell":               &cfg.Shell,
		"Resolv_conf":         &cfg.ResolvConf,
		"Binary_chroot":       &cfg.Binaries.Chroot,
		"Binary_mount":        &cfg.Binaries.Mount,
		"Binary_mount_nullfs": &cfg.Binaries.MountNullfs,
		"Binary_kldload":      &cfg.Binaries.Kldload,
		"Binary_umount":       &cfg.Binaries.Umount,
	}
	for name, dst := range strKeys {
		if sec.HasKey(name) && sec.Key(name).String() != "" {
			*dst = sec.Key(name).String()
		}
	}

	durKeys := map[string]*time.Duration{
		"Command_timeout": &cfg.CommandTimeout,
		"Lock_timeout":    &cfg.LockTimeout,
	}
	for name, dst := range durKeys {
		if !sec.HasKey(name) {
			continue
		}
		d, err := parseDuration(sec.Key(name))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}

	boolKeys := map[string]*bool{
		"Debug":                   &cfg.Debug,
		"Migration_auto_migrate":  &cfg.Migration.AutoMigrate,
		"Migration_backup_legacy": &cfg.Migration.BackupLegacy,
	}
	for name, dst := range boolKeys {
		if sec.HasKey(name) {
			*dst = parseBool(sec.Key(name))
		}
	}
	return nil
}

// parseDuration accepts Go durations ("90s") and bare seconds ("90").
func parseDuration(key *ini.Key) (time.Duration, error) {
	var d time.Duration
	if n, err := key.Int(); err == nil {
		d = time.Duration(n) * time.Second
	} else if d, err = key.Duration(); err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", key.String())
	}
	return d, nil
}

// parseBool treats anything ini does not recognize as false.
func parseBool(key *ini.Key) bool {
	b, err := key.Bool()
	return err == nil && b
}
