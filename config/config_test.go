package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/ini.v1"
)

// testKey returns a standalone ini key holding value.
func testKey(t *testing.T, value string) *ini.Key {
	t.Helper()
	key, err := ini.Empty().Section("").NewKey("k", value)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"true lowercase", "true", true},
		{"false lowercase", "false", false},
		{"yes lowercase", "yes", true},
		{"YES uppercase", "YES", true},
		{"no lowercase", "no", false},
		{"1 as string", "1", true},
		{"0 as string", "0", false},
		{"On capitalized", "On", true},
		{"off lowercase", "off", false},
		{"random string", "random", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseBool(testKey(t, tt.input)); got != tt.expected {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"0", 0, false},
		{"90s", 90 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"-5", 0, true},
		{"-1s", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(testKey(t, tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nonexistent")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ConfigDir != dir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, dir)
	}
	if want := filepath.Join(dir, RegistryFileName); cfg.RegistryPath != want {
		t.Errorf("RegistryPath = %q, want %q", cfg.RegistryPath, want)
	}
	if cfg.HostType != DefaultHostType {
		t.Errorf("HostType = %q, want %q", cfg.HostType, DefaultHostType)
	}
	if cfg.Shell != DefaultShell {
		t.Errorf("Shell = %q, want %q", cfg.Shell, DefaultShell)
	}
	if cfg.ResolvConf != DefaultResolvConf {
		t.Errorf("ResolvConf = %q, want %q", cfg.ResolvConf, DefaultResolvConf)
	}
	if cfg.Binaries.Umount != DefaultUmount || cfg.Binaries.Kldload != DefaultKldload {
		t.Errorf("unexpected binary defaults: %+v", cfg.Binaries)
	}
	if cfg.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("CommandTimeout = %v, want %v", cfg.CommandTimeout, DefaultCommandTimeout)
	}
	if !cfg.Migration.AutoMigrate || !cfg.Migration.BackupLegacy {
		t.Errorf("migration defaults should be true: %+v", cfg.Migration)
	}

	// Load must not create anything
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Load() created the config directory")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()

	f := ini.Empty()
	sec, _ := f.NewSection(globalSection)
	sec.NewKey("Host_type", "freebsd")
	sec.NewKey("Shell", "/bin/sh")
	sec.NewKey("Binary_umount", "/sbin/umount")
	sec.NewKey("Registry_path", "/var/db/chrootctl/sessions.db")
	sec.NewKey("Command_timeout", "5")
	sec.NewKey("Migration_auto_migrate", "no")
	sec.NewKey("Debug", "yes")
	if err := f.SaveTo(filepath.Join(dir, ConfigFileName)); err != nil {
		t.Fatalf("failed to write ini: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HostType != "freebsd" {
		t.Errorf("HostType = %q, want freebsd", cfg.HostType)
	}
	if cfg.Shell != "/bin/sh" {
		t.Errorf("Shell = %q, want /bin/sh", cfg.Shell)
	}
	if cfg.Binaries.Umount != "/sbin/umount" {
		t.Errorf("Binaries.Umount = %q", cfg.Binaries.Umount)
	}
	if cfg.Binaries.Mount != DefaultMount {
		t.Errorf("Binaries.Mount = %q, want default", cfg.Binaries.Mount)
	}
	if cfg.RegistryPath != "/var/db/chrootctl/sessions.db" {
		t.Errorf("RegistryPath = %q", cfg.RegistryPath)
	}
	if cfg.CommandTimeout != 5*time.Second {
		t.Errorf("CommandTimeout = %v, want 5s", cfg.CommandTimeout)
	}
	if cfg.Migration.AutoMigrate {
		t.Error("AutoMigrate should be false")
	}
	if !cfg.Migration.BackupLegacy {
		t.Error("BackupLegacy should keep its default")
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	content := "[Global Configuration]\nLock_timeout = forever\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid Lock_timeout")
	}
}

func TestLoad_DefaultConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if want := filepath.Join(home, ".chrootctl"); cfg.ConfigDir != want {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, want)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	t.Run("creates missing", func(t *testing.T) {
		cfg := &Config{ConfigDir: filepath.Join(t.TempDir(), "a", "b")}
		if err := cfg.EnsureConfigDir(); err != nil {
			t.Fatalf("EnsureConfigDir() failed: %v", err)
		}
		if info, err := os.Stat(cfg.ConfigDir); err != nil || !info.IsDir() {
			t.Errorf("config dir not created: %v", err)
		}
	})

	t.Run("rejects file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
		cfg := &Config{ConfigDir: path}
		if err := cfg.EnsureConfigDir(); err == nil {
			t.Fatal("expected error when config dir is a file")
		}
	})
}
