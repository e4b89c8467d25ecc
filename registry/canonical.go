package registry

import (
	"os"
	"path/filepath"
	"strings"

	"chrootctl/host"
)

// Canonicalize resolves dir to the absolute, symlink-free path used as a
// registry key, so that two invocations naming the same directory through
// different relative or symlinked paths share one key.
//
// dir must exist and be a directory.
func Canonicalize(dir string) (string, error) {
	if err := checkBaseDir(dir); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &ValidationError{Field: "base_dir", Value: dir, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &ValidationError{Field: "base_dir", Value: dir, Err: err}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &ValidationError{Field: "base_dir", Value: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &ValidationError{Field: "base_dir", Value: dir, Err: ErrNotDirectory}
	}
	return resolved, nil
}

// NormalizeFilter is the lenient form of Canonicalize used for shutdown
// filters: the directory may have been removed since its session started,
// in which case the cleaned absolute path is returned as-is.
func NormalizeFilter(dir string) (string, error) {
	if err := checkBaseDir(dir); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &ValidationError{Field: "base_dir", Value: dir, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// ValidateKey checks that k can be stored. The base directory must be
// absolute and free of NUL bytes. Any other character, including the ';'
// separator of the legacy count file, is accepted.
func ValidateKey(k Key) error {
	if err := checkBaseDir(k.BaseDir); err != nil {
		return err
	}
	if !filepath.IsAbs(k.BaseDir) {
		return &ValidationError{Field: "base_dir", Value: k.BaseDir, Err: ErrInvalidBaseDir}
	}
	if !k.HostType.Valid() {
		return &ValidationError{Field: "host_type", Value: string(k.HostType), Err: ErrInvalidHostType}
	}
	return nil
}

func checkBaseDir(dir string) error {
	if dir == "" {
		return &ValidationError{Field: "base_dir", Err: ErrEmptyBaseDir}
	}
	if strings.ContainsRune(dir, 0) {
		return &ValidationError{Field: "base_dir", Value: dir, Err: ErrInvalidBaseDir}
	}
	return nil
}

// NewKey builds a Key from a base directory and a host type name, applying
// Canonicalize and host.Parse.
func NewKey(baseDir, hostType string) (Key, error) {
	t, err := host.Parse(hostType)
	if err != nil {
		return Key{}, err
	}
	dir, err := Canonicalize(baseDir)
	if err != nil {
		return Key{}, err
	}
	return Key{BaseDir: dir, HostType: t}, nil
}
