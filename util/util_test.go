package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.WriteFile(src, []byte("nameserver 10.0.0.1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old content that is longer than the new one\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst, 0644); err != nil {
		t.Fatalf("CopyFile() failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "nameserver 10.0.0.1\n" {
		t.Errorf("dst content = %q", data)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0644 {
		t.Errorf("dst mode = %o, want 0644", info.Mode().Perm())
	}

	if err := CopyFile(filepath.Join(dir, "missing"), dst, 0644); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()

	if err := RemoveIfExists(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("RemoveIfExists(missing) = %v", err)
	}

	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "nowhere"), link); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(link); err != nil {
		t.Fatalf("RemoveIfExists(dangling) = %v", err)
	}
	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Error("dangling symlink not removed")
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)

	if !FileExists(file) || !DirExists(dir) {
		t.Error("expected existing file and dir")
	}
	if DirExists(file) || FileExists(filepath.Join(dir, "nope")) {
		t.Error("unexpected existence")
	}
}
