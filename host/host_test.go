package host

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"debian", Debian, false},
		{"DEBIAN", Debian, false},
		{" freebsd ", FreeBSD, false},
		{"FreeBSD", FreeBSD, false},
		{"gentoo", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				var ue *UnsupportedError
				if !errors.As(err, &ue) {
					t.Errorf("expected *UnsupportedError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProfile_DebianOrder(t *testing.T) {
	p, err := ProfileFor(Debian)
	if err != nil {
		t.Fatalf("ProfileFor() failed: %v", err)
	}

	var targets []string
	for _, m := range p.Mounts {
		targets = append(targets, m.Target)
	}
	if want := []string{"proc", "sys", "dev", "dev/pts"}; !reflect.DeepEqual(targets, want) {
		t.Errorf("mount order = %v, want %v", targets, want)
	}
	if want := []string{"dev/pts", "dev", "sys", "proc"}; !reflect.DeepEqual(p.Unmounts, want) {
		t.Errorf("unmount order = %v, want %v", p.Unmounts, want)
	}
	if !p.Mounts[2].IsBind() || p.Mounts[2].Source != "/dev" {
		t.Errorf("dev should be a bind of /dev: %+v", p.Mounts[2])
	}
	if len(p.KernelModules) != 0 {
		t.Errorf("debian should load no modules: %v", p.KernelModules)
	}
	if !p.ResolvConf {
		t.Error("debian should copy resolv.conf")
	}
}

func TestProfile_FreeBSDOrder(t *testing.T) {
	p, err := ProfileFor(FreeBSD)
	if err != nil {
		t.Fatalf("ProfileFor() failed: %v", err)
	}

	var fstypes []string
	for _, m := range p.Mounts {
		fstypes = append(fstypes, m.FSType)
	}
	if want := []string{"linprocfs", "devfs", "linsysfs", "tmpfs"}; !reflect.DeepEqual(fstypes, want) {
		t.Errorf("fstypes = %v, want %v", fstypes, want)
	}
	if want := []string{"dev", "sys", "proc", "lib/init/rw"}; !reflect.DeepEqual(p.Unmounts, want) {
		t.Errorf("unmount order = %v, want %v", p.Unmounts, want)
	}
	if want := []string{"fdescfs", "linprocfs", "linsysfs", "tmpfs"}; !reflect.DeepEqual(p.KernelModules, want) {
		t.Errorf("modules = %v, want %v", p.KernelModules, want)
	}
}

// Every mounted target must be released, and nested targets before their parents.
func TestProfiles_UnmountCoversMounts(t *testing.T) {
	for _, typ := range Supported() {
		t.Run(string(typ), func(t *testing.T) {
			p, _ := ProfileFor(typ)
			pos := make(map[string]int)
			for i, u := range p.Unmounts {
				pos[u] = i
			}
			for _, m := range p.Mounts {
				if _, ok := pos[m.Target]; !ok {
					t.Errorf("target %s is never unmounted", m.Target)
				}
			}
			if i, ok := pos["dev/pts"]; ok && i > pos["dev"] {
				t.Error("dev/pts must be unmounted before dev")
			}
		})
	}
}

func TestProfileFor_Unsupported(t *testing.T) {
	if _, err := ProfileFor(Type("plan9")); err == nil {
		t.Fatal("expected error")
	}
	if Type("plan9").Valid() {
		t.Error("plan9 should not be valid")
	}
	if !Debian.Valid() {
		t.Error("debian should be valid")
	}
}
