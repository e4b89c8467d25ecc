// Package host describes the host operating systems chrootctl can prepare a
// chroot on.
//
// Each Type owns a Profile: the ordered mounts to establish before the first
// session starts, the order in which to release them, and the kernel modules
// that have to be present first. Adding a host type means adding one
// constant and one Profile entry; no caller branches on the type itself.
//
// Mount layout per host type:
//
//	debian                          freebsd
//	/proc      proc                 /proc          linprocfs
//	/sys       sysfs                /dev           devfs
//	/dev       bind of host /dev    /sys           linsysfs
//	/dev/pts   devpts               /lib/init/rw   tmpfs
//
// Both host types also receive a copy of the host's resolver configuration
// at /etc/resolv.conf.
package host

import (
	"fmt"
	"sort"
	"strings"
)

// Type identifies a host operating system family.
type Type string

const (
	Debian  Type = "debian"
	FreeBSD Type = "freebsd"
)

// MountSpec is one step of a mount sequence.
//
// Target is relative to the chroot base directory. An empty FSType means a
// bind mount of Source (Options carries "bind" on Linux, the driver picks
// nullfs on BSD).
type MountSpec struct {
	Source  string
	Target  string
	FSType  string
	Options []string
}

// IsBind reports whether the spec mounts an existing directory rather than
// a filesystem type.
func (m MountSpec) IsBind() bool {
	return m.FSType == ""
}

// Profile is the host-specific table driving setup and teardown.
type Profile struct {
	Type Type

	// Mounts are established in order; later entries may live below
	// earlier ones (dev/pts under dev).
	Mounts []MountSpec

	// Unmounts lists relative targets in teardown order.
	Unmounts []string

	// KernelModules are loaded before any mount. Already-loaded modules
	// are tolerated.
	KernelModules []string

	// ResolvConf requests a copy of the host resolver config.
	ResolvConf bool
}

var profiles = map[Type]Profile{
	Debian: {
		Type: Debian,
		Mounts: []MountSpec{
			{Source: "proc", Target: "proc", FSType: "proc"},
			{Source: "sysfs", Target: "sys", FSType: "sysfs"},
			{Source: "/dev", Target: "dev", Options: []string{"bind"}},
			{Source: "devpts", Target: "dev/pts", FSType: "devpts"},
		},
		Unmounts:   []string{"dev/pts", "dev", "sys", "proc"},
		ResolvConf: true,
	},
	FreeBSD: {
		Type: FreeBSD,
		Mounts: []MountSpec{
			{Source: "none", Target: "proc", FSType: "linprocfs"},
			{Source: "none", Target: "dev", FSType: "devfs"},
			{Source: "none", Target: "sys", FSType: "linsysfs"},
			{Source: "none", Target: "lib/init/rw", FSType: "tmpfs"},
		},
		Unmounts:      []string{"dev", "sys", "proc", "lib/init/rw"},
		KernelModules: []string{"fdescfs", "linprocfs", "linsysfs", "tmpfs"},
		ResolvConf:    true,
	},
}

// Parse converts a user-supplied name into a Type.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[t]; !ok {
		return "", &UnsupportedError{Value: s}
	}
	return t, nil
}

// ProfileFor returns the profile of t.
func ProfileFor(t Type) (Profile, error) {
	p, ok := profiles[t]
	if !ok {
		return Profile{}, &UnsupportedError{Value: string(t)}
	}
	return p, nil
}

// Supported lists the known host types in sorted order.
func Supported() []Type {
	types := make([]Type, 0, len(profiles))
	for t := range profiles {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Valid reports whether t is a known host type.
func (t Type) Valid() bool {
	_, ok := profiles[t]
	return ok
}

func (t Type) String() string {
	return string(t)
}

// UnsupportedError is returned for host types without a profile.
type UnsupportedError struct {
	Value string
}

func (e *UnsupportedError) Error() string {
	names := make([]string, 0, len(profiles))
	for _, t := range Supported() {
		names = append(names, string(t))
	}
	return fmt.Sprintf("host type %q not supported (supported: %s)", e.Value, strings.Join(names, ", "))
}
