package mount

import "fmt"

// MountError represents a failed mount, unmount, mkdir or kldload step.
type MountError struct {
	Op     string // Operation: "mount", "unmount", "mkdir", "kldload"
	Path   string // Target path, or module name for kldload
	FSType string // Filesystem type (optional, for mount)
	Source string // Source (optional, for mount)
	Err    error  // Underlying error
}

func (e *MountError) Error() string {
	if e.FSType != "" {
		return fmt.Sprintf("%s failed for %s (type=%s, source=%s): %v",
			e.Op, e.Path, e.FSType, e.Source, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}
