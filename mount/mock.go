package mount

import (
	"context"
	"fmt"
	"sync"
)

// Call records one MockDriver invocation.
type Call struct {
	Op     string // "mount", "unmount", "kldload"
	Target string // absolute target, or module name for kldload
	FSType string
}

// MockDriver is an in-memory Driver for tests.
//
// It keeps a mount table so lazy semantics match CommandDriver: mounting a
// mounted target and unmounting an unmounted one are recorded as skipped.
// Errors can be injected per target.
type MockDriver struct {
	mu sync.Mutex

	mounted map[string]bool

	// Calls lists operations that were actually performed, in order.
	Calls []Call

	// Skipped lists lazy no-ops (already mounted / not mounted).
	Skipped []Call

	// MountErrors and UnmountErrors fail the operation on the given target.
	MountErrors   map[string]error
	UnmountErrors map[string]error

	// ModuleErrors fails loading the given modules.
	ModuleErrors map[string]error
}

// NewMockDriver creates an empty MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		mounted:       make(map[string]bool),
		MountErrors:   make(map[string]error),
		UnmountErrors: make(map[string]error),
		ModuleErrors:  make(map[string]error),
	}
}

// Compile-time interface check
var _ Driver = (*MockDriver)(nil)

// SetMounted marks target as mounted without recording a call.
func (m *MockDriver) SetMounted(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounted[target] = true
}

func (m *MockDriver) Mount(ctx context.Context, spec Spec) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Op: "mount", Target: spec.Target, FSType: spec.FSType}
	if m.mounted[spec.Target] {
		m.Skipped = append(m.Skipped, call)
		return false, nil
	}
	if err := m.MountErrors[spec.Target]; err != nil {
		return false, &MountError{Op: "mount", Path: spec.Target, FSType: spec.FSType, Source: spec.Source, Err: err}
	}
	m.mounted[spec.Target] = true
	m.Calls = append(m.Calls, call)
	return true, nil
}

func (m *MockDriver) Unmount(ctx context.Context, target string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := Call{Op: "unmount", Target: target}
	if err := m.UnmountErrors[target]; err != nil {
		return false, &MountError{Op: "unmount", Path: target, Err: err}
	}
	if !m.mounted[target] {
		m.Skipped = append(m.Skipped, call)
		return false, nil
	}
	delete(m.mounted, target)
	m.Calls = append(m.Calls, call)
	return true, nil
}

func (m *MockDriver) IsMounted(target string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted[target], nil
}

func (m *MockDriver) LoadModules(ctx context.Context, modules ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []string
	for _, mod := range modules {
		if m.ModuleErrors[mod] != nil {
			failed = append(failed, mod)
			continue
		}
		m.Calls = append(m.Calls, Call{Op: "kldload", Target: mod})
	}
	if len(failed) > 0 {
		return fmt.Errorf("kldload failed for %v", failed)
	}
	return nil
}

// CallsByOp returns the performed calls with the given Op.
func (m *MockDriver) CallsByOp(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// MountedTargets returns the number of targets currently mounted.
func (m *MockDriver) MountedTargets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mounted)
}
