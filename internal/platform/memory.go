package platform

import (
	"context"
	"sync"
)

// Memory is an in-memory DevicePolicy used in tests and as a dry-run
// stand-in. It records every call and exposes the resulting flags.
type Memory struct {
	mu sync.Mutex

	// IsElevated controls Elevated and whether restriction calls succeed.
	IsElevated bool
	// Snapshot is returned by ForegroundSnapshot.
	Snapshot Snapshot

	LockVisible      bool
	LockMessage      string
	LockAmount       int
	LockCallTo       string
	UninstallBlocked bool
	Restricted       bool
	IconHidden       bool
	Uninstalled      bool
	InstalledURLs    []string
	NavigatedAway    []string

	// Calls lists every method invocation in order, for assertions.
	Calls []string
}

// NewMemory returns a Memory policy holding device-owner privileges.
func NewMemory() *Memory {
	return &Memory{IsElevated: true}
}

func (m *Memory) record(call string) {
	m.Calls = append(m.Calls, call)
}

// Visible reads the lock-screen flag under the mutex, for tests that poll
// while another goroutine actuates.
func (m *Memory) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LockVisible
}

func (m *Memory) Elevated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsElevated
}

func (m *Memory) ShowLockScreen(ctx context.Context, message string, amount int, callTo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("show_lock_screen")
	m.LockVisible = true
	m.LockMessage = message
	m.LockAmount = amount
	m.LockCallTo = callTo
	return nil
}

func (m *Memory) HideLockScreen(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("hide_lock_screen")
	m.LockVisible = false
	return nil
}

func (m *Memory) SetUninstallBlocked(ctx context.Context, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set_uninstall_blocked")
	if !m.IsElevated {
		return ErrNotElevated
	}
	m.UninstallBlocked = blocked
	return nil
}

func (m *Memory) SetRestrictions(ctx context.Context, restricted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set_restrictions")
	if !m.IsElevated {
		return ErrNotElevated
	}
	m.Restricted = restricted
	return nil
}

func (m *Memory) SetIconHidden(ctx context.Context, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("set_icon_hidden")
	m.IconHidden = hidden
	return nil
}

func (m *Memory) ForegroundSnapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("foreground_snapshot")
	return m.Snapshot, nil
}

func (m *Memory) NavigateAway(ctx context.Context, notice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("navigate_away")
	m.NavigatedAway = append(m.NavigatedAway, notice)
	return nil
}

func (m *Memory) InstallPackage(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("install_package")
	m.InstalledURLs = append(m.InstalledURLs, url)
	return nil
}

func (m *Memory) SelfUninstall(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("self_uninstall")
	m.Uninstalled = true
	return nil
}
