// Package platform declares the device-policy surface the agent enforces
// against. The OS binding (device-owner APIs, lock UI, package installer)
// lives outside this repository; the agent only depends on this interface.
package platform

import (
	"context"
	"errors"
)

// ErrNotElevated is returned by policy calls that need device-owner
// privileges when the agent does not hold them. The actuator degrades to
// monitoring-only defense instead of failing.
var ErrNotElevated = errors.New("platform: device owner privileges required")

// Snapshot is a text capture of the foreground UI, used by the uninstall
// defense detector.
type Snapshot struct {
	// Package is the foreground application package identifier.
	Package string
	// Texts are the visible text fragments of the window tree.
	Texts []string
}

// DevicePolicy is the external platform collaborator.
//
// Lock-screen and icon calls must be idempotent; applying them twice is
// harmless. Restriction calls fail with ErrNotElevated when the agent lost
// device-owner privileges.
type DevicePolicy interface {
	// Elevated reports whether the agent currently holds device-owner
	// privileges.
	Elevated(ctx context.Context) bool

	// ShowLockScreen brings the dismiss-resistant lock UI to the
	// foreground with the message, amount owed, and permitted callback
	// number.
	ShowLockScreen(ctx context.Context, message string, amount int, callTo string) error
	// HideLockScreen dismisses the lock UI.
	HideLockScreen(ctx context.Context) error

	// SetUninstallBlocked toggles the platform uninstall block.
	SetUninstallBlocked(ctx context.Context, blocked bool) error
	// SetRestrictions toggles the fixed allow-list of restricted user
	// actions (apps control, uninstall, debugging, USB transfer).
	SetRestrictions(ctx context.Context, restricted bool) error

	// SetIconHidden toggles launcher-icon visibility.
	SetIconHidden(ctx context.Context, hidden bool) error

	// ForegroundSnapshot captures the current foreground UI text.
	ForegroundSnapshot(ctx context.Context) (Snapshot, error)
	// NavigateAway forces the user off the current screen (home, then
	// back) and surfaces the denial notice.
	NavigateAway(ctx context.Context, notice string) error

	// InstallPackage downloads and installs an agent update. Best-effort.
	InstallPackage(ctx context.Context, url string) error
	// SelfUninstall removes the agent package. Best-effort; local state
	// must already be cleared by the caller.
	SelfUninstall(ctx context.Context) error
}
