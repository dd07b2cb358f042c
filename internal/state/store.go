// Package state persists the device's last-known desired state. The store is
// the single shared mutable resource of the agent; all writes go through the
// reconciler worker.
package state

import (
	"context"
	"errors"

	"device-protect/agent/internal/state/domain"
)

// ErrNotFound is returned by Load when no state has been persisted yet
// (device not enrolled).
var ErrNotFound = errors.New("state: not found")

// Store is the durable record of DeviceState.
type Store interface {
	// Load returns the persisted state, or ErrNotFound before enrollment.
	Load(ctx context.Context) (domain.DeviceState, error)
	// Save replaces the persisted state.
	Save(ctx context.Context, s domain.DeviceState) error
	// Clear removes the persisted state entirely (protection removal /
	// self-uninstall).
	Clear(ctx context.Context) error
}
