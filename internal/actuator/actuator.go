// Package actuator executes reconciliation actions against the platform
// device-policy surface. Actions are applied sequentially per batch and are
// idempotent: applying show-lock-screen twice is harmless.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/engine"
	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

// Result reports the outcome of applying one action.
type Result struct {
	Action engine.Action
	// Degraded is set when the action needed device-owner privileges the
	// agent does not hold and enforcement fell back to monitoring-only
	// defense.
	Degraded bool
	Err      error
}

// Actuator applies actions. It never crashes the agent on privilege loss;
// restriction actions degrade and are retried on the next reconciliation.
type Actuator struct {
	policy      platform.DevicePolicy
	store       state.Store
	broadcaster *UnlockBroadcaster
	log         zerolog.Logger
	degraded    atomic.Bool
}

// New returns an Actuator enforcing through policy. store is needed for
// clear-state, broadcaster for unlock fan-out.
func New(policy platform.DevicePolicy, store state.Store, broadcaster *UnlockBroadcaster, log zerolog.Logger) *Actuator {
	return &Actuator{
		policy:      policy,
		store:       store,
		broadcaster: broadcaster,
		log:         log.With().Str("component", "actuator").Logger(),
	}
}

// Degraded reports whether the last restriction action fell back to
// monitoring-only mode.
func (a *Actuator) Degraded() bool { return a.degraded.Load() }

// Apply executes one action. The state value carries the display fields
// (amount, callback number) the lock screen needs.
func (a *Actuator) Apply(ctx context.Context, act engine.Action, st domain.DeviceState) Result {
	res := Result{Action: act}
	switch act.Type {
	case engine.ActionShowLockScreen:
		res.Err = a.policy.ShowLockScreen(ctx, act.Message, st.EMIAmount, st.AuthorizedCallerNumber)

	case engine.ActionHideLockScreen:
		res.Err = a.policy.HideLockScreen(ctx)

	case engine.ActionBroadcastUnlock:
		a.broadcaster.Broadcast()

	case engine.ActionEnableAdminRestrictions:
		res = a.applyRestrictions(ctx, act, true)

	case engine.ActionDisableAdminRestrictions:
		res = a.applyRestrictions(ctx, act, false)

	case engine.ActionSetIconHidden:
		res.Err = a.policy.SetIconHidden(ctx, act.Hidden)

	case engine.ActionClearState:
		res.Err = a.store.Clear(ctx)

	case engine.ActionSelfUninstall:
		// State is already cleared; a failed uninstall leaves the device
		// unprotected rather than stuck.
		if err := a.policy.SelfUninstall(ctx); err != nil {
			a.log.Error().Err(err).Msg("self-uninstall failed")
		}

	case engine.ActionInstallUpdate:
		if err := a.policy.InstallPackage(ctx, act.URL); err != nil {
			a.log.Warn().Err(err).Int("version", act.Version).Msg("update install failed")
		}

	case engine.ActionScheduleBreakCheck:
		// Scheduling belongs to the reconciler worker, never here.
		res.Err = fmt.Errorf("actuator: unexpected action %s", act.Type)

	default:
		res.Err = fmt.Errorf("actuator: unknown action %q", act.Type)
	}

	if res.Err != nil {
		a.log.Error().Err(res.Err).Stringer("action", act).Msg("action failed")
	}
	return res
}

func (a *Actuator) applyRestrictions(ctx context.Context, act engine.Action, on bool) Result {
	res := Result{Action: act}
	err := a.policy.SetUninstallBlocked(ctx, on)
	if err == nil {
		err = a.policy.SetRestrictions(ctx, on)
	}
	if errors.Is(err, platform.ErrNotElevated) {
		// Privileges were revoked: fall back to the heuristic UI defense
		// rather than failing outright.
		a.degraded.Store(true)
		a.log.Warn().Stringer("action", act).Msg("not device owner, degrading to monitoring-only defense")
		res.Degraded = true
		return res
	}
	if err == nil {
		a.degraded.Store(false)
	}
	res.Err = err
	return res
}
