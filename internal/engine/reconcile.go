// Package engine computes the next device state and the side effects needed
// to reach it. Reconcile is a pure function: no I/O, no clock reads, total
// over every valid StateUpdate.
package engine

import (
	"time"

	"device-protect/agent/internal/command"
	"device-protect/agent/internal/state/domain"
)

// Engine holds the reconciliation constants.
type Engine struct {
	defaultMessage string
	appVersion     int
}

// New returns an Engine. defaultMessage is shown on the lock screen when no
// message was ever supplied; appVersion is the running build, used to decide
// whether an advertised update is newer.
func New(defaultMessage string, appVersion int) *Engine {
	return &Engine{defaultMessage: defaultMessage, appVersion: appVersion}
}

// Reconcile merges an incoming update into the current state and derives the
// actions required. It never fails: unrecognized verbs are a no-op for the
// lock/protection axes while the update's other fields still merge.
//
// Ordering rules:
//   - an auto-uninstall directive short-circuits everything else;
//   - bare is_freezed/is_protected flags apply only to axes the verb does
//     not cover (the verb wins ties);
//   - before enrollment completes, fields are recorded but no actions are
//     emitted.
func (e *Engine) Reconcile(cur domain.DeviceState, u command.StateUpdate, now time.Time) (domain.DeviceState, []Action) {
	if u.AutoUninstall {
		return e.reconcileUninstall(cur)
	}

	next := cur
	var actions []Action

	// Informational fields merge unconditionally when present.
	if u.Message != nil {
		next.Message = *u.Message
	}
	if u.Amount != nil {
		next.EMIAmount = *u.Amount
	}
	if u.CallTo != nil {
		next.AuthorizedCallerNumber = *u.CallTo
	}
	if u.HideIcon != nil {
		next.IconHidden = *u.HideIcon
		actions = append(actions, Action{Type: ActionSetIconHidden, Hidden: *u.HideIcon})
	}
	if len(u.UnlockCodes) > 0 {
		// A fresh non-empty delivery replaces the stored set entirely.
		next.UnlockCodeDigests = domain.DigestCodes(u.UnlockCodes)
	}

	lockCovered := u.Verb == command.VerbLockDevice ||
		u.Verb == command.VerbUnlockDevice ||
		u.Verb == command.VerbRemoveProtection
	protectionCovered := u.Verb == command.VerbRemoveProtection

	if u.Protected != nil && !protectionCovered {
		if *u.Protected {
			next.ProtectionState = domain.ProtectionEnabled
			actions = append(actions, Action{Type: ActionEnableAdminRestrictions})
		} else {
			next.ProtectionState = domain.ProtectionDisabled
			actions = append(actions, Action{Type: ActionDisableAdminRestrictions})
		}
	}
	if u.Locked != nil && !lockCovered {
		if *u.Locked {
			next.LockState = domain.LockFrozen
			actions = append(actions, e.lockDisplayAction(next, now))
		} else {
			next.LockState = domain.LockActive
			actions = append(actions,
				Action{Type: ActionHideLockScreen},
				Action{Type: ActionBroadcastUnlock})
		}
	}

	switch u.Verb {
	case command.VerbLockDevice:
		next.LockState = domain.LockFrozen
		actions = append(actions, e.lockDisplayAction(next, now))

	case command.VerbUnlockDevice:
		if u.ConsumeCode != "" && !next.HasUnlockCode(u.ConsumeCode) {
			// Replayed or never-issued code: the verb does nothing.
			break
		}
		next.LockState = domain.LockActive
		if u.ConsumeCode != "" {
			next.UnlockCodeDigests = next.WithoutUnlockCode(u.ConsumeCode)
		}
		actions = append(actions,
			Action{Type: ActionHideLockScreen},
			Action{Type: ActionBroadcastUnlock})

	case command.VerbTemporalUnlock:
		dur := u.BreakDuration
		if dur <= 0 {
			dur = 2 * time.Hour
		}
		// The break suppresses display only; LockState is untouched.
		next.BreakEnd = now.Add(dur)
		actions = append(actions,
			Action{Type: ActionHideLockScreen},
			scheduleBreakCheck(next.BreakEnd))

	case command.VerbRemoveProtection:
		next.ProtectionState = domain.ProtectionDisabled
		next.LockState = domain.LockActive
		actions = append(actions,
			Action{Type: ActionDisableAdminRestrictions},
			Action{Type: ActionHideLockScreen})

	case command.VerbBreakExpired:
		if next.OnBreak(now) {
			// Break was extended after this tick was scheduled.
			actions = append(actions, scheduleBreakCheck(next.BreakEnd))
		} else {
			next.BreakEnd = time.Time{}
			if next.LockState == domain.LockFrozen {
				actions = append(actions, showLockScreen(e.lockMessage(next)))
			}
		}

	default:
		// VerbNone, VerbSync, and unrecognized verbs: no axis change.
	}

	// Invariant: uninstallAllowed always mirrors the protection axis.
	next.UninstallAllowed = next.ProtectionState == domain.ProtectionDisabled

	if u.UpdateURL != "" && u.AppVersion > e.appVersion {
		actions = append(actions, Action{Type: ActionInstallUpdate, URL: u.UpdateURL, Version: u.AppVersion})
	}

	// Commands are recorded but not enacted until enrollment completes.
	if !cur.SetupComplete {
		return next, nil
	}
	return next, actions
}

// reconcileUninstall handles the auto-uninstall directive: all other
// processing is skipped, state resets to the cleared default, and (when
// enrolled) the teardown actions run with state cleared first so a failed
// uninstall leaves the device unprotected rather than stuck.
func (e *Engine) reconcileUninstall(cur domain.DeviceState) (domain.DeviceState, []Action) {
	next := domain.NewDeviceState(cur.DeviceID)
	if !cur.SetupComplete {
		return next, []Action{{Type: ActionClearState}}
	}
	return next, []Action{
		{Type: ActionClearState},
		{Type: ActionDisableAdminRestrictions},
		{Type: ActionSelfUninstall},
	}
}

// lockDisplayAction returns the display effect of entering FROZEN: the lock
// screen, or a deferred re-check while a break is active.
func (e *Engine) lockDisplayAction(next domain.DeviceState, now time.Time) Action {
	if next.OnBreak(now) {
		return scheduleBreakCheck(next.BreakEnd)
	}
	return showLockScreen(e.lockMessage(next))
}

func (e *Engine) lockMessage(s domain.DeviceState) string {
	if s.Message != "" {
		return s.Message
	}
	return e.defaultMessage
}
