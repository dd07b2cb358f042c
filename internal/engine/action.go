package engine

import (
	"fmt"
	"time"
)

// ActionType identifies a side effect requested by reconciliation.
type ActionType string

const (
	// ActionShowLockScreen brings the dismiss-resistant lock UI to the
	// foreground with the stored message.
	ActionShowLockScreen ActionType = "show_lock_screen"
	// ActionHideLockScreen dismisses the lock UI.
	ActionHideLockScreen ActionType = "hide_lock_screen"
	// ActionBroadcastUnlock notifies in-process observers; fire-and-forget.
	ActionBroadcastUnlock ActionType = "broadcast_unlock"
	// ActionEnableAdminRestrictions turns on the uninstall block and the
	// restricted-user-action list.
	ActionEnableAdminRestrictions ActionType = "enable_admin_restrictions"
	// ActionDisableAdminRestrictions clears them.
	ActionDisableAdminRestrictions ActionType = "disable_admin_restrictions"
	// ActionSetIconHidden toggles launcher-icon visibility.
	ActionSetIconHidden ActionType = "set_icon_hidden"
	// ActionClearState wipes the local durable state.
	ActionClearState ActionType = "clear_state"
	// ActionSelfUninstall removes the agent, best-effort, after state is
	// cleared.
	ActionSelfUninstall ActionType = "self_uninstall"
	// ActionInstallUpdate downloads and installs a newer agent build.
	ActionInstallUpdate ActionType = "install_update"
	// ActionScheduleBreakCheck asks the reconciler worker (not the
	// actuator) to re-enter the engine at the given time with a synthetic
	// break-expired tick.
	ActionScheduleBreakCheck ActionType = "schedule_break_check"
)

// Action is one side effect of a reconciliation step. Only the fields
// relevant to its Type are set.
type Action struct {
	Type ActionType

	// Message accompanies ActionShowLockScreen.
	Message string
	// Hidden accompanies ActionSetIconHidden.
	Hidden bool
	// URL and Version accompany ActionInstallUpdate.
	URL     string
	Version int
	// At accompanies ActionScheduleBreakCheck.
	At time.Time
}

func (a Action) String() string {
	switch a.Type {
	case ActionShowLockScreen:
		return fmt.Sprintf("%s(%q)", a.Type, a.Message)
	case ActionSetIconHidden:
		return fmt.Sprintf("%s(%t)", a.Type, a.Hidden)
	case ActionInstallUpdate:
		return fmt.Sprintf("%s(v%d)", a.Type, a.Version)
	case ActionScheduleBreakCheck:
		return fmt.Sprintf("%s(%s)", a.Type, a.At.Format(time.RFC3339))
	default:
		return string(a.Type)
	}
}

func showLockScreen(message string) Action {
	return Action{Type: ActionShowLockScreen, Message: message}
}

func scheduleBreakCheck(at time.Time) Action {
	return Action{Type: ActionScheduleBreakCheck, At: at}
}
