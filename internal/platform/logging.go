package platform

import (
	"context"

	"github.com/rs/zerolog"
)

// Logging is a dry-run DevicePolicy that logs every call instead of touching
// the OS. It stands in until a real platform binding is linked in, and is
// what cmd/agent wires by default.
type Logging struct {
	log      zerolog.Logger
	elevated bool
}

// NewLogging returns a Logging policy. elevated controls whether restriction
// calls pretend to succeed or report missing privileges.
func NewLogging(log zerolog.Logger, elevated bool) *Logging {
	return &Logging{log: log.With().Str("component", "platform").Logger(), elevated: elevated}
}

func (l *Logging) Elevated(ctx context.Context) bool { return l.elevated }

func (l *Logging) ShowLockScreen(ctx context.Context, message string, amount int, callTo string) error {
	l.log.Info().Str("message", message).Int("amount", amount).Str("call_to", callTo).Msg("show lock screen")
	return nil
}

func (l *Logging) HideLockScreen(ctx context.Context) error {
	l.log.Info().Msg("hide lock screen")
	return nil
}

func (l *Logging) SetUninstallBlocked(ctx context.Context, blocked bool) error {
	if !l.elevated {
		return ErrNotElevated
	}
	l.log.Info().Bool("blocked", blocked).Msg("set uninstall blocked")
	return nil
}

func (l *Logging) SetRestrictions(ctx context.Context, restricted bool) error {
	if !l.elevated {
		return ErrNotElevated
	}
	l.log.Info().Bool("restricted", restricted).Msg("set user restrictions")
	return nil
}

func (l *Logging) SetIconHidden(ctx context.Context, hidden bool) error {
	l.log.Info().Bool("hidden", hidden).Msg("set icon hidden")
	return nil
}

func (l *Logging) ForegroundSnapshot(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, nil
}

func (l *Logging) NavigateAway(ctx context.Context, notice string) error {
	l.log.Warn().Str("notice", notice).Msg("navigate away")
	return nil
}

func (l *Logging) InstallPackage(ctx context.Context, url string) error {
	l.log.Info().Str("url", url).Msg("install package")
	return nil
}

func (l *Logging) SelfUninstall(ctx context.Context) error {
	l.log.Warn().Msg("self uninstall")
	return nil
}
