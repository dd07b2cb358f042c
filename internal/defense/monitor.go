package defense

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
	"device-protect/agent/internal/telemetry"
)

// Monitor runs the periodic defense loop: it re-asserts the lock screen while
// the device is frozen and inspects the foreground UI when enforcement is
// degraded to monitoring-only.
type Monitor struct {
	store    state.Store
	policy   platform.DevicePolicy
	detector Detector
	metrics  *telemetry.Metrics
	log      zerolog.Logger

	interval       time.Duration
	defaultMessage string
	notice         string
}

// NewMonitor returns a Monitor ticking at interval. metrics may be nil in
// tests.
func NewMonitor(store state.Store, policy platform.DevicePolicy, detector Detector, metrics *telemetry.Metrics, interval time.Duration, defaultMessage string, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:          store,
		policy:         policy,
		detector:       detector,
		metrics:        metrics,
		log:            log.With().Str("component", "defense").Logger(),
		interval:       interval,
		defaultMessage: defaultMessage,
		notice:         "This action is not allowed while the device is protected.",
	}
}

// Run ticks until ctx ends. Each tick is best-effort; a failing check is
// retried on the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	st, err := m.store.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("load state")
		return
	}
	if !st.SetupComplete {
		return
	}

	now := time.Now()
	if st.LockState == domain.LockFrozen && !st.OnBreak(now) {
		msg := st.Message
		if msg == "" {
			msg = m.defaultMessage
		}
		if err := m.policy.ShowLockScreen(ctx, msg, st.EMIAmount, st.AuthorizedCallerNumber); err != nil {
			m.log.Warn().Err(err).Msg("re-assert lock screen")
		}
	}

	if st.ProtectionState != domain.ProtectionEnabled {
		return
	}
	if m.policy.Elevated(ctx) {
		// Device-owner restrictions already block the dangerous screens.
		return
	}
	snap, err := m.policy.ForegroundSnapshot(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("foreground snapshot")
		return
	}
	if snap.Package == "" && len(snap.Texts) == 0 {
		return
	}
	finding, err := m.detector.Inspect(ctx, snap.Package, snap.Texts)
	if err != nil {
		m.log.Warn().Err(err).Msg("inspect foreground")
		return
	}
	if finding == nil {
		return
	}
	m.log.Info().Str("rule", finding.Rule).Str("term", finding.Term).Msg("dangerous screen blocked")
	if m.metrics != nil {
		m.metrics.DefenseTriggered(ctx, finding.Rule)
	}
	if err := m.policy.NavigateAway(ctx, m.notice); err != nil {
		m.log.Warn().Err(err).Msg("navigate away")
	}
}
