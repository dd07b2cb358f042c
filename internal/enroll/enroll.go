// Package enroll performs first-time device setup: identity, signing key,
// device-owner restrictions, and the initial protected state. Until it runs,
// the reconciler records commands but enforces nothing.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/security"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

// KeyFileName is the signing key's file name under the data directory.
const KeyFileName = "device.key"

// ErrNotElevated is returned when enrollment is attempted without
// device-owner privileges. Nothing is persisted in that case.
var ErrNotElevated = errors.New("enroll: device-owner privileges required")

// Enroller performs setup.
type Enroller struct {
	store  state.Store
	policy platform.DevicePolicy
	log    zerolog.Logger

	dataDir          string
	authorizedNumber string
}

// New returns an Enroller writing the key under dataDir.
func New(store state.Store, policy platform.DevicePolicy, dataDir, authorizedNumber string, log zerolog.Logger) *Enroller {
	return &Enroller{
		store:            store,
		policy:           policy,
		log:              log.With().Str("component", "enroll").Logger(),
		dataDir:          dataDir,
		authorizedNumber: authorizedNumber,
	}
}

// Enroll sets the device up and returns the enrolled state. Idempotent: a
// device that already completed setup is returned unchanged. Requires
// device-owner privileges; without them nothing is persisted.
func (e *Enroller) Enroll(ctx context.Context) (domain.DeviceState, error) {
	existing, err := e.store.Load(ctx)
	if err == nil && existing.SetupComplete {
		e.log.Info().Str("device_id", existing.DeviceID).Msg("already enrolled")
		return existing, nil
	}
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return domain.DeviceState{}, fmt.Errorf("enroll: load state: %w", err)
	}

	if !e.policy.Elevated(ctx) {
		return domain.DeviceState{}, ErrNotElevated
	}

	key, err := security.GenerateKey()
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("enroll: generate key: %w", err)
	}
	keyPath := filepath.Join(e.dataDir, KeyFileName)
	if err := security.WriteKey(key, keyPath); err != nil {
		return domain.DeviceState{}, fmt.Errorf("enroll: write key: %w", err)
	}

	if err := e.policy.SetUninstallBlocked(ctx, true); err != nil {
		return domain.DeviceState{}, fmt.Errorf("enroll: block uninstall: %w", err)
	}
	if err := e.policy.SetRestrictions(ctx, true); err != nil {
		return domain.DeviceState{}, fmt.Errorf("enroll: set restrictions: %w", err)
	}

	st := domain.NewDeviceState(uuid.New().String())
	st.SetupComplete = true
	st.ProtectionState = domain.ProtectionEnabled
	st.UninstallAllowed = false
	st.AuthorizedCallerNumber = e.authorizedNumber
	if err := e.store.Save(ctx, st); err != nil {
		return domain.DeviceState{}, fmt.Errorf("enroll: persist state: %w", err)
	}

	e.log.Info().Str("device_id", st.DeviceID).Msg("enrollment complete")
	return st, nil
}
