// Package unlock validates offline unlock codes entered on the lock screen.
package unlock

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/command"
	"device-protect/agent/internal/reconciler"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

// ErrInvalidCode is returned when the entered code matches no stored code.
// Spent codes are indistinguishable from never-issued ones.
var ErrInvalidCode = errors.New("unlock: invalid code")

// Validator checks an entered code against the stored digest set and, on a
// match, unlocks through the reconciler so the code is consumed and the
// transition is serialized like any other command.
type Validator struct {
	store  state.Store
	worker *reconciler.Worker
	log    zerolog.Logger
}

// NewValidator returns a Validator.
func NewValidator(store state.Store, worker *reconciler.Worker, log zerolog.Logger) *Validator {
	return &Validator{
		store:  store,
		worker: worker,
		log:    log.With().Str("component", "unlock").Logger(),
	}
}

// TryUnlock attempts an offline unlock with the entered code. On success the
// device is unlocked, the code is spent, and the resulting state is returned.
// A second attempt with the same code fails with ErrInvalidCode.
func (v *Validator) TryUnlock(ctx context.Context, code string) (domain.DeviceState, error) {
	digest := domain.CodeDigest(code)

	// Pre-check outside the worker so garbage input never occupies the
	// reconciliation queue. The authoritative check happens inside the
	// serialized transition below.
	cur, err := v.store.Load(ctx)
	if err != nil {
		return domain.DeviceState{}, err
	}
	if !cur.HasUnlockCode(digest) {
		v.log.Warn().Msg("offline unlock rejected")
		return domain.DeviceState{}, ErrInvalidCode
	}

	next, err := v.worker.Process(ctx, command.StateUpdate{
		Source:      command.SourceInternal,
		Verb:        command.VerbUnlockDevice,
		ConsumeCode: digest,
	})
	if err != nil {
		return domain.DeviceState{}, err
	}
	v.log.Info().Msg("offline unlock accepted")
	return next, nil
}
