package unlock

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/actuator"
	"device-protect/agent/internal/engine"
	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/reconciler"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

func startValidator(t *testing.T, codes ...string) (*Validator, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	act := actuator.New(policy, store, actuator.NewUnlockBroadcaster(), zerolog.Nop())
	worker := reconciler.New(store, engine.New("locked", 1), act, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = worker.Run(ctx) }()
	t.Cleanup(cancel)

	st := domain.NewDeviceState("dev-1")
	st.SetupComplete = true
	st.LockState = domain.LockFrozen
	st.UnlockCodeDigests = domain.DigestCodes(codes)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	return NewValidator(store, worker, zerolog.Nop()), store
}

func TestTryUnlock_ValidCode(t *testing.T) {
	v, store := startValidator(t, "1234", "5678")

	next, err := v.TryUnlock(context.Background(), "1234")
	if err != nil {
		t.Fatalf("TryUnlock: %v", err)
	}
	if next.LockState != domain.LockActive {
		t.Errorf("LockState = %s, want ACTIVE", next.LockState)
	}

	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.HasUnlockCode(domain.CodeDigest("1234")) {
		t.Error("consumed code still stored")
	}
	if !persisted.HasUnlockCode(domain.CodeDigest("5678")) {
		t.Error("unrelated code lost")
	}
}

func TestTryUnlock_CodeIsSingleUse(t *testing.T) {
	v, _ := startValidator(t, "1234")

	if _, err := v.TryUnlock(context.Background(), "1234"); err != nil {
		t.Fatalf("first TryUnlock: %v", err)
	}
	if _, err := v.TryUnlock(context.Background(), "1234"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("second TryUnlock: err = %v, want ErrInvalidCode", err)
	}
}

func TestTryUnlock_UnknownCode(t *testing.T) {
	v, store := startValidator(t, "1234")

	if _, err := v.TryUnlock(context.Background(), "0000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("err = %v, want ErrInvalidCode", err)
	}
	st, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.LockState != domain.LockFrozen {
		t.Errorf("LockState = %s, rejected code must not unlock", st.LockState)
	}
}

func TestTryUnlock_WhitespaceTolerant(t *testing.T) {
	v, _ := startValidator(t, "1234")
	if _, err := v.TryUnlock(context.Background(), " 1234 "); err != nil {
		t.Fatalf("TryUnlock: %v", err)
	}
}
