package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/actuator"
	"device-protect/agent/internal/command"
	"device-protect/agent/internal/engine"
	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

type testRig struct {
	worker *Worker
	store  *state.MemoryStore
	policy *platform.Memory
	cancel context.CancelFunc
}

func startWorker(t *testing.T) *testRig {
	t.Helper()
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	act := actuator.New(policy, store, actuator.NewUnlockBroadcaster(), zerolog.Nop())
	eng := engine.New("locked", 1)
	w := New(store, eng, act, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(cancel)

	st := domain.NewDeviceState("dev-1")
	st.SetupComplete = true
	st.ProtectionState = domain.ProtectionEnabled
	st.UninstallAllowed = false
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	return &testRig{worker: w, store: store, policy: policy, cancel: cancel}
}

func TestProcess_LockPersistsAndActuates(t *testing.T) {
	rig := startWorker(t)
	ctx := context.Background()

	next, err := rig.worker.Process(ctx, command.StateUpdate{
		Source: command.SourcePush,
		Verb:   command.VerbLockDevice,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if next.LockState != domain.LockFrozen {
		t.Errorf("LockState = %s, want FROZEN", next.LockState)
	}

	persisted, err := rig.store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.LockState != domain.LockFrozen {
		t.Errorf("persisted LockState = %s, want FROZEN", persisted.LockState)
	}
	if !rig.policy.LockVisible {
		t.Error("lock screen not shown")
	}
}

func TestProcess_SerializesConcurrentUpdates(t *testing.T) {
	rig := startWorker(t)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(lock bool) {
			defer func() { done <- struct{}{} }()
			verb := command.VerbLockDevice
			if !lock {
				verb = command.VerbUnlockDevice
			}
			if _, err := rig.worker.Process(ctx, command.StateUpdate{Verb: verb}); err != nil {
				t.Errorf("Process: %v", err)
			}
		}(i%2 == 0)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	// Whatever the interleaving, the persisted state is one of the two valid
	// outcomes and the invariant holds.
	st, err := rig.store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.LockState != domain.LockFrozen && st.LockState != domain.LockActive {
		t.Errorf("LockState = %q", st.LockState)
	}
	if st.UninstallAllowed != (st.ProtectionState == domain.ProtectionDisabled) {
		t.Error("uninstall invariant broken under concurrency")
	}
}

func TestWorker_BreakExpiryRelocks(t *testing.T) {
	rig := startWorker(t)
	ctx := context.Background()

	if _, err := rig.worker.Process(ctx, command.StateUpdate{Verb: command.VerbLockDevice}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	next, err := rig.worker.Process(ctx, command.StateUpdate{
		Verb:          command.VerbTemporalUnlock,
		BreakDuration: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("break: %v", err)
	}
	if next.LockState != domain.LockFrozen {
		t.Fatalf("LockState = %s, break must keep FROZEN", next.LockState)
	}
	if rig.policy.Visible() {
		t.Error("lock screen still visible during break")
	}

	deadline := time.After(2 * time.Second)
	for {
		st, err := rig.store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if st.BreakEnd.IsZero() && rig.policy.Visible() {
			return // relocked after expiry
		}
		select {
		case <-deadline:
			t.Fatalf("device did not relock after break expiry: %+v", st)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_SelfUninstallRunsShutdown(t *testing.T) {
	rig := startWorker(t)
	ctx := context.Background()

	stopped := make(chan struct{})
	rig.worker.OnSelfUninstall(func() { close(stopped) })

	if _, err := rig.worker.Process(ctx, command.StateUpdate{
		Source:        command.SourcePoll,
		AutoUninstall: true,
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	select {
	case <-stopped:
	default:
		t.Fatal("shutdown hook not invoked")
	}
	if !rig.policy.Uninstalled {
		t.Error("self-uninstall not applied")
	}
	if _, err := rig.store.Load(ctx); err == nil {
		t.Error("state survived uninstall")
	}
}

func TestSubmit_UnenrolledDeviceRecordsWithoutEnforcing(t *testing.T) {
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	act := actuator.New(policy, store, actuator.NewUnlockBroadcaster(), zerolog.Nop())
	w := New(store, engine.New("locked", 1), act, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	next, err := w.Process(ctx, command.StateUpdate{Verb: command.VerbLockDevice})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if next.LockState != domain.LockFrozen {
		t.Errorf("LockState = %s, field must merge", next.LockState)
	}
	if policy.LockVisible {
		t.Error("lock screen shown before enrollment")
	}
}
