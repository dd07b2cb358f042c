package enroll

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"device-protect/agent/internal/platform"
	"device-protect/agent/internal/state"
	"device-protect/agent/internal/state/domain"
)

func TestEnroll_Success(t *testing.T) {
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	dataDir := t.TempDir()

	e := New(store, policy, dataDir, "+15551234567", zerolog.Nop())
	st, err := e.Enroll(context.Background())
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if !st.SetupComplete {
		t.Error("SetupComplete = false")
	}
	if st.ProtectionState != domain.ProtectionEnabled {
		t.Errorf("ProtectionState = %s, want ENABLED", st.ProtectionState)
	}
	if st.UninstallAllowed {
		t.Error("UninstallAllowed = true after enrollment")
	}
	if st.DeviceID == "" {
		t.Error("DeviceID empty")
	}
	if st.AuthorizedCallerNumber != "+15551234567" {
		t.Errorf("AuthorizedCallerNumber = %q", st.AuthorizedCallerNumber)
	}
	if !policy.UninstallBlocked || !policy.Restricted {
		t.Error("device-owner restrictions not taken")
	}
	if _, err := os.Stat(filepath.Join(dataDir, KeyFileName)); err != nil {
		t.Errorf("signing key not written: %v", err)
	}
}

func TestEnroll_Idempotent(t *testing.T) {
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	e := New(store, policy, t.TempDir(), "+15551234567", zerolog.Nop())

	first, err := e.Enroll(context.Background())
	if err != nil {
		t.Fatalf("first Enroll: %v", err)
	}
	second, err := e.Enroll(context.Background())
	if err != nil {
		t.Fatalf("second Enroll: %v", err)
	}
	if first.DeviceID != second.DeviceID {
		t.Errorf("DeviceID changed: %q -> %q", first.DeviceID, second.DeviceID)
	}
}

func TestEnroll_RequiresPrivileges(t *testing.T) {
	store := state.NewMemoryStore()
	policy := platform.NewMemory()
	policy.IsElevated = false
	e := New(store, policy, t.TempDir(), "", zerolog.Nop())

	if _, err := e.Enroll(context.Background()); !errors.Is(err, ErrNotElevated) {
		t.Fatalf("err = %v, want ErrNotElevated", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, state.ErrNotFound) {
		t.Error("state persisted despite failed enrollment")
	}
}
