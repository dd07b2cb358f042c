package defense

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newDetector(t *testing.T) *RegoDetector {
	t.Helper()
	d, err := NewRegoDetector("Device Protect", "")
	if err != nil {
		t.Fatalf("NewRegoDetector: %v", err)
	}
	return d
}

func TestInspect_SelfTargetedUninstall(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.android.settings", []string{
		"App info", "Device Protect", "Uninstall", "Force stop",
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f == nil {
		t.Fatal("self-targeted uninstall screen not flagged")
	}
	if f.Rule != "self_targeted" {
		t.Errorf("Rule = %q, want self_targeted", f.Rule)
	}
}

func TestInspect_OtherAppUninstallAllowed(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.android.settings", []string{
		"App info", "Some Game", "Uninstall", "Force stop",
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f != nil {
		t.Errorf("flagged unrelated app management: %+v", f)
	}
}

func TestInspect_RestrictedPackage(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.android.settings.deviceadminadd", nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f == nil || f.Rule != "restricted_package" {
		t.Fatalf("finding = %+v, want restricted_package", f)
	}
}

func TestInspect_DeviceAdminScreen(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.android.settings", []string{
		"Device admin apps", "Deactivate",
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f == nil {
		t.Fatal("device admin screen not flagged")
	}
}

func TestInspect_MatchingIsCaseInsensitive(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.android.settings", []string{
		"DEVICE PROTECT", "UNINSTALL",
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f == nil {
		t.Fatal("uppercase screen text not flagged")
	}
}

func TestInspect_HarmlessScreen(t *testing.T) {
	d := newDetector(t)
	f, err := d.Inspect(context.Background(), "com.example.browser", []string{"News", "Sports"})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f != nil {
		t.Errorf("harmless screen flagged: %+v", f)
	}
}

func TestNewRegoDetector_CustomRules(t *testing.T) {
	rules := `package agent.defense

findings contains f if {
	input.package == "com.vendor.cleaner"
	f := {"rule": "vendor_cleaner", "term": input.package}
}
`
	path := filepath.Join(t.TempDir(), "custom.rego")
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	d, err := NewRegoDetector("Device Protect", path)
	if err != nil {
		t.Fatalf("NewRegoDetector: %v", err)
	}
	f, err := d.Inspect(context.Background(), "com.vendor.cleaner", nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if f == nil || f.Rule != "vendor_cleaner" {
		t.Fatalf("finding = %+v, want vendor_cleaner", f)
	}
}

func TestNewRegoDetector_BadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rego")
	if err := os.WriteFile(path, []byte("not rego at all {"), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := NewRegoDetector("Device Protect", path); err == nil {
		t.Fatal("invalid rules accepted")
	}
}
