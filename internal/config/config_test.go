package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://authority.example.com/api")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/deviceprotect" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.AppVersion != 1 {
		t.Errorf("AppVersion = %d, want 1", cfg.AppVersion)
	}
	if cfg.TokenIssuer != "deviceprotect-agent" {
		t.Errorf("TokenIssuer = %q", cfg.TokenIssuer)
	}
	if got := cfg.PollEvery(); got != 15*time.Minute {
		t.Errorf("PollEvery = %v, want 15m", got)
	}
	if got := cfg.MonitorEvery(); got != 2*time.Second {
		t.Errorf("MonitorEvery = %v, want 2s", got)
	}
	if got := cfg.DeviceTokenTTL(); got != 2*time.Minute {
		t.Errorf("DeviceTokenTTL = %v, want 2m", got)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	os.Clearenv()
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without API_BASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://authority.example.com/api")
	os.Setenv("POLL_INTERVAL", "5m")
	os.Setenv("MQTT_BROKER", "ssl://broker:8883")
	os.Setenv("APP_VERSION", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.PollEvery(); got != 5*time.Minute {
		t.Errorf("PollEvery = %v, want 5m", got)
	}
	if cfg.MQTTBroker != "ssl://broker:8883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.AppVersion != 7 {
		t.Errorf("AppVersion = %d, want 7", cfg.AppVersion)
	}
}

func TestLoad_InvalidAppVersion(t *testing.T) {
	os.Clearenv()
	os.Setenv("API_BASE_URL", "https://authority.example.com/api")
	os.Setenv("APP_VERSION", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted APP_VERSION=0")
	}
}

func TestDurationGetters_InvalidFallBack(t *testing.T) {
	cfg := &Config{PollInterval: "soon", HTTPTimeout: "-5s", MonitorInterval: "", TokenTTL: "xyz"}
	if got := cfg.PollEvery(); got != 15*time.Minute {
		t.Errorf("PollEvery = %v, want fallback", got)
	}
	if got := cfg.RequestTimeout(); got != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want fallback", got)
	}
	if got := cfg.MonitorEvery(); got != 2*time.Second {
		t.Errorf("MonitorEvery = %v, want fallback", got)
	}
	if got := cfg.DeviceTokenTTL(); got != 2*time.Minute {
		t.Errorf("DeviceTokenTTL = %v, want fallback", got)
	}
}
