// Package config loads and validates agent config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds agent configuration loaded from the environment.
type Config struct {
	// DataDir is where the agent keeps its database and signing key.
	DataDir string `mapstructure:"DATA_DIR"`
	// APIBaseURL is the authority endpoint polled for desired state (e.g. https://authority.example.com/api).
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// PollInterval is the catch-up polling period (e.g. "15m").
	PollInterval string `mapstructure:"POLL_INTERVAL"`
	// HTTPTimeout bounds a single poll request (e.g. "15s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`
	// MonitorInterval is the defense loop tick period (e.g. "2s").
	MonitorInterval string `mapstructure:"MONITOR_INTERVAL"`

	// MQTTBroker is the command broker URL (e.g. ssl://broker:8883). Empty disables the push channel.
	MQTTBroker string `mapstructure:"MQTT_BROKER"`
	// MQTTUsername and MQTTPassword authenticate against the broker; optional.
	MQTTUsername string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword string `mapstructure:"MQTT_PASSWORD"`
	// MQTTSMSTopic, when set, enables the SMS-over-MQTT bridge source.
	MQTTSMSTopic string `mapstructure:"MQTT_SMS_TOPIC"`

	// AppLabel is the agent's user-visible name, matched by the uninstall defense.
	AppLabel string `mapstructure:"APP_LABEL"`
	// AppVersion is the running build number, compared against advertised updates.
	AppVersion int `mapstructure:"APP_VERSION"`
	// DefenseRulesPath points to an extra Rego rules file; empty uses the built-in rules only.
	DefenseRulesPath string `mapstructure:"DEFENSE_RULES_PATH"`
	// DefaultLockMessage is shown on the lock screen when the authority never supplied one.
	DefaultLockMessage string `mapstructure:"DEFAULT_LOCK_MESSAGE"`

	// OTLPEndpoint is the collector for metrics and journal logs; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// TokenIssuer is the iss claim on poll tokens.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// TokenAudience is the aud claim on poll tokens.
	TokenAudience string `mapstructure:"TOKEN_AUDIENCE"`
	// TokenTTL is the poll token lifetime (e.g. "2m").
	TokenTTL string `mapstructure:"TOKEN_TTL"`

	// AuthorizedNumber is the authority phone number trusted for SMS commands. Set at enrollment.
	AuthorizedNumber string `mapstructure:"AUTHORIZED_NUMBER"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATA_DIR", "/var/lib/deviceprotect")
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("POLL_INTERVAL", "15m")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("MONITOR_INTERVAL", "2s")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_SMS_TOPIC", "")
	v.SetDefault("APP_LABEL", "Device Protect")
	v.SetDefault("APP_VERSION", 1)
	v.SetDefault("DEFENSE_RULES_PATH", "")
	v.SetDefault("DEFAULT_LOCK_MESSAGE", "This device has been locked. Contact your provider.")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("TOKEN_ISSUER", "deviceprotect-agent")
	v.SetDefault("TOKEN_AUDIENCE", "deviceprotect-authority")
	v.SetDefault("TOKEN_TTL", "2m")
	v.SetDefault("AUTHORIZED_NUMBER", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		return nil, errors.New("config: DATA_DIR must be set")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	if cfg.AppVersion <= 0 {
		return nil, errors.New("config: APP_VERSION must be positive")
	}

	return &cfg, nil
}

// PollEvery parses PollInterval as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) PollEvery() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RequestTimeout parses HTTPTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// MonitorEvery parses MonitorInterval as a time.Duration. Returns 2s if unset or invalid.
func (c *Config) MonitorEvery() time.Duration {
	d, err := time.ParseDuration(c.MonitorInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// DeviceTokenTTL parses TokenTTL as a time.Duration. Returns 2m if unset or invalid.
func (c *Config) DeviceTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}
