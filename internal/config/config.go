// Package config loads the daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	SchemaVersion              = 1
	DefaultPath                = "/etc/gobotvac/config.yaml"
	DefaultGRPCAddr            = "0.0.0.0:9000"
	DefaultHTTPAddr            = "0.0.0.0:8080"
	DefaultDashboardDir        = "/var/lib/gobotvac/dashboards"
	DefaultCredentialDir       = "/var/lib/gobotvac/credentials"
	DefaultPollIntervalSeconds = 60
	DefaultTopicPrefix         = "gobotvac"
	EnvPrefix                  = "GOBOTVAC"
)

type Config struct {
	SchemaVersion int           `mapstructure:"schema_version"`
	Core          CoreConfig    `mapstructure:"core"`
	Botvac        *BotvacConfig `mapstructure:"botvac"`
}

type CoreConfig struct {
	GRPCAddr     string `mapstructure:"grpc_addr"`
	HTTPAddr     string `mapstructure:"http_addr"`
	DashboardDir string `mapstructure:"dashboard_dir"`
}

type BotvacConfig struct {
	Email               string `mapstructure:"email"`
	PasswordFile        string `mapstructure:"password_file"`
	TokenType           string `mapstructure:"token_type"`
	FleetBaseURL        string `mapstructure:"fleet_base_url"`
	DeviceBaseURL       string `mapstructure:"device_base_url"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	// RequestsPerMinute caps outbound Neato requests. 0 disables the budget.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	AuthRetry    *RetryConfig `mapstructure:"auth_retry"`
	ListRetry    *RetryConfig `mapstructure:"list_retry"`
	RefreshRetry *RetryConfig `mapstructure:"refresh_retry"`

	CredentialStore CredentialStoreConfig `mapstructure:"credential_store"`
	OAuth           *OAuthConfig          `mapstructure:"oauth"`
	MQTT            *MQTTConfig           `mapstructure:"mqtt"`
}

// RetryConfig mirrors retry.Policy. max_attempts 0 retries forever.
type RetryConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	DelaySeconds float64 `mapstructure:"delay_seconds"`
	Multiplier   float64 `mapstructure:"multiplier"`
}

type CredentialStoreConfig struct {
	Dir               string `mapstructure:"dir"`
	BlobEndpoint      string `mapstructure:"blob_endpoint"`
	BlobBucket        string `mapstructure:"blob_bucket"`
	BlobPrefix        string `mapstructure:"blob_prefix"`
	BlobRegion        string `mapstructure:"blob_region"`
	BlobAccessKeyFile string `mapstructure:"blob_access_key_file"`
	BlobSecretKeyFile string `mapstructure:"blob_secret_key_file"`
}

// BlobEnabled reports whether an S3 mirror is configured.
func (c CredentialStoreConfig) BlobEnabled() bool {
	return c.BlobEndpoint != ""
}

type OAuthConfig struct {
	ClientID         string `mapstructure:"client_id"`
	ClientSecret     string `mapstructure:"client_secret"`
	TokenURL         string `mapstructure:"token_url"`
	RefreshTokenFile string `mapstructure:"refresh_token_file"`
}

type MQTTConfig struct {
	Broker       string `mapstructure:"broker"`
	Username     string `mapstructure:"username"`
	PasswordFile string `mapstructure:"password_file"`
	TopicPrefix  string `mapstructure:"topic_prefix"`
}

// Load reads a YAML or TOML config file, applies defaults and GOBOTVAC_*
// environment overrides, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if !v.IsSet("botvac") {
		cfg.Botvac = nil
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("core.grpc_addr", DefaultGRPCAddr)
	v.SetDefault("core.http_addr", DefaultHTTPAddr)
	v.SetDefault("core.dashboard_dir", DefaultDashboardDir)
}

func applyDefaults(cfg *Config) {
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}

	b := cfg.Botvac
	if b == nil {
		return
	}
	if b.TokenType == "" {
		b.TokenType = "session"
	}
	if b.PollIntervalSeconds == 0 {
		b.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if b.CredentialStore.Dir == "" {
		b.CredentialStore.Dir = DefaultCredentialDir
	}
	if b.MQTT != nil && b.MQTT.TopicPrefix == "" {
		b.MQTT.TopicPrefix = DefaultTopicPrefix
	}
}

// Validate enforces required invariants beyond field typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if cfg.Core.GRPCAddr == "" {
		return errors.New("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return errors.New("core.http_addr is required")
	}

	b := cfg.Botvac
	if b == nil {
		return nil
	}
	switch b.TokenType {
	case "session":
		if b.OAuth != nil {
			return errors.New("botvac.oauth requires token_type oauth")
		}
	case "oauth":
		if b.OAuth == nil {
			return errors.New("botvac.oauth is required for token_type oauth")
		}
		if b.OAuth.TokenURL == "" {
			return errors.New("botvac.oauth.token_url is required")
		}
		if b.OAuth.RefreshTokenFile == "" {
			return errors.New("botvac.oauth.refresh_token_file is required")
		}
	default:
		return fmt.Errorf("botvac.token_type %q must be session or oauth", b.TokenType)
	}
	if b.PollIntervalSeconds < 0 {
		return errors.New("botvac.poll_interval_seconds must not be negative")
	}
	if b.RequestsPerMinute < 0 {
		return errors.New("botvac.requests_per_minute must not be negative")
	}
	for name, r := range map[string]*RetryConfig{
		"auth_retry":    b.AuthRetry,
		"list_retry":    b.ListRetry,
		"refresh_retry": b.RefreshRetry,
	} {
		if r == nil {
			continue
		}
		if r.MaxAttempts < 0 || r.DelaySeconds < 0 || r.Multiplier < 0 {
			return fmt.Errorf("botvac.%s values must not be negative", name)
		}
	}
	store := b.CredentialStore
	if store.BlobEnabled() {
		if store.BlobBucket == "" {
			return errors.New("botvac.credential_store.blob_bucket is required")
		}
		if store.BlobAccessKeyFile == "" || store.BlobSecretKeyFile == "" {
			return errors.New("botvac.credential_store blob key files are required")
		}
	}
	if b.MQTT != nil && b.MQTT.Broker == "" {
		return errors.New("botvac.mqtt.broker is required")
	}
	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.Botvac != nil {
		enabled["botvac"] = true
	}
	return enabled
}
