package botvac

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshp123/gobotvac/internal/blob"
	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/internal/rate"
	"github.com/joshp123/gobotvac/internal/retry"
)

// Config is the runtime configuration of the botvac plugin.
type Config struct {
	Email     string
	Password  string
	TokenType TokenType
	FleetURL  string
	DeviceURL string

	PollInterval time.Duration
	RequestLimit rate.Limit
	AuthRetry    retry.Policy
	ListRetry    retry.Policy
	RefreshRetry retry.Policy

	CredentialDir string
	Blob          *blob.S3Config
	OAuth         *OAuthConfig
	MQTT          *MQTTConfig
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
}

type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// ConfigFrom resolves file references in cfg and applies plugin defaults.
func ConfigFrom(cfg *config.BotvacConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("botvac config is required")
	}

	tokenType, err := ParseTokenType(cfg.TokenType)
	if err != nil {
		return Config{}, fmt.Errorf("botvac token_type: %w", err)
	}

	out := Config{
		Email:         strings.TrimSpace(cfg.Email),
		TokenType:     tokenType,
		FleetURL:      cfg.FleetBaseURL,
		DeviceURL:     cfg.DeviceBaseURL,
		PollInterval:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
		RequestLimit:  rate.Limit{Provider: pluginID, PerMinute: cfg.RequestsPerMinute},
		AuthRetry:     policyFrom(cfg.AuthRetry, retry.Unbounded(defaultRetryDelay)),
		ListRetry:     policyFrom(cfg.ListRetry, retry.Unbounded(defaultRetryDelay)),
		RefreshRetry:  policyFrom(cfg.RefreshRetry, retry.Attempts(3, 0)),
		CredentialDir: cfg.CredentialStore.Dir,
	}

	if cfg.PasswordFile != "" {
		password, err := blob.ReadSecretFile(cfg.PasswordFile)
		if err != nil {
			return Config{}, fmt.Errorf("read botvac password: %w", err)
		}
		out.Password = password
	}

	if store := cfg.CredentialStore; store.BlobEnabled() {
		out.Blob = &blob.S3Config{
			Endpoint:      store.BlobEndpoint,
			Bucket:        store.BlobBucket,
			Prefix:        store.BlobPrefix,
			Region:        store.BlobRegion,
			AccessKeyFile: store.BlobAccessKeyFile,
			SecretKeyFile: store.BlobSecretKeyFile,
		}
	}

	if cfg.OAuth != nil {
		refreshToken, err := blob.ReadSecretFile(cfg.OAuth.RefreshTokenFile)
		if err != nil {
			return Config{}, fmt.Errorf("read botvac refresh token: %w", err)
		}
		out.OAuth = &OAuthConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			RefreshToken: refreshToken,
		}
	}

	if cfg.MQTT != nil {
		m := &MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}
		if cfg.MQTT.PasswordFile != "" {
			password, err := blob.ReadSecretFile(cfg.MQTT.PasswordFile)
			if err != nil {
				return Config{}, fmt.Errorf("read mqtt password: %w", err)
			}
			m.Password = password
		}
		out.MQTT = m
	}

	if out.TokenType == TokenSession && out.Email == "" {
		return Config{}, fmt.Errorf("botvac email is required for session tokens")
	}
	return out, nil
}

func policyFrom(cfg *config.RetryConfig, fallback retry.Policy) retry.Policy {
	if cfg == nil {
		return fallback
	}
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       time.Duration(cfg.DelaySeconds * float64(time.Second)),
		Multiplier:  cfg.Multiplier,
	}
}
