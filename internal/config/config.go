// Package config loads portal configuration with the precedence
// defaults -> config file -> PORTAL_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the portal.
type Config struct {
	// HTTP listen address.
	ListenAddr string `mapstructure:"listen_addr"`

	// Externally visible base URL, used for OAuth redirects.
	BaseURL string `mapstructure:"base_url"`

	// Upstream abuse-report submission endpoint.
	ReportAPIURL string `mapstructure:"report_api_url"`

	// Upstream security-bulletin API base URL.
	SecurityAPIURL string `mapstructure:"security_api_url"`

	// Per-IP request allowance per sliding minute.
	RateLimitPerMin int `mapstructure:"rate_limit_per_min"`

	// Path to the shared SQLite rate store; empty selects the in-memory store.
	RateStorePath string `mapstructure:"rate_store_path"`

	// Delay between bulk dispatches, in milliseconds.
	SubmitDelayMS int `mapstructure:"submit_delay_ms"`

	// Identity provider settings for the browser login flow.
	OAuthClientID     string   `mapstructure:"oauth_client_id"`
	OAuthClientSecret string   `mapstructure:"oauth_client_secret"`
	OAuthAuthURL      string   `mapstructure:"oauth_auth_url"`
	OAuthTokenURL     string   `mapstructure:"oauth_token_url"`
	OAuthScopes       []string `mapstructure:"oauth_scopes"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		BaseURL:         "http://localhost:8080",
		ReportAPIURL:    "https://api.msrc.microsoft.com/report/v2.0/abuse",
		SecurityAPIURL:  "https://api.msrc.microsoft.com/sug/v2.0/en-US",
		RateLimitPerMin: 30,
		SubmitDelayMS:   2000,
	}
}

// Load reads configuration from an optional YAML file and the environment.
// If path is empty, a portal.yaml next to the binary is used when present;
// a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("report_api_url", defaults.ReportAPIURL)
	v.SetDefault("security_api_url", defaults.SecurityAPIURL)
	v.SetDefault("rate_limit_per_min", defaults.RateLimitPerMin)
	v.SetDefault("rate_store_path", "")
	v.SetDefault("submit_delay_ms", defaults.SubmitDelayMS)
	v.SetDefault("oauth_client_id", "")
	v.SetDefault("oauth_client_secret", "")
	v.SetDefault("oauth_auth_url", "")
	v.SetDefault("oauth_token_url", "")
	v.SetDefault("oauth_scopes", []string{"openid", "email"})

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("portal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.RateLimitPerMin <= 0 {
		return nil, fmt.Errorf("rate_limit_per_min must be positive, got %d", cfg.RateLimitPerMin)
	}
	return &cfg, nil
}
