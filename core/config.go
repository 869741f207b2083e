package core

import (
	"fmt"
	"strings"
)

const (
	AuthModeBasic  = "basic"
	AuthModeBearer = "bearer"

	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type GitHubConfig struct {
	APIBaseURL     string `koanf:"api_base_url" mapstructure:"api_base_url"`
	AppID          string `koanf:"app_id" mapstructure:"app_id"`
	ClientID       string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret   string `koanf:"client_secret" mapstructure:"client_secret"`
	PrivateKeyPath string `koanf:"private_key_path" mapstructure:"private_key_path"`
	User           string `koanf:"user" mapstructure:"user"`
	UserToken      string `koanf:"user_token" mapstructure:"user_token"`
	AuthMode       string `koanf:"auth_mode" mapstructure:"auth_mode"`
	WebhookSecret  string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	HTTPTimeoutSec int    `koanf:"http_timeout_sec" mapstructure:"http_timeout_sec"`
}

type TokenConfig struct {
	ExpiryBufferSec int `koanf:"expiry_buffer_sec" mapstructure:"expiry_buffer_sec"`
	AssertionTTLSec int `koanf:"assertion_ttl_sec" mapstructure:"assertion_ttl_sec"`
}

type StoreConfig struct {
	Driver      string `koanf:"driver" mapstructure:"driver"`
	Path        string `koanf:"path" mapstructure:"path"`
	DSN         string `koanf:"dsn" mapstructure:"dsn"`
	SealKey     string `koanf:"seal_key" mapstructure:"seal_key"`
	CacheTTLSec int    `koanf:"cache_ttl_sec" mapstructure:"cache_ttl_sec"`
}

type ServerConfig struct {
	Port        int    `koanf:"port" mapstructure:"port"`
	RedirectURL string `koanf:"redirect_url" mapstructure:"redirect_url"`
}

// WebhookActionConfig is the follow-up API call scheduled for accepted
// webhook deliveries.
type WebhookActionConfig struct {
	Path       string         `koanf:"path" mapstructure:"path"`
	Method     string         `koanf:"method" mapstructure:"method"`
	Body       map[string]any `koanf:"body" mapstructure:"body"`
	DebounceMS int            `koanf:"debounce_ms" mapstructure:"debounce_ms"`
}

type Config struct {
	ServiceName string              `koanf:"service_name" mapstructure:"service_name"`
	LogLevel    string              `koanf:"log_level" mapstructure:"log_level"`
	GitHub      GitHubConfig        `koanf:"github" mapstructure:"github"`
	Token       TokenConfig         `koanf:"token" mapstructure:"token"`
	Store       StoreConfig         `koanf:"store" mapstructure:"store"`
	Server      ServerConfig        `koanf:"server" mapstructure:"server"`
	Action      WebhookActionConfig `koanf:"action" mapstructure:"action"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "ghapp",
		LogLevel:    "info",
		GitHub: GitHubConfig{
			APIBaseURL:     "https://api.github.com",
			AuthMode:       AuthModeBasic,
			HTTPTimeoutSec: 30,
		},
		Token: TokenConfig{
			ExpiryBufferSec: int(DefaultExpiryBuffer.Seconds()),
			AssertionTTLSec: int(DefaultAssertionTTL.Seconds()),
		},
		Store: StoreConfig{
			Driver:      StoreDriverFile,
			Path:        ".data/gh_token.json",
			CacheTTLSec: 60,
		},
		Server: ServerConfig{
			Port:        5000,
			RedirectURL: "https://www.github.com",
		},
		Action: WebhookActionConfig{
			Path:       "repos/gh-training/gh-training.github.io/issues/1",
			Method:     "PATCH",
			Body:       map[string]any{"body": "ABC"},
			DebounceMS: 500,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return configError("service_name", "service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.GitHub.AuthMode)) {
	case AuthModeBasic, AuthModeBearer:
	default:
		return configError("github.auth_mode", fmt.Sprintf("github.auth_mode %q must be %q or %q", c.GitHub.AuthMode, AuthModeBasic, AuthModeBearer))
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case StoreDriverFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			return configError("store.path", "store.path is required for the file driver")
		}
	case StoreDriverSQLite, StoreDriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return configError("store.dsn", fmt.Sprintf("store.dsn is required for the %s driver", c.Store.Driver))
		}
	default:
		return configError("store.driver", fmt.Sprintf("unsupported store.driver %q", c.Store.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return configError("server.port", fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Token.ExpiryBufferSec < 0 {
		return configError("token.expiry_buffer_sec", "token.expiry_buffer_sec must not be negative")
	}
	if c.Token.AssertionTTLSec <= 0 || c.Token.AssertionTTLSec > 600 {
		return configError("token.assertion_ttl_sec", "token.assertion_ttl_sec must be between 1 and 600")
	}
	if c.GitHub.HTTPTimeoutSec <= 0 {
		return configError("github.http_timeout_sec", "github.http_timeout_sec must be positive")
	}
	if c.Action.DebounceMS < 0 {
		return configError("action.debounce_ms", "action.debounce_ms must not be negative")
	}
	return nil
}

func configError(field string, message string) error {
	return NewError(KindBadInput, "core: "+message, map[string]any{"field": field})
}

// MissingRequired lists the environment variables whose values are blank.
// The process still starts; callers are expected to warn.
func (c Config) MissingRequired() []string {
	checks := []struct {
		env   string
		value string
	}{
		{EnvUser, c.GitHub.User},
		{EnvUserToken, c.GitHub.UserToken},
		{EnvAPIBaseURL, c.GitHub.APIBaseURL},
		{EnvAppID, c.GitHub.AppID},
		{EnvClientID, c.GitHub.ClientID},
		{EnvClientSecret, c.GitHub.ClientSecret},
		{EnvPrivateKeyPath, c.GitHub.PrivateKeyPath},
	}
	missing := make([]string, 0, len(checks))
	for _, check := range checks {
		if strings.TrimSpace(check.value) == "" {
			missing = append(missing, check.env)
		}
	}
	return missing
}
