package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

const (
	EnvUser             = "GH_USER"
	EnvUserToken        = "GH_USER_TOKEN"
	EnvAPIBaseURL       = "API_BASE_URL"
	EnvAppID            = "GH_APP_ID"
	EnvClientID         = "GH_APP_CLIENT_ID"
	EnvClientSecret     = "GH_APP_CLIENT_SECRET"
	EnvPrivateKeyPath   = "GH_APP_PRIVATE_KEY_PATH"
	EnvTokenStoragePath = "GH_TOKEN_STORAGE_PATH"
	EnvWebhookSecret    = "GH_WEBHOOK_SECRET"
	EnvAuthMode         = "GH_AUTH_MODE"
	EnvStoreDriver      = "GH_STORE_DRIVER"
	EnvStoreDSN         = "GH_STORE_DSN"
	EnvTokenSealKey     = "GH_TOKEN_SEAL_KEY"
	EnvPort             = "PORT"
	EnvLogLevel         = "LOG_LEVEL"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// EnvConfigLoader maps process environment variables onto the raw config
// tree. Unset or blank variables are left out so defaults apply.
type EnvConfigLoader struct {
	LookupEnv func(key string) (string, bool)
}

var envPaths = []struct {
	env  string
	path []string
}{
	{EnvUser, []string{"github", "user"}},
	{EnvUserToken, []string{"github", "user_token"}},
	{EnvAPIBaseURL, []string{"github", "api_base_url"}},
	{EnvAppID, []string{"github", "app_id"}},
	{EnvClientID, []string{"github", "client_id"}},
	{EnvClientSecret, []string{"github", "client_secret"}},
	{EnvPrivateKeyPath, []string{"github", "private_key_path"}},
	{EnvWebhookSecret, []string{"github", "webhook_secret"}},
	{EnvAuthMode, []string{"github", "auth_mode"}},
	{EnvTokenStoragePath, []string{"store", "path"}},
	{EnvStoreDriver, []string{"store", "driver"}},
	{EnvStoreDSN, []string{"store", "dsn"}},
	{EnvTokenSealKey, []string{"store", "seal_key"}},
	{EnvLogLevel, []string{"log_level"}},
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, entry := range envPaths {
		value, ok := lookup(entry.env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		setPath(raw, entry.path, strings.TrimSpace(value))
	}
	if value, ok := lookup(EnvPort); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("core: %s %q is not a number", EnvPort, value)
		}
		setPath(raw, []string{"server", "port"}, port)
	}
	return raw, nil
}

func setPath(raw map[string]any, path []string, value any) {
	node := raw
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

// Resolve layers defaults < loaded < runtime. Zero values in the upper
// layers never override lower ones.
func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig reads the provider and merges runtime overrides on top.
func LoadConfig(ctx context.Context, provider ConfigProvider, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(EnvConfigLoader{})
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString := func(path []string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			setPath(layer, path, value)
		}
	}
	putInt := func(path []string, value int) {
		if includeZero || value != 0 {
			setPath(layer, path, value)
		}
	}

	putString([]string{"service_name"}, cfg.ServiceName)
	putString([]string{"log_level"}, cfg.LogLevel)

	putString([]string{"github", "api_base_url"}, cfg.GitHub.APIBaseURL)
	putString([]string{"github", "app_id"}, cfg.GitHub.AppID)
	putString([]string{"github", "client_id"}, cfg.GitHub.ClientID)
	putString([]string{"github", "client_secret"}, cfg.GitHub.ClientSecret)
	putString([]string{"github", "private_key_path"}, cfg.GitHub.PrivateKeyPath)
	putString([]string{"github", "user"}, cfg.GitHub.User)
	putString([]string{"github", "user_token"}, cfg.GitHub.UserToken)
	putString([]string{"github", "auth_mode"}, cfg.GitHub.AuthMode)
	putString([]string{"github", "webhook_secret"}, cfg.GitHub.WebhookSecret)
	putInt([]string{"github", "http_timeout_sec"}, cfg.GitHub.HTTPTimeoutSec)

	putInt([]string{"token", "expiry_buffer_sec"}, cfg.Token.ExpiryBufferSec)
	putInt([]string{"token", "assertion_ttl_sec"}, cfg.Token.AssertionTTLSec)

	putString([]string{"store", "driver"}, cfg.Store.Driver)
	putString([]string{"store", "path"}, cfg.Store.Path)
	putString([]string{"store", "dsn"}, cfg.Store.DSN)
	putString([]string{"store", "seal_key"}, cfg.Store.SealKey)
	putInt([]string{"store", "cache_ttl_sec"}, cfg.Store.CacheTTLSec)

	putInt([]string{"server", "port"}, cfg.Server.Port)
	putString([]string{"server", "redirect_url"}, cfg.Server.RedirectURL)

	putString([]string{"action", "path"}, cfg.Action.Path)
	putString([]string{"action", "method"}, cfg.Action.Method)
	putInt([]string{"action", "debounce_ms"}, cfg.Action.DebounceMS)
	if includeZero || len(cfg.Action.Body) > 0 {
		body := make(map[string]any, len(cfg.Action.Body))
		for key, value := range cfg.Action.Body {
			body[key] = value
		}
		setPath(layer, []string{"action", "body"}, body)
	}
	return layer
}

type managerBuilder struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	clock           Clock
	expiryBuffer    time.Duration
	flightTimeout   time.Duration
}

type Option func(*managerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *managerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *managerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *managerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithClock(clock Clock) Option {
	return func(b *managerBuilder) {
		b.clock = clock
	}
}

// WithExpiryBuffer overrides the safety margin; negative values are ignored.
func WithExpiryBuffer(buffer time.Duration) Option {
	return func(b *managerBuilder) {
		if buffer >= 0 {
			b.expiryBuffer = buffer
		}
	}
}

// WithFlightTimeout bounds one coalesced exchange, including the store
// write. Non-positive values are ignored.
func WithFlightTimeout(timeout time.Duration) Option {
	return func(b *managerBuilder) {
		if timeout > 0 {
			b.flightTimeout = timeout
		}
	}
}

func defaultManagerBuilder() managerBuilder {
	return managerBuilder{
		metricsRecorder: NopMetricsRecorder{},
		clock:           time.Now,
		expiryBuffer:    DefaultExpiryBuffer,
		flightTimeout:   DefaultFlightTimeout,
	}
}

func (b managerBuilder) resolveLogger() Logger {
	_, logger := glog.Resolve("ghapp.tokens", b.loggerProvider, b.logger)
	return logger
}
