package core

import (
	"context"
	"testing"
	"time"
)

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

func TestDefaultManagerBuilder(t *testing.T) {
	builder := defaultManagerBuilder()
	if builder.expiryBuffer != DefaultExpiryBuffer {
		t.Fatalf("expected default buffer, got %s", builder.expiryBuffer)
	}
	if builder.clock == nil {
		t.Fatalf("expected default clock")
	}
	if _, ok := builder.metricsRecorder.(NopMetricsRecorder); !ok {
		t.Fatalf("expected nop metrics recorder, got %T", builder.metricsRecorder)
	}
	if builder.resolveLogger() == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestWithExpiryBuffer_IgnoresNegative(t *testing.T) {
	builder := defaultManagerBuilder()
	WithExpiryBuffer(-time.Second)(&builder)
	if builder.expiryBuffer != DefaultExpiryBuffer {
		t.Fatalf("negative buffer must be ignored, got %s", builder.expiryBuffer)
	}
	WithExpiryBuffer(0)(&builder)
	if builder.expiryBuffer != 0 {
		t.Fatalf("zero buffer must be accepted, got %s", builder.expiryBuffer)
	}
}

func TestWithFlightTimeout_IgnoresNonPositive(t *testing.T) {
	builder := defaultManagerBuilder()
	if builder.flightTimeout != DefaultFlightTimeout {
		t.Fatalf("expected default flight timeout, got %s", builder.flightTimeout)
	}
	WithFlightTimeout(0)(&builder)
	WithFlightTimeout(-time.Second)(&builder)
	if builder.flightTimeout != DefaultFlightTimeout {
		t.Fatalf("non-positive timeout must be ignored, got %s", builder.flightTimeout)
	}
	WithFlightTimeout(5 * time.Second)(&builder)
	if builder.flightTimeout != 5*time.Second {
		t.Fatalf("expected 5s flight timeout, got %s", builder.flightTimeout)
	}
}

func TestResolveLogger_PrefersProvider(t *testing.T) {
	fromProvider := newCaptureLogger()
	direct := newCaptureLogger()
	builder := defaultManagerBuilder()
	WithLogger(direct)(&builder)
	WithLoggerProvider(captureLoggerProvider{logger: fromProvider})(&builder)

	builder.resolveLogger().Info("hello")
	if len(fromProvider.snapshot()) != 1 {
		t.Fatalf("expected provider logger to receive the entry")
	}
	if len(direct.snapshot()) != 0 {
		t.Fatalf("direct logger must not be used when a provider is set")
	}
}

func TestCfgxConfigProvider_AppliesRawValues(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"github": map[string]any{"app_id": "77", "auth_mode": "bearer"},
		"server": map[string]any{"port": 7000},
	}})
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GitHub.AppID != "77" || cfg.GitHub.AuthMode != AuthModeBearer {
		t.Fatalf("unexpected github config %#v", cfg.GitHub)
	}
	if cfg.Server.Port != 7000 {
		t.Fatalf("expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Server.RedirectURL != DefaultConfig().Server.RedirectURL {
		t.Fatalf("expected default redirect url, got %q", cfg.Server.RedirectURL)
	}
}

func TestCfgxConfigProvider_RejectsInvalid(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"store": map[string]any{"driver": "redis"},
	}})
	if _, err := provider.Load(context.Background(), DefaultConfig()); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestGoOptionsResolver_RuntimeWins(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{GitHub: GitHubConfig{AppID: "42", AuthMode: AuthModeBearer}, Server: ServerConfig{Port: 8080}}
	runtime := Config{Server: ServerConfig{Port: 9090}, Action: WebhookActionConfig{DebounceMS: 50}}

	cfg, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected runtime port, got %d", cfg.Server.Port)
	}
	if cfg.GitHub.AppID != "42" || cfg.GitHub.AuthMode != AuthModeBearer {
		t.Fatalf("expected loaded github values, got %#v", cfg.GitHub)
	}
	if cfg.Action.DebounceMS != 50 {
		t.Fatalf("expected runtime debounce, got %d", cfg.Action.DebounceMS)
	}
	if cfg.Action.Path != defaults.Action.Path {
		t.Fatalf("expected default action path, got %q", cfg.Action.Path)
	}
}

func TestLoadConfig_UsesProvider(t *testing.T) {
	loaded := DefaultConfig()
	loaded.GitHub.AppID = "99"
	cfg, err := LoadConfig(context.Background(), &fixedConfigProvider{cfg: loaded}, Config{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GitHub.AppID != "99" {
		t.Fatalf("expected provider app id, got %q", cfg.GitHub.AppID)
	}
}
