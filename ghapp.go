// Package ghapp assembles a GitHub App bot: the installation token lifecycle,
// the authenticated REST client, webhook intake and the HTTP surface.
package ghapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ghapp/adapters/gocommand"
	"github.com/goliatone/go-ghapp/adapters/gologger"
	"github.com/goliatone/go-ghapp/auth"
	ghappcommand "github.com/goliatone/go-ghapp/command"
	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/providers/github"
	ghappquery "github.com/goliatone/go-ghapp/query"
	"github.com/goliatone/go-ghapp/server"
	"github.com/goliatone/go-ghapp/transport"
	"github.com/goliatone/go-ghapp/webhooks"
)

type Config = core.Config

type TokenRecord = core.TokenRecord

type TokenState = core.TokenState

type CredentialStore = core.CredentialStore

type ManagerOption = core.Option

var (
	WithManagerLogger = core.WithLogger
	WithClock         = core.WithClock
	WithExpiryBuffer  = core.WithExpiryBuffer
	WithMetrics       = core.WithMetricsRecorder
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig layers defaults, environment and runtime overrides. Zero
// values in runtime leave the lower layers untouched.
func LoadConfig(ctx context.Context, runtime Config) (Config, error) {
	return core.LoadConfig(ctx, nil, runtime)
}

type Option func(*appOptions)

type appOptions struct {
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
	httpClient     transport.HTTPDoer
	keys           auth.KeySource
	managerOpts    []core.Option
}

func WithLogger(logger glog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(o *appOptions) {
		o.loggerProvider = provider
	}
}

// WithHTTPClient replaces the outbound HTTP client used for the token
// exchange and REST calls.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *appOptions) {
		o.httpClient = client
	}
}

// WithKeySource replaces the private key file configured in GitHubConfig.
func WithKeySource(keys auth.KeySource) Option {
	return func(o *appOptions) {
		o.keys = keys
	}
}

func WithManagerOptions(opts ...core.Option) Option {
	return func(o *appOptions) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}

// App owns every long-lived component of the bot.
type App struct {
	cfg       Config
	logger    glog.Logger
	manager   *core.Manager
	client    *github.Client
	facade    *Facade
	debouncer *webhooks.Debouncer
	webhook   *webhooks.Handler
	server    *server.Server
	bus       *gocommand.Bus
}

func New(cfg Config, store CredentialStore, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.WrapContext(err, "ghapp: invalid config", nil)
	}
	if store == nil {
		return nil, core.NewError(core.KindBadInput, "ghapp: credential store is required", nil)
	}
	options := appOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	provider, logger := gologger.Resolve(cfg.ServiceName, options.loggerProvider, options.logger)

	timeout := time.Duration(cfg.GitHub.HTTPTimeoutSec) * time.Second
	keys := options.keys
	if keys == nil {
		keys = auth.FileKeySource{Path: cfg.GitHub.PrivateKeyPath}
	}
	signer := auth.NewAssertionSigner(auth.AssertionSignerConfig{
		Keys: keys,
		TTL:  time.Duration(cfg.Token.AssertionTTLSec) * time.Second,
	})
	exchanger, err := github.NewExchanger(github.ExchangerConfig{
		BaseURL:    cfg.GitHub.APIBaseURL,
		HTTPClient: options.httpClient,
		Signer:     signer,
		Timeout:    timeout,
	})
	if err != nil {
		return nil, err
	}

	managerOpts := append([]core.Option{
		core.WithLoggerProvider(provider),
		core.WithExpiryBuffer(time.Duration(cfg.Token.ExpiryBufferSec) * time.Second),
		core.WithFlightTimeout(2 * timeout),
	}, options.managerOpts...)
	manager, err := core.NewManager(store, exchanger, managerOpts...)
	if err != nil {
		return nil, err
	}

	authorizer, err := auth.NewAuthorizer(cfg.GitHub.AuthMode, cfg.GitHub.User, cfg.GitHub.UserToken, manager)
	if err != nil {
		return nil, err
	}
	client, err := github.NewClient(github.ClientConfig{
		BaseURL:        cfg.GitHub.APIBaseURL,
		HTTPClient:     options.httpClient,
		Authorizer:     authorizer,
		Timeout:        timeout,
		LoggerProvider: provider,
	})
	if err != nil {
		return nil, err
	}

	facade, err := NewFacade(manager, client)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		manager:  manager,
		client:   client,
		facade:   facade,
		bus:      gocommand.NewBus(nil),
	}
	if err := app.registerHandlers(); err != nil {
		app.bus.Close()
		return nil, err
	}

	app.debouncer = webhooks.NewDebouncer(webhooks.DebounceOptions{
		Window:  time.Duration(cfg.Action.DebounceMS) * time.Millisecond,
		Timeout: timeout,
		Logger:  provider.GetLogger("ghapp.webhooks.debounce"),
	})
	app.webhook = webhooks.NewHandler(webhooks.HandlerConfig{
		Secret:         []byte(cfg.GitHub.WebhookSecret),
		Debouncer:      app.debouncer,
		Action:         app.webhookAction(),
		ActionKey:      actionKey(cfg.Action),
		LoggerProvider: provider,
	})

	srv, err := server.New(server.Config{
		Port:           cfg.Server.Port,
		AppID:          cfg.GitHub.AppID,
		RedirectURL:    cfg.Server.RedirectURL,
		Install:        facade.Commands().Install,
		State:          facade.Queries().TokenState,
		Webhook:        app.webhook,
		LoggerProvider: provider,
	})
	if err != nil {
		app.bus.Close()
		return nil, err
	}
	app.server = srv
	return app, nil
}

func (a *App) Config() Config {
	return a.cfg
}

func (a *App) Manager() *core.Manager {
	return a.manager
}

func (a *App) Client() *github.Client {
	return a.client
}

func (a *App) Facade() *Facade {
	return a.facade
}

func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// RetrieveToken returns the current installation token, refreshing it when
// it is inside the expiry buffer.
func (a *App) RetrieveToken(ctx context.Context) (string, error) {
	return a.facade.RetrieveToken(ctx)
}

// Call performs an authenticated REST call with this app's client. The
// dispatcher subscriptions serve callers outside the app; app methods never
// go through them, since every live App subscribes to the same messages.
func (a *App) Call(ctx context.Context, path string, method string, body any) error {
	return a.facade.Commands().CallAPI.Execute(ctx, ghappcommand.CallAPIMessage{Path: path, Method: method, Body: body})
}

// TokenStatus reports the stored record state with the token masked.
func (a *App) TokenStatus(ctx context.Context) (ghappquery.TokenStatus, error) {
	return a.facade.Queries().TokenState.Query(ctx, ghappquery.TokenStateMessage{})
}

// Refresh forces a new token exchange for the stored installation.
func (a *App) Refresh(ctx context.Context) error {
	return a.facade.Commands().Refresh.Execute(ctx, ghappcommand.RefreshMessage{})
}

func (a *App) ListenAndServe() error {
	return a.server.ListenAndServe()
}

// Shutdown stops the listener, drops pending webhook actions and releases
// dispatcher subscriptions.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.debouncer != nil {
		errs = append(errs, a.debouncer.Close(ctx))
	}
	a.bus.Close()
	return errors.Join(errs...)
}

func (a *App) registerHandlers() error {
	commands := a.facade.Commands()
	queries := a.facade.Queries()
	if err := gocommand.HandleCommand(a.bus, commands.Install); err != nil {
		return err
	}
	if err := gocommand.HandleCommand(a.bus, commands.Refresh); err != nil {
		return err
	}
	if err := gocommand.HandleCommand(a.bus, commands.CallAPI); err != nil {
		return err
	}
	if err := gocommand.HandleQuery(a.bus, queries.RetrieveToken); err != nil {
		return err
	}
	if err := gocommand.HandleQuery(a.bus, queries.TokenState); err != nil {
		return err
	}
	return a.bus.Initialize()
}

func (a *App) webhookAction() webhooks.Action {
	action := a.cfg.Action
	if strings.TrimSpace(action.Path) == "" {
		return nil
	}
	return func(ctx context.Context) error {
		return a.Call(ctx, action.Path, action.Method, action.Body)
	}
}

func actionKey(action core.WebhookActionConfig) string {
	method := strings.ToUpper(strings.TrimSpace(action.Method))
	if method == "" {
		method = http.MethodPatch
	}
	return method + " " + strings.TrimSpace(action.Path)
}
