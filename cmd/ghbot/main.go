// ghbot runs the GitHub App webhook bot: it stores installation tokens
// received on /authenticate and reacts to deliveries on /webhook.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/pflag"

	ghapp "github.com/goliatone/go-ghapp"
	"github.com/goliatone/go-ghapp/adapters/gologger"
	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/security"
	filestore "github.com/goliatone/go-ghapp/store/file"
	sqlstore "github.com/goliatone/go-ghapp/store/sql"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var runtime ghapp.Config
	var noCache bool

	flagSet := pflag.NewFlagSet("ghbot", pflag.ContinueOnError)
	flagSet.IntVarP(&runtime.Server.Port, "port", "p", 0, "listen port (default 5000)")
	flagSet.StringVar(&runtime.LogLevel, "log-level", "", "trace, debug, info, warn or error")
	flagSet.StringVar(&runtime.GitHub.AuthMode, "auth-mode", "", "REST authorization: basic or bearer")
	flagSet.StringVar(&runtime.Store.Driver, "store", "", "credential store driver: file, sqlite or postgres")
	flagSet.StringVar(&runtime.Store.Path, "token-path", "", "token file for the file store")
	flagSet.StringVar(&runtime.Store.DSN, "dsn", "", "database DSN for the sqlite and postgres stores")
	flagSet.StringVar(&runtime.GitHub.PrivateKeyPath, "private-key", "", "path to the app private key PEM")
	flagSet.StringVar(&runtime.Action.Path, "action-path", "", "REST path called after accepted deliveries")
	flagSet.IntVar(&runtime.Action.DebounceMS, "debounce-ms", 0, "quiet window before the follow-up call runs")
	flagSet.BoolVar(&noCache, "no-cache", false, "disable the read cache in front of SQL stores")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := ghapp.LoadConfig(ctx, runtime)
	if err != nil {
		return err
	}

	logger := gologger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		logger.Warn("missing environment variables", "variables", strings.Join(missing, ", "))
	}
	logger.Info("starting",
		"port", cfg.Server.Port,
		"auth_mode", cfg.GitHub.AuthMode,
		"store", cfg.Store.Driver,
		"private_key_path", cfg.GitHub.PrivateKeyPath,
	)

	store, closeStore, err := openStore(ctx, cfg.Store, !noCache, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := ghapp.New(cfg, store, ghapp.WithLogger(logger))
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", app.Server().Addr())
		serveErr <- app.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(err, app.Shutdown(shutdownCtx))
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg core.StoreConfig, cached bool, logger glog.Logger) (core.CredentialStore, func(), error) {
	var secrets core.SecretProvider
	if key := strings.TrimSpace(cfg.SealKey); key != "" {
		provider, err := security.NewAppKeySecretProviderFromString(key)
		if err != nil {
			return nil, nil, err
		}
		secrets = provider
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case core.StoreDriverSQLite, core.StoreDriverPostgres:
		client, err := sqlstore.OpenClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Warn("close database", "error", err)
			}
		}
		opts := []sqlstore.Option{}
		if secrets != nil {
			opts = append(opts, sqlstore.WithSecretProvider(secrets))
		}
		base, err := sqlstore.NewCredentialStoreFromPersistence(client, opts...)
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		logger.Info("token records in database", "driver", cfg.Driver, "slot", base.Slot())
		if !cached {
			return base, closeClient, nil
		}
		cache, err := sqlstore.NewCacheService(cfg)
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		store, err := sqlstore.NewCachedCredentialStore(base, cache, base.Slot())
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		return store, closeClient, nil
	default:
		opts := []filestore.Option{filestore.WithLogger(logger)}
		if secrets != nil {
			opts = append(opts, filestore.WithSecretProvider(secrets))
		}
		store, err := filestore.NewCredentialStore(cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("token record file", "path", store.Path())
		return store, func() {}, nil
	}
}
