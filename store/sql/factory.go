package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-ghapp/core"
	ghappmigrations "github.com/goliatone/go-ghapp/migrations"
)

const otelIdentifier = "go-ghapp"

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return otelIdentifier
}

// OpenClient opens the configured database, registers the embedded
// migrations for its dialect and applies them.
func OpenClient(ctx context.Context, cfg core.StoreConfig) (*persistence.Client, error) {
	driver, dialect, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, core.NewError(core.KindBadInput, "sqlstore: dsn is required", map[string]any{"driver": cfg.Driver})
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistenceError, "sqlstore: open database", map[string]any{"driver": driver})
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapError(err, core.KindPersistenceError, "sqlstore: new persistence client", map[string]any{"driver": driver})
	}
	if err := Migrate(ctx, client, driver); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Migrate registers the embedded migrations matching driver on client and
// runs them.
func Migrate(ctx context.Context, client *persistence.Client, driver string) error {
	if client == nil {
		return core.NewError(core.KindBadInput, "sqlstore: persistence client is required", nil)
	}
	target, err := ghappmigrations.DialectForDriver(driver)
	if err != nil {
		return core.WrapError(err, core.KindBadInput, "sqlstore: resolve migration dialect", map[string]any{"driver": driver})
	}
	_, err = ghappmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, ghappmigrations.WithValidationTargets(target))
	if err != nil {
		return core.WrapError(err, core.KindPersistenceError, "sqlstore: register migrations", map[string]any{"dialect": target})
	}
	if err := client.Migrate(ctx); err != nil {
		return core.WrapError(err, core.KindPersistenceError, "sqlstore: migrate", map[string]any{"dialect": target})
	}
	return nil
}

// NewCredentialStoreFromPersistence accepts a *persistence.Client, a *bun.DB
// or anything exposing DB() *bun.DB.
func NewCredentialStoreFromPersistence(client any, opts ...Option) (*CredentialStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewCredentialStore(db, opts...)
}

func resolveDriver(driver string) (string, schema.Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case core.StoreDriverSQLite, "sqlite3":
		return "sqlite3", sqlitedialect.New(), nil
	case core.StoreDriverPostgres, "postgresql":
		return "postgres", pgdialect.New(), nil
	default:
		return "", nil, core.NewError(
			core.KindBadInput,
			fmt.Sprintf("sqlstore: unsupported driver %q", driver),
			map[string]any{"driver": driver},
		)
	}
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, core.NewError(core.KindBadInput, "sqlstore: persistence client is required", nil)
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, core.NewError(core.KindBadInput, "sqlstore: persistence client returned nil bun db", nil)
		}
		return db, nil
	default:
		return nil, core.NewError(
			core.KindBadInput,
			fmt.Sprintf("sqlstore: unsupported persistence client type %T", candidate),
			nil,
		)
	}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
