package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/security"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

type Option func(*CredentialStore)

func WithSecretProvider(provider core.SecretProvider) Option {
	return func(s *CredentialStore) {
		s.secrets = provider
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *CredentialStore) {
		s.logger = logger
	}
}

// CredentialStore keeps the token record as a single JSON file. Saves remove
// the previous file before the new one is moved into place.
type CredentialStore struct {
	mu      sync.Mutex
	path    string
	secrets core.SecretProvider
	logger  core.Logger
}

func NewCredentialStore(path string, opts ...Option) (*CredentialStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.NewError(core.KindBadInput, "filestore: storage path is required", nil)
	}
	store := &CredentialStore{path: filepath.Clean(path)}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	_, store.logger = glog.Resolve("ghapp.filestore", nil, store.logger)
	return store, nil
}

func (s *CredentialStore) Path() string {
	return s.path
}

func (s *CredentialStore) Save(ctx context.Context, record core.TokenRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := security.SealRecord(ctx, s.secrets, record)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return core.WrapError(err, core.KindPersistenceError, "filestore: encode token record", s.fields())
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return core.WrapError(err, core.KindPersistenceError, "filestore: create storage directory", s.fields())
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return core.WrapError(err, core.KindPersistenceError, "filestore: create temp file", s.fields())
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: write temp file", s.fields())
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: sync temp file", s.fields())
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: close temp file", s.fields())
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: chmod temp file", s.fields())
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: remove previous token file", s.fields())
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return core.WrapError(err, core.KindPersistenceError, "filestore: move token file into place", s.fields())
	}
	s.logger.Debug("token record saved", "path", s.path, "app_id", record.AppID, "installation_id", record.InstallationID)
	return nil
}

func (s *CredentialStore) Load(ctx context.Context) (*core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, core.WrapError(err, core.KindPersistenceError, "filestore: read token file", s.fields())
	}
	record, err := core.DecodeTokenRecord(data)
	if err != nil {
		return nil, core.WrapContext(err, "filestore: load token record", s.fields())
	}
	opened, err := security.OpenRecord(ctx, s.secrets, record)
	if err != nil {
		return nil, err
	}
	return &opened, nil
}

func (s *CredentialStore) fields() map[string]any {
	return map[string]any{"path": s.path}
}

var _ core.CredentialStore = (*CredentialStore)(nil)
