package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/security"
)

// CredentialStore keeps the token record in a single row of
// ghapp_token_records. Saves replace the row inside one transaction.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*tokenRecordRow]
	slot    string
	secrets core.SecretProvider
}

type Option func(*CredentialStore)

func WithSlot(slot string) Option {
	return func(s *CredentialStore) {
		if trimmed := strings.TrimSpace(slot); trimmed != "" {
			s.slot = trimmed
		}
	}
}

func WithSecretProvider(provider core.SecretProvider) Option {
	return func(s *CredentialStore) {
		s.secrets = provider
	}
}

func NewCredentialStore(db *bun.DB, opts ...Option) (*CredentialStore, error) {
	if db == nil {
		return nil, core.NewError(core.KindBadInput, "sqlstore: bun db is required", nil)
	}
	store := &CredentialStore{
		db:   db,
		repo: repository.NewRepository[*tokenRecordRow](db, tokenRecordHandlers()),
		slot: DefaultSlot,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Slot() string {
	if s == nil {
		return ""
	}
	return s.slot
}

func (s *CredentialStore) Save(ctx context.Context, record core.TokenRecord) error {
	if s == nil || s.repo == nil || s.db == nil {
		return core.NewError(core.KindInternal, "sqlstore: credential store is not configured", nil)
	}
	if err := record.Validate(); err != nil {
		return err
	}
	sealed, err := security.SealRecord(ctx, s.secrets, record)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, deleteErr := tx.NewDelete().
			Model((*tokenRecordRow)(nil)).
			Where("slot = ?", s.slot).
			Exec(ctx); deleteErr != nil {
			return deleteErr
		}
		_, createErr := s.repo.CreateTx(ctx, tx, newTokenRecordRow(s.slot, sealed, now))
		return createErr
	})
	if err != nil {
		return core.WrapError(err, core.KindPersistenceError, "sqlstore: replace token record", s.fields())
	}
	return nil
}

func (s *CredentialStore) Load(ctx context.Context) (*core.TokenRecord, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewError(core.KindInternal, "sqlstore: credential store is not configured", nil)
	}
	rows, _, err := s.repo.List(ctx,
		repository.SelectBy("slot", "=", s.slot),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, core.WrapError(err, core.KindPersistenceError, "sqlstore: read token record", s.fields())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	record := rows[0].toDomain()
	if missing := record.MissingFields(); len(missing) > 0 {
		fields := s.fields()
		fields["missing_fields"] = missing
		return nil, core.NewError(
			core.KindCorruptRecord,
			fmt.Sprintf("sqlstore: stored token record is missing %s", strings.Join(missing, ", ")),
			fields,
		)
	}
	opened, err := security.OpenRecord(ctx, s.secrets, record)
	if err != nil {
		return nil, err
	}
	return &opened, nil
}

func (s *CredentialStore) fields() map[string]any {
	return map[string]any{"slot": s.slot, "table": "ghapp_token_records"}
}
