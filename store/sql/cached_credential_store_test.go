package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-ghapp/core"
)

type stubCredentialStore struct {
	mu        sync.Mutex
	record    *core.TokenRecord
	loadCalls int
	saveCalls int
	loadErr   error
	saveErr   error
}

func (s *stubCredentialStore) Load(_ context.Context) (*core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.record == nil {
		return nil, nil
	}
	cloned := s.record.Clone()
	return &cloned, nil
}

func (s *stubCredentialStore) Save(_ context.Context, record core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	cloned := record.Clone()
	s.record = &cloned
	return nil
}

func TestCachedCredentialStore_Load_MissFetchThenHit(t *testing.T) {
	base := &stubCredentialStore{record: &core.TokenRecord{
		IssuedAt:       1700000000,
		ExpiresAt:      "2026-01-01T10:00:00Z",
		Token:          "ghs_cached_token",
		InstallationID: "67890",
		AppID:          "12345",
	}}
	store, err := NewCachedCredentialStore(base, newTestCacheService(t), DefaultSlot)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		record, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if record == nil || record.Token != "ghs_cached_token" {
			t.Fatalf("load %d: unexpected record %+v", i, record)
		}
	}
	if base.loadCalls != 1 {
		t.Fatalf("expected one base load, got %d", base.loadCalls)
	}
}

func TestCachedCredentialStore_Save_InvalidatesSlot(t *testing.T) {
	base := &stubCredentialStore{}
	store, err := NewCachedCredentialStore(base, newTestCacheService(t), DefaultSlot)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	record, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load absent: %v", err)
	}
	if record != nil {
		t.Fatalf("expected absent record, got %+v", record)
	}

	next := core.TokenRecord{
		IssuedAt:       1700000000,
		ExpiresAt:      "2026-01-01T11:00:00Z",
		Token:          "ghs_next_token",
		InstallationID: "67890",
		AppID:          "12345",
	}
	if err := store.Save(ctx, next); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after save: %v", err)
	}
	if record == nil || record.Token != next.Token {
		t.Fatalf("expected fresh record after save, got %+v", record)
	}
	if base.loadCalls != 2 {
		t.Fatalf("expected cache miss after invalidation, got %d base loads", base.loadCalls)
	}
}

func TestCachedCredentialStore_PropagatesBaseErrors(t *testing.T) {
	baseErr := core.NewError(core.KindPersistenceError, "disk gone", nil)
	base := &stubCredentialStore{loadErr: baseErr, saveErr: errors.New("write failed")}
	store, err := NewCachedCredentialStore(base, newTestCacheService(t), DefaultSlot)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.Load(context.Background()); !core.IsKind(err, core.KindPersistenceError) {
		t.Fatalf("expected persistence error propagation, got %v", err)
	}
	if err := store.Save(context.Background(), core.TokenRecord{}); err == nil {
		t.Fatalf("expected save error propagation")
	}
}

func TestNewCachedCredentialStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedCredentialStore(nil, newTestCacheService(t), DefaultSlot); err == nil {
		t.Fatalf("expected error for nil base")
	}
	if _, err := NewCachedCredentialStore(&stubCredentialStore{}, nil, DefaultSlot); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}

func TestTokenRecordCacheKey(t *testing.T) {
	if got := TokenRecordCacheKey(""); got != "ghapp::token_record::v1::default" {
		t.Fatalf("unexpected default key %q", got)
	}
	if got := TokenRecordCacheKey("team/a"); got != "ghapp::token_record::v1::team%2Fa" {
		t.Fatalf("unexpected escaped key %q", got)
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	service, err := NewCacheService(core.StoreConfig{CacheTTLSec: int(time.Minute / time.Second)})
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
