package sqlstore

import (
	"context"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-ghapp/core"
)

const tokenRecordCacheKeyPrefix = "ghapp::token_record::v1"

// cachedSlot keeps absent slots cacheable.
type cachedSlot struct {
	Present bool
	Record  core.TokenRecord
}

// CachedCredentialStore is a read-through cache in front of any
// CredentialStore. Saves go to the base store and then drop the cached slot.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
	key   string
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
	slot string,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, core.NewError(core.KindBadInput, "sqlstore: base credential store is required", nil)
	}
	if cacheService == nil {
		return nil, core.NewError(core.KindBadInput, "sqlstore: credential cache service is required", nil)
	}
	return &CachedCredentialStore{
		base:  base,
		cache: cacheService,
		key:   TokenRecordCacheKey(slot),
	}, nil
}

// NewCacheService builds the in-memory cache used by CachedCredentialStore.
func NewCacheService(cfg core.StoreConfig) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if cfg.CacheTTLSec > 0 {
		config.TTL = secondsToDuration(cfg.CacheTTLSec)
	}
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		return nil, core.WrapError(err, core.KindInternal, "sqlstore: build cache service", nil)
	}
	return service, nil
}

// TokenRecordCacheKey returns ghapp::token_record::v1::<slot> with the slot
// path escaped.
func TokenRecordCacheKey(slot string) string {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		slot = DefaultSlot
	}
	return tokenRecordCacheKeyPrefix + "::" + url.PathEscape(slot)
}

func (s *CachedCredentialStore) Load(ctx context.Context) (*core.TokenRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, core.NewError(core.KindInternal, "sqlstore: cached credential store is not configured", nil)
	}
	slot, err := repositorycache.GetOrFetch(ctx, s.cache, s.key, func(ctx context.Context) (cachedSlot, error) {
		record, fetchErr := s.base.Load(ctx)
		if fetchErr != nil {
			return cachedSlot{}, fetchErr
		}
		if record == nil {
			return cachedSlot{}, nil
		}
		return cachedSlot{Present: true, Record: record.Clone()}, nil
	})
	if err != nil {
		return nil, core.WrapContext(err, "sqlstore: cached token record", nil)
	}
	if !slot.Present {
		return nil, nil
	}
	record := slot.Record.Clone()
	return &record, nil
}

func (s *CachedCredentialStore) Save(ctx context.Context, record core.TokenRecord) error {
	if s == nil || s.base == nil || s.cache == nil {
		return core.NewError(core.KindInternal, "sqlstore: cached credential store is not configured", nil)
	}
	if err := s.base.Save(ctx, record); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, s.key); err != nil {
		return core.WrapError(err, core.KindPersistenceError, "sqlstore: invalidate cached token record", map[string]any{"cache_key": s.key})
	}
	return nil
}
