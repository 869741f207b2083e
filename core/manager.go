package core

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Manager owns the lifecycle of the single installation token: it serves the
// stored token while it is valid and refreshes it lazily once it enters the
// expiry buffer. Refreshes and installs for the same app installation are
// coalesced so concurrent callers share one upstream exchange.
type Manager struct {
	store           CredentialStore
	exchanger       TokenExchanger
	logger          Logger
	metricsRecorder MetricsRecorder
	clock           Clock
	buffer          time.Duration
	flightTimeout   time.Duration
	flights         singleflight.Group
}

func NewManager(store CredentialStore, exchanger TokenExchanger, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, NewError(KindBadInput, "core: credential store is required", nil)
	}
	if exchanger == nil {
		return nil, NewError(KindBadInput, "core: token exchanger is required", nil)
	}
	builder := defaultManagerBuilder()
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.flightTimeout <= 0 {
		builder.flightTimeout = DefaultFlightTimeout
	}
	return &Manager{
		store:           store,
		exchanger:       exchanger,
		logger:          builder.resolveLogger(),
		metricsRecorder: builder.metricsRecorder,
		clock:           builder.clock,
		buffer:          builder.expiryBuffer,
		flightTimeout:   builder.flightTimeout,
	}, nil
}

func (m *Manager) ExpiryBuffer() time.Duration {
	return m.buffer
}

// RetrieveToken returns a bearer token that stays valid for at least the
// expiry buffer. The stored token is returned without network calls when it
// is still valid.
func (m *Manager) RetrieveToken(ctx context.Context) (string, error) {
	startedAt := time.Now()
	record, err := m.loadInstalled(ctx)
	if err != nil {
		m.observeOperation(ctx, startedAt, "retrieve_token", err, nil)
		return "", err
	}
	fields := recordFields(record)
	if Classify(record, m.now(), m.buffer) == TokenStateValid {
		fields["refreshed"] = false
		m.observeOperation(ctx, startedAt, "retrieve_token", nil, fields)
		return record.Token, nil
	}

	token, err := m.refresh(ctx, record.AppID, record.InstallationID, false)
	fields["refreshed"] = err == nil
	m.observeOperation(ctx, startedAt, "retrieve_token", err, fields)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Refresh exchanges a new token for the installation of the stored record,
// regardless of its current state.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	startedAt := time.Now()
	record, err := m.loadInstalled(ctx)
	if err != nil {
		m.observeOperation(ctx, startedAt, "refresh", err, nil)
		return "", err
	}
	token, err := m.refresh(ctx, record.AppID, record.InstallationID, true)
	m.observeOperation(ctx, startedAt, "refresh", err, recordFields(record))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Install bootstraps the slot for an installation. No prior record is needed
// and any existing record is replaced.
func (m *Manager) Install(ctx context.Context, appID string, installationID string) (string, error) {
	startedAt := time.Now()
	appID = strings.TrimSpace(appID)
	installationID = strings.TrimSpace(installationID)
	fields := map[string]any{"app_id": appID, "installation_id": installationID}
	if appID == "" || installationID == "" {
		err := NewError(KindBadInput, "core: app id and installation id are required", fields)
		m.observeOperation(ctx, startedAt, "install", err, fields)
		return "", err
	}

	token, shared, err := m.coalesce(ctx, InstallationKey(appID, installationID), func(flightCtx context.Context) (string, error) {
		record, err := m.exchangeAndStore(flightCtx, appID, installationID)
		if err != nil {
			return "", err
		}
		return record.Token, nil
	})
	fields["shared"] = shared
	if err != nil {
		err = WrapContext(err, "core: install token", fields)
		m.observeOperation(ctx, startedAt, "install", err, fields)
		return "", err
	}
	m.observeOperation(ctx, startedAt, "install", nil, fields)
	return token, nil
}

// State classifies the stored record against the manager clock and buffer.
func (m *Manager) State(ctx context.Context) (TokenState, *TokenRecord, error) {
	record, err := m.store.Load(ctx)
	if err != nil {
		return "", nil, WrapContext(err, "core: load token record", nil)
	}
	return Classify(record, m.now(), m.buffer), record, nil
}

func (m *Manager) refresh(ctx context.Context, appID string, installationID string, force bool) (string, error) {
	key := InstallationKey(appID, installationID)
	fields := map[string]any{"app_id": appID, "installation_id": installationID}
	token, shared, err := m.coalesce(ctx, key, func(flightCtx context.Context) (string, error) {
		if !force {
			current, err := m.store.Load(flightCtx)
			if err != nil {
				return "", WrapContext(err, "core: reload token record", fields)
			}
			if current != nil && current.Key() == key && Classify(current, m.now(), m.buffer) == TokenStateValid {
				m.logWithLevel(flightCtx, "debug", "token already refreshed", fields)
				return current.Token, nil
			}
		}
		record, err := m.exchangeAndStore(flightCtx, appID, installationID)
		if err != nil {
			return "", err
		}
		return record.Token, nil
	})
	if err != nil {
		return "", WrapContext(err, "core: refresh token", fields)
	}
	if shared {
		m.logWithLevel(ctx, "debug", "joined in-flight exchange", fields)
	}
	return token, nil
}

// coalesce runs fn once per installation key. Installs and refreshes of the
// same installation share the flight. fn runs detached from the caller's
// cancellation, bounded by the flight timeout, so a caller that gives up
// does not fail the callers still waiting on the same flight.
func (m *Manager) coalesce(
	ctx context.Context,
	key string,
	fn func(context.Context) (string, error),
) (string, bool, error) {
	results := m.flights.DoChan("exchange:"+key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.flightTimeout)
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return "", false, WrapError(ctx.Err(), KindInternal, "core: stopped waiting for token exchange", map[string]any{"key": key})
	case res := <-results:
		if res.Err != nil {
			return "", res.Shared, res.Err
		}
		return res.Val.(string), res.Shared, nil
	}
}

// exchangeAndStore obtains a new record, persists it and checks that the
// persisted copy is valid. The store is untouched when the exchange fails.
func (m *Manager) exchangeAndStore(ctx context.Context, appID string, installationID string) (*TokenRecord, error) {
	fields := map[string]any{"app_id": appID, "installation_id": installationID}
	fresh, err := m.exchanger.Exchange(ctx, appID, installationID)
	if err != nil {
		return nil, WrapContext(err, "core: exchange installation token", fields)
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, WrapContext(err, "core: persist installation token", fields)
	}
	persisted, err := m.store.Load(ctx)
	if err != nil {
		return nil, WrapContext(err, "core: reload installation token", fields)
	}
	if persisted == nil {
		return nil, NewError(KindPersistenceError, "core: installation token missing after save", fields)
	}
	if Classify(persisted, m.now(), m.buffer) != TokenStateValid {
		fields["expires_at"] = persisted.ExpiresAt
		fields["buffer_sec"] = int64(m.buffer.Seconds())
		return nil, NewError(KindRefreshIneffective, "core: fresh installation token is already within the expiry buffer", fields)
	}
	m.logWithLevel(ctx, "info", "installation token stored", map[string]any{
		"app_id":          persisted.AppID,
		"installation_id": persisted.InstallationID,
		"expires_at":      persisted.ExpiresAt,
		"token":           MaskToken(persisted.Token),
	})
	return persisted, nil
}

func (m *Manager) loadInstalled(ctx context.Context) (*TokenRecord, error) {
	record, err := m.store.Load(ctx)
	if err != nil {
		return nil, WrapContext(err, "core: load token record", nil)
	}
	if record == nil {
		return nil, NewError(KindNotInstalled, "core: no installation token stored; complete the installation callback first", nil)
	}
	return record, nil
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

func recordFields(record *TokenRecord) map[string]any {
	if record == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_id":          record.AppID,
		"installation_id": record.InstallationID,
	}
}
