package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-ghapp/auth"
	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/transport"
)

type ExchangerConfig struct {
	BaseURL    string
	HTTPClient transport.HTTPDoer
	Signer     core.AssertionSigner
	Timeout    time.Duration
	Now        func() time.Time
}

// Exchanger trades a signed app assertion for an installation access token.
// It never retries; callers own the retry policy.
type Exchanger struct {
	baseURL string
	signer  core.AssertionSigner
	rest    *transport.RESTAdapter
	timeout time.Duration
	now     func() time.Time
}

type installationTokenResponse struct {
	Token               string            `json:"token"`
	ExpiresAt           string            `json:"expires_at"`
	Permissions         map[string]string `json:"permissions"`
	RepositorySelection string            `json:"repository_selection"`
}

func NewExchanger(cfg ExchangerConfig) (*Exchanger, error) {
	if cfg.Signer == nil {
		return nil, core.NewError(core.KindBadInput, "github: exchanger requires an assertion signer", nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := resolveTimeout(cfg.Timeout)
	client := cfg.HTTPClient
	if client == nil {
		client = transport.NewHTTPClient(timeout)
	}
	rest := transport.NewRESTAdapter(client)
	rest.FailureKind = core.KindUpstreamAuth
	rest.DefaultHeaders["Accept"] = AcceptInstallationToken
	return &Exchanger{
		baseURL: resolveBaseURL(cfg.BaseURL),
		signer:  cfg.Signer,
		rest:    rest,
		timeout: timeout,
		now:     now,
	}, nil
}

func (e *Exchanger) Exchange(ctx context.Context, appID string, installationID string) (core.TokenRecord, error) {
	appID = strings.TrimSpace(appID)
	installationID = strings.TrimSpace(installationID)
	metadata := map[string]any{"app_id": appID, "installation_id": installationID}
	if appID == "" || installationID == "" {
		return core.TokenRecord{}, core.NewError(core.KindBadInput, "github: app id and installation id are required", metadata)
	}

	issuedAt := e.now().UTC().Unix()
	assertion, err := e.signer.Sign(ctx, appID)
	if err != nil {
		return core.TokenRecord{}, core.WrapContext(err, "github: sign app assertion", metadata)
	}

	endpoint := transport.JoinURL(e.baseURL, InstallationTokenPath(installationID))
	metadata["url"] = endpoint
	res, err := e.rest.Do(ctx, transport.Request{
		Method:     http.MethodPost,
		URL:        endpoint,
		Timeout:    e.timeout,
		Authorizer: auth.StaticBearerAuthorizer{Token: assertion},
	})
	if err != nil {
		return core.TokenRecord{}, core.WrapContext(err, "github: request installation token", metadata)
	}
	if !res.IsSuccess() {
		metadata["status_code"] = res.StatusCode
		metadata["response_body"] = truncateBody(res.Body, 2048)
		return core.TokenRecord{}, core.NewError(
			core.KindUpstreamAuth,
			fmt.Sprintf("github: installation token exchange failed with status %d", res.StatusCode),
			metadata,
		)
	}

	var payload installationTokenResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		metadata["response_body"] = truncateBody(res.Body, 2048)
		return core.TokenRecord{}, core.WrapError(err, core.KindUpstreamAuth, "github: decode installation token response", metadata)
	}

	record := core.TokenRecord{
		IssuedAt:            issuedAt,
		ExpiresAt:           strings.TrimSpace(payload.ExpiresAt),
		Token:               strings.TrimSpace(payload.Token),
		InstallationID:      installationID,
		AppID:               appID,
		Permissions:         payload.Permissions,
		RepositorySelection: payload.RepositorySelection,
	}
	if missing := record.MissingFields(); len(missing) > 0 {
		metadata["missing_fields"] = missing
		return core.TokenRecord{}, core.NewError(core.KindUpstreamAuth, "github: installation token response is incomplete", metadata)
	}
	return record, nil
}

var _ core.TokenExchanger = (*Exchanger)(nil)
