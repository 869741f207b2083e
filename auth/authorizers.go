package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/transport"
)

// BasicAuthorizer authenticates with a user name and personal access token.
type BasicAuthorizer struct {
	User  string
	Token string
}

func (BasicAuthorizer) Mode() string {
	return core.AuthModeBasic
}

func (a BasicAuthorizer) Authorize(_ context.Context, req *http.Request) error {
	if req == nil {
		return core.NewError(core.KindBadInput, "auth: request is required", nil)
	}
	req.SetBasicAuth(strings.TrimSpace(a.User), strings.TrimSpace(a.Token))
	return nil
}

// BearerAuthorizer asks the token source for an installation token on every
// request.
type BearerAuthorizer struct {
	Source core.TokenSource
}

func (BearerAuthorizer) Mode() string {
	return core.AuthModeBearer
}

func (a BearerAuthorizer) Authorize(ctx context.Context, req *http.Request) error {
	if req == nil {
		return core.NewError(core.KindBadInput, "auth: request is required", nil)
	}
	if a.Source == nil {
		return core.NewError(core.KindBadInput, "auth: bearer token source is required", nil)
	}
	token, err := a.Source.RetrieveToken(ctx)
	if err != nil {
		return core.WrapContext(err, "auth: retrieve installation token", nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// StaticBearerAuthorizer sends a fixed bearer credential, used for the
// assertion during the token exchange.
type StaticBearerAuthorizer struct {
	Token string
}

func (StaticBearerAuthorizer) Mode() string {
	return core.AuthModeBearer
}

func (a StaticBearerAuthorizer) Authorize(_ context.Context, req *http.Request) error {
	if req == nil {
		return core.NewError(core.KindBadInput, "auth: request is required", nil)
	}
	token := strings.TrimSpace(a.Token)
	if token == "" {
		return core.NewError(core.KindSigningError, "auth: bearer assertion is empty", nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// NewAuthorizer picks the deployment's authorization mode.
func NewAuthorizer(mode string, user string, token string, source core.TokenSource) (transport.Authorizer, error) {
	switch strings.ToLower(firstNonEmpty(mode, core.AuthModeBasic)) {
	case core.AuthModeBasic:
		return BasicAuthorizer{User: user, Token: token}, nil
	case core.AuthModeBearer:
		if source == nil {
			return nil, core.NewError(core.KindBadInput, "auth: bearer mode requires a token source", nil)
		}
		return BearerAuthorizer{Source: source}, nil
	default:
		return nil, core.NewError(core.KindBadInput, "auth: unsupported auth mode", map[string]any{"auth_mode": mode})
	}
}

var (
	_ transport.Authorizer = BasicAuthorizer{}
	_ transport.Authorizer = BearerAuthorizer{}
	_ transport.Authorizer = StaticBearerAuthorizer{}
)
