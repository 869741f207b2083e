package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/goliatone/go-ghapp/core"
)

// AssertionClaims is the claim set of the application assertion. ID carries
// a random nonce so two assertions minted in the same second differ.
type AssertionClaims struct {
	jwt.RegisteredClaims
}

type AssertionSignerConfig struct {
	Keys     KeySource
	TTL      time.Duration
	Now      func() time.Time
	NewNonce func() string
}

type AssertionSigner struct {
	keys     KeySource
	ttl      time.Duration
	now      func() time.Time
	newNonce func() string
}

func NewAssertionSigner(cfg AssertionSignerConfig) *AssertionSigner {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = core.DefaultAssertionTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newNonce := cfg.NewNonce
	if newNonce == nil {
		newNonce = func() string { return uuid.NewString() }
	}
	return &AssertionSigner{
		keys:     cfg.Keys,
		ttl:      ttl,
		now:      now,
		newNonce: newNonce,
	}
}

func (s *AssertionSigner) TTL() time.Duration {
	return s.ttl
}

// Claims builds the claim set for appID at the signer's current time.
func (s *AssertionSigner) Claims(appID string) AssertionClaims {
	issuedAt := s.now().UTC().Truncate(time.Second)
	return AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    strings.TrimSpace(appID),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
			ID:        s.newNonce(),
		},
	}
}

// Sign returns a compact RS256 assertion issued by appID.
func (s *AssertionSigner) Sign(ctx context.Context, appID string) (string, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return "", core.NewError(core.KindBadInput, "auth: app id is required to sign an assertion", nil)
	}
	if s.keys == nil {
		return "", core.NewError(core.KindKeyUnavailable, "auth: no private key source configured", nil)
	}
	pemBytes, err := s.keys.PrivateKey(ctx)
	if err != nil {
		return "", core.WrapContext(err, "auth: load private key", map[string]any{"app_id": appID})
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return "", core.WrapError(err, core.KindSigningError, "auth: parse private key", map[string]any{"app_id": appID})
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, s.Claims(appID)).SignedString(key)
	if err != nil {
		return "", core.WrapError(err, core.KindSigningError, "auth: sign assertion", map[string]any{"app_id": appID})
	}
	return signed, nil
}

var _ core.AssertionSigner = (*AssertionSigner)(nil)
