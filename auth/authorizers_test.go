package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-ghapp/core"
)

type fixedTokenSource struct {
	token string
	err   error
	calls int
}

func (s *fixedTokenSource) RetrieveToken(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

func TestBasicAuthorizer(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/user", nil)
	if err := (BasicAuthorizer{User: "octocat", Token: "pat"}).Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	user, pass, ok := req.BasicAuth()
	if !ok || user != "octocat" || pass != "pat" {
		t.Fatalf("unexpected basic auth %q:%q", user, pass)
	}
}

func TestBearerAuthorizer_RetrievesPerRequest(t *testing.T) {
	source := &fixedTokenSource{token: "ghs_abc"}
	authorizer := BearerAuthorizer{Source: source}
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/", nil)
		if err := authorizer.Authorize(context.Background(), req); err != nil {
			t.Fatalf("authorize: %v", err)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer ghs_abc" {
			t.Fatalf("unexpected header %q", got)
		}
	}
	if source.calls != 2 {
		t.Fatalf("expected two retrievals, got %d", source.calls)
	}
}

func TestBearerAuthorizer_PropagatesKind(t *testing.T) {
	source := &fixedTokenSource{err: core.NewError(core.KindNotInstalled, "absent", nil)}
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/", nil)
	err := (BearerAuthorizer{Source: source}).Authorize(context.Background(), req)
	if !core.IsKind(err, core.KindNotInstalled) {
		t.Fatalf("expected not installed, got %v", err)
	}
}

func TestNewAuthorizer(t *testing.T) {
	basic, err := NewAuthorizer("", "u", "p", nil)
	if err != nil || basic.Mode() != core.AuthModeBasic {
		t.Fatalf("expected basic default, got %v (%v)", basic, err)
	}
	if _, err := NewAuthorizer("bearer", "", "", nil); !core.IsKind(err, core.KindBadInput) {
		t.Fatalf("expected bearer without source to fail, got %v", err)
	}
	bearer, err := NewAuthorizer("BEARER", "", "", &fixedTokenSource{})
	if err != nil || bearer.Mode() != core.AuthModeBearer {
		t.Fatalf("expected bearer, got %v (%v)", bearer, err)
	}
	if _, err := NewAuthorizer("digest", "", "", nil); err == nil {
		t.Fatalf("expected unsupported mode error")
	}
}
