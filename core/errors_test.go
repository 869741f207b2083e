package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestNewError_CarriesTaxonomy(t *testing.T) {
	err := NewError(KindUpstreamAuth, "exchange rejected", map[string]any{"status_code": 401})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error")
	}
	if rich.TextCode != ErrorUpstreamAuth {
		t.Fatalf("expected %q text code, got %q", ErrorUpstreamAuth, rich.TextCode)
	}
	if rich.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %q", rich.Category)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rich.Code)
	}
	if rich.Metadata["status_code"] != 401 {
		t.Fatalf("expected status metadata, got %#v", rich.Metadata)
	}
}

func TestWrapContext_PreservesInnerKind(t *testing.T) {
	cause := errors.New("connection reset")
	inner := WrapError(cause, KindPersistenceError, "store: write token file", nil)
	outer := WrapContext(inner, "core: refresh token", map[string]any{"app_id": "app1"})

	if !IsKind(outer, KindPersistenceError) {
		t.Fatalf("expected persistence kind to survive wrapping, got %v", outer)
	}
	if kind, ok := KindOf(outer); !ok || kind != KindPersistenceError {
		t.Fatalf("expected persistence kind, got %#v", kind)
	}
	if !errors.Is(outer, cause) {
		t.Fatalf("expected cause to stay in the chain")
	}
}

func TestWrapContext_UnclassifiedBecomesInternal(t *testing.T) {
	err := WrapContext(errors.New("boom"), "core: something", nil)
	if !IsKind(err, KindInternal) {
		t.Fatalf("expected internal kind, got %v", err)
	}
	if WrapContext(nil, "ignored", nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}

func TestRefreshIneffective_IsCritical(t *testing.T) {
	err := NewError(KindRefreshIneffective, "fresh token already expiring", nil)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error")
	}
	if rich.Severity != goerrors.SeverityCritical {
		t.Fatalf("expected critical severity, got %v", rich.Severity)
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(NewError(KindInvalidRecord, "bad", nil)); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	if got := HTTPStatus(NewError(KindNotInstalled, "missing", nil)); got != http.StatusConflict {
		t.Fatalf("expected 409, got %d", got)
	}
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
