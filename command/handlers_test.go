package command

import (
	"context"
	"net/http"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ghapp/core"
)

type stubInstaller struct {
	installFn func(ctx context.Context, appID string, installationID string) (string, error)
}

func (s stubInstaller) Install(ctx context.Context, appID string, installationID string) (string, error) {
	return s.installFn(ctx, appID, installationID)
}

type stubRefresher struct {
	refreshFn func(ctx context.Context) (string, error)
}

func (s stubRefresher) Refresh(ctx context.Context) (string, error) {
	return s.refreshFn(ctx)
}

type stubAPICaller struct {
	callFn func(ctx context.Context, path string, method string, body any) (any, error)
}

func (s stubAPICaller) Call(ctx context.Context, path string, method string, body any) (any, error) {
	return s.callFn(ctx, path, method, body)
}

func TestInstallCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	cmd := NewInstallCommand(stubInstaller{
		installFn: func(_ context.Context, appID string, installationID string) (string, error) {
			called = true
			if appID != "12345" || installationID != "67890" {
				t.Fatalf("unexpected install payload: %q %q", appID, installationID)
			}
			return "ghs_installed", nil
		},
	})
	collector := gocmd.NewResult[InstallResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, InstallMessage{AppID: "12345", InstallationID: "67890"}); err != nil {
		t.Fatalf("execute install: %v", err)
	}
	if !called {
		t.Fatalf("expected install invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.AppID != "12345" || result.InstallationID != "67890" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestInstallCommand_RejectsMissingIdentifiers(t *testing.T) {
	cmd := NewInstallCommand(stubInstaller{
		installFn: func(context.Context, string, string) (string, error) {
			t.Fatalf("install should not be called")
			return "", nil
		},
	})
	err := cmd.Execute(context.Background(), InstallMessage{AppID: "12345"})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if core.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 status, got %d", core.HTTPStatus(err))
	}
}

func TestInstallCommand_PropagatesServiceError(t *testing.T) {
	upstream := core.NewError(core.KindUpstreamAuth, "github rejected the assertion", nil)
	cmd := NewInstallCommand(stubInstaller{
		installFn: func(context.Context, string, string) (string, error) {
			return "", upstream
		},
	})
	err := cmd.Execute(context.Background(), InstallMessage{AppID: "1", InstallationID: "2"})
	if !core.IsKind(err, core.KindUpstreamAuth) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}
}

func TestRefreshCommand_StoresToken(t *testing.T) {
	cmd := NewRefreshCommand(stubRefresher{
		refreshFn: func(context.Context) (string, error) {
			return "ghs_refreshed", nil
		},
	})
	collector := gocmd.NewResult[string]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, RefreshMessage{}); err != nil {
		t.Fatalf("execute refresh: %v", err)
	}
	token, ok := collector.Load()
	if !ok || token != "ghs_refreshed" {
		t.Fatalf("unexpected stored token %q (ok=%v)", token, ok)
	}
}

func TestCallAPICommand_ExecuteDelegates(t *testing.T) {
	cmd := NewCallAPICommand(stubAPICaller{
		callFn: func(_ context.Context, path string, method string, body any) (any, error) {
			if path != "repos/o/r/issues/1" || method != http.MethodPatch {
				t.Fatalf("unexpected call: %s %s", method, path)
			}
			payload, ok := body.(map[string]any)
			if !ok || payload["body"] != "ABC" {
				t.Fatalf("unexpected body: %#v", body)
			}
			return map[string]any{"id": float64(1)}, nil
		},
	})
	collector := gocmd.NewResult[any]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := cmd.Execute(ctx, CallAPIMessage{
		Path:   "repos/o/r/issues/1",
		Method: http.MethodPatch,
		Body:   map[string]any{"body": "ABC"},
	})
	if err != nil {
		t.Fatalf("execute call: %v", err)
	}
	stored, ok := collector.Load()
	if !ok {
		t.Fatalf("expected stored response")
	}
	if stored.(map[string]any)["id"] != float64(1) {
		t.Fatalf("unexpected response: %#v", stored)
	}
}

func TestCallAPIMessage_Validate(t *testing.T) {
	if err := (CallAPIMessage{Method: http.MethodGet}).Validate(); err == nil {
		t.Fatalf("expected missing path error")
	}
	if err := (CallAPIMessage{Path: "user", Method: "TRACE"}).Validate(); err == nil {
		t.Fatalf("expected unsupported method error")
	}
	if err := (CallAPIMessage{Path: "user"}).Validate(); err != nil {
		t.Fatalf("expected default method to validate: %v", err)
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var install *InstallCommand
	var refresh *RefreshCommand
	var call *CallAPICommand
	errs := []error{
		install.Execute(context.Background(), InstallMessage{}),
		refresh.Execute(context.Background(), RefreshMessage{}),
		call.Execute(context.Background(), CallAPIMessage{}),
	}
	for i, err := range errs {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("case %d: expected go-errors envelope, got %T", i, err)
		}
		if rich.Category != goerrors.CategoryInternal {
			t.Fatalf("case %d: expected internal category, got %q", i, rich.Category)
		}
	}
}
