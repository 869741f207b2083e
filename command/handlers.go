package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
)

type Installer interface {
	Install(ctx context.Context, appID string, installationID string) (string, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type APICaller interface {
	Call(ctx context.Context, path string, method string, body any) (any, error)
}

// InstallResult is stored on the result collector after a successful install.
// The token itself stays with the token manager.
type InstallResult struct {
	AppID          string
	InstallationID string
}

type InstallCommand struct {
	service Installer
}

func NewInstallCommand(service Installer) *InstallCommand {
	return &InstallCommand{service: service}
}

func (c *InstallCommand) Execute(ctx context.Context, msg InstallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: install service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if _, err := c.service.Install(ctx, msg.AppID, msg.InstallationID); err != nil {
		return err
	}
	storeResult(ctx, InstallResult{AppID: msg.AppID, InstallationID: msg.InstallationID})
	return nil
}

type RefreshCommand struct {
	service Refresher
}

func NewRefreshCommand(service Refresher) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, _ RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	token, err := c.service.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, token)
	return nil
}

type CallAPICommand struct {
	service APICaller
}

func NewCallAPICommand(service APICaller) *CallAPICommand {
	return &CallAPICommand{service: service}
}

func (c *CallAPICommand) Execute(ctx context.Context, msg CallAPIMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api client is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Call(ctx, msg.Path, msg.Method, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
