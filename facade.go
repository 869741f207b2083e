package ghapp

import (
	"context"

	ghappcommand "github.com/goliatone/go-ghapp/command"
	"github.com/goliatone/go-ghapp/core"
	ghappquery "github.com/goliatone/go-ghapp/query"
)

// TokenService is what the command and query handlers need from the token
// lifecycle manager.
type TokenService interface {
	ghappcommand.Installer
	ghappcommand.Refresher
	core.TokenSource
	ghappquery.StateReader
}

type Commands struct {
	Install *ghappcommand.InstallCommand
	Refresh *ghappcommand.RefreshCommand
	CallAPI *ghappcommand.CallAPICommand
}

type Queries struct {
	RetrieveToken *ghappquery.RetrieveTokenQuery
	TokenState    *ghappquery.TokenStateQuery
}

type Facade struct {
	tokens   TokenService
	api      ghappcommand.APICaller
	commands Commands
	queries  Queries
}

func NewFacade(tokens TokenService, api ghappcommand.APICaller) (*Facade, error) {
	if tokens == nil {
		return nil, core.NewError(core.KindBadInput, "ghapp: token service is required", nil)
	}
	if api == nil {
		return nil, core.NewError(core.KindBadInput, "ghapp: api client is required", nil)
	}

	facade := &Facade{tokens: tokens, api: api}
	facade.commands = Commands{
		Install: ghappcommand.NewInstallCommand(tokens),
		Refresh: ghappcommand.NewRefreshCommand(tokens),
		CallAPI: ghappcommand.NewCallAPICommand(api),
	}
	facade.queries = Queries{
		RetrieveToken: ghappquery.NewRetrieveTokenQuery(tokens),
		TokenState:    ghappquery.NewTokenStateQuery(tokens),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// RetrieveToken returns a token valid beyond the expiry buffer.
func (f *Facade) RetrieveToken(ctx context.Context) (string, error) {
	return f.queries.RetrieveToken.Query(ctx, ghappquery.RetrieveTokenMessage{})
}
