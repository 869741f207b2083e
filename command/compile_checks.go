package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InstallMessage] = (*InstallCommand)(nil)
	_ gocmd.Commander[RefreshMessage] = (*RefreshCommand)(nil)
	_ gocmd.Commander[CallAPIMessage] = (*CallAPICommand)(nil)
)
