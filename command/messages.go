package command

import (
	"net/http"
	"strings"
)

const (
	TypeInstall = "ghapp.command.install"
	TypeRefresh = "ghapp.command.refresh"
	TypeCallAPI = "ghapp.command.api.call"
)

// InstallMessage carries the identifiers GitHub sends back after the app is
// installed.
type InstallMessage struct {
	AppID          string
	InstallationID string
}

func (InstallMessage) Type() string { return TypeInstall }

func (m InstallMessage) Validate() error {
	if strings.TrimSpace(m.AppID) == "" {
		return commandValidationError("app_id", "app id is required")
	}
	if strings.TrimSpace(m.InstallationID) == "" {
		return commandValidationError("installation_id", "installation id is required")
	}
	return nil
}

type RefreshMessage struct{}

func (RefreshMessage) Type() string { return TypeRefresh }

func (RefreshMessage) Validate() error { return nil }

type CallAPIMessage struct {
	Path   string
	Method string
	Body   any
}

func (CallAPIMessage) Type() string { return TypeCallAPI }

func (m CallAPIMessage) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return commandValidationError("path", "path is required")
	}
	switch strings.ToUpper(strings.TrimSpace(m.Method)) {
	case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return nil
	default:
		return commandValidationError("method", "unsupported http method "+m.Method)
	}
}
