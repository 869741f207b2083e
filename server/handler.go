package server

import (
	"encoding/json"
	"net/http"
	"strings"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ghapp/command"
	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/query"
)

type handler struct {
	appID    string
	redirect string
	install  gocmd.Commander[command.InstallMessage]
	state    gocmd.Querier[query.TokenStateMessage, query.TokenStatus]
	webhook  http.Handler
	logger   glog.Logger
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	TextCode string         `json:"text_code,omitempty"`
	Category string         `json:"category,omitempty"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /authenticate", h.authenticate)
	mux.Handle("POST /webhook", h.webhook)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

// authenticate is the installation callback GitHub redirects to after the
// app is installed.
func (h *handler) authenticate(w http.ResponseWriter, r *http.Request) {
	installationID := strings.TrimSpace(r.URL.Query().Get("installation_id"))
	if installationID == "" {
		h.writeError(w, core.NewError(core.KindBadInput, "installation_id query parameter is required", nil))
		return
	}

	err := h.install.Execute(r.Context(), command.InstallMessage{
		AppID:          h.appID,
		InstallationID: installationID,
	})
	if err != nil {
		h.logger.Error("installation callback failed",
			"installation_id", installationID,
			"app_id", h.appID,
			"error", err,
		)
		h.writeError(w, err)
		return
	}

	h.logger.Info("installation token stored", "installation_id", installationID, "app_id", h.appID)
	http.Redirect(w, r, h.redirect, http.StatusFound)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.state == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, err := h.state.Query(r.Context(), query.TokenStateMessage{})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	detail := errorDetail{Message: err.Error()}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		detail.TextCode = rich.TextCode
		detail.Category = string(rich.Category)
		detail.Message = rich.Message
		detail.Metadata = publicMetadata(rich.Metadata)
	}
	writeJSON(w, core.HTTPStatus(err), errorBody{Error: detail})
}

// publicMetadata strips request and response bodies.
func publicMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		switch key {
		case "response_body", "request_body":
			continue
		}
		out[key] = value
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
