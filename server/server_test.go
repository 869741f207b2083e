package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-ghapp/command"
	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/query"
)

type stubInstall struct {
	calls []command.InstallMessage
	err   error
}

func (s *stubInstall) Execute(_ context.Context, msg command.InstallMessage) error {
	s.calls = append(s.calls, msg)
	return s.err
}

type stubState struct {
	status query.TokenStatus
	err    error
}

func (s stubState) Query(context.Context, query.TokenStateMessage) (query.TokenStatus, error) {
	return s.status, s.err
}

func newTestServer(t *testing.T, install *stubInstall, state stubState) *Server {
	t.Helper()
	srv, err := New(Config{
		Port:    0,
		AppID:   "12345",
		Install: install,
		State:   state,
		Webhook: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	})
	require.NoError(t, err)
	return srv
}

func TestAuthenticate_RedirectsAfterInstall(t *testing.T) {
	install := &stubInstall{}
	srv := newTestServer(t, install, stubState{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authenticate?installation_id=67890", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, DefaultRedirectURL, rec.Header().Get("Location"))
	require.Len(t, install.calls, 1)
	assert.Equal(t, command.InstallMessage{AppID: "12345", InstallationID: "67890"}, install.calls[0])
}

func TestAuthenticate_MissingInstallationID(t *testing.T) {
	install := &stubInstall{}
	srv := newTestServer(t, install, stubState{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authenticate", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, install.calls)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, core.ErrorBadInput, body.Error.TextCode)
}

func TestAuthenticate_SurfacesInstallFailure(t *testing.T) {
	install := &stubInstall{err: core.NewError(core.KindUpstreamAuth, "token exchange rejected", map[string]any{
		"status_code":   401,
		"response_body": `{"message":"Bad credentials"}`,
	})}
	srv := newTestServer(t, install, stubState{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authenticate?installation_id=1", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, core.ErrorUpstreamAuth, body.Error.TextCode)
	assert.NotContains(t, body.Error.Metadata, "response_body")
	assert.Contains(t, body.Error.Metadata, "status_code")
}

func TestWebhookRoute_DelegatesOnPostOnly(t *testing.T) {
	srv := newTestServer(t, &stubInstall{}, stubState{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth_ReportsTokenState(t *testing.T) {
	srv := newTestServer(t, &stubInstall{}, stubState{status: query.TokenStatus{
		State:          core.TokenStateExpiring,
		AppID:          "12345",
		InstallationID: "67890",
	}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status query.TokenStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, core.TokenStateExpiring, status.State)
}

func TestHealth_SurfacesStoreErrors(t *testing.T) {
	srv := newTestServer(t, &stubInstall{}, stubState{err: core.NewError(core.KindCorruptRecord, "token file is partial", nil)})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Install: &stubInstall{}})
	assert.Error(t, err)
}

func TestResolveAddr(t *testing.T) {
	assert.Equal(t, ":5000", resolveAddr("", 0))
	assert.Equal(t, ":8080", resolveAddr("", 8080))
	assert.Equal(t, "127.0.0.1:9000", resolveAddr("127.0.0.1:9000", 8080))
}
