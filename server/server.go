package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ghapp/command"
	"github.com/goliatone/go-ghapp/query"
)

const (
	DefaultRedirectURL       = "https://www.github.com"
	DefaultReadHeaderTimeout = 5 * time.Second
)

type Config struct {
	Addr        string
	Port        int
	AppID       string
	RedirectURL string

	Install gocmd.Commander[command.InstallMessage]
	State   gocmd.Querier[query.TokenStateMessage, query.TokenStatus]
	Webhook http.Handler

	Logger         glog.Logger
	LoggerProvider glog.LoggerProvider
}

// Server wires the HTTP listener to the installation callback, the webhook
// receiver and the health probe.
type Server struct {
	http    *http.Server
	handler *handler
	logger  glog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Install == nil {
		return nil, errors.New("server: install command is required")
	}
	if cfg.Webhook == nil {
		return nil, errors.New("server: webhook handler is required")
	}
	_, logger := glog.Resolve("ghapp.server", cfg.LoggerProvider, cfg.Logger)

	redirect := strings.TrimSpace(cfg.RedirectURL)
	if redirect == "" {
		redirect = DefaultRedirectURL
	}
	h := &handler{
		appID:    strings.TrimSpace(cfg.AppID),
		redirect: redirect,
		install:  cfg.Install,
		state:    cfg.State,
		webhook:  cfg.Webhook,
		logger:   logger,
	}

	return &Server{
		http: &http.Server{
			Addr:              resolveAddr(cfg.Addr, cfg.Port),
			Handler:           h.routes(),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		handler: h,
		logger:  logger,
	}, nil
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler exposes the route table, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Serve(listener net.Listener) error {
	err := s.http.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func resolveAddr(addr string, port int) string {
	if addr = strings.TrimSpace(addr); addr != "" {
		return addr
	}
	if port <= 0 {
		port = 5000
	}
	return ":" + strconv.Itoa(port)
}
