// Package web provides the browser dashboard and its JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/util"
)

// Server is the web server.
type Server struct {
	workspace *provision.Workspace
	config    *util.Config
	port      int
	hub       *Hub
	srv       *http.Server

	// cancelled on shutdown so background fetches stop issuing probes
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server driving workspace.
func NewServer(workspace *provision.Workspace, cfg *util.Config, port int) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		workspace: workspace,
		config:    cfg,
		port:      port,
		hub:       NewHub(),
		ctx:       ctx,
		cancel:    cancel,
	}
	workspace.Subscribe(s.hub.BroadcastEvent)
	return s
}

// Routes returns the HTTP handler. The hub must be running for /ws.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	h := NewHandlers(s.ctx, s.workspace, s.config)

	mux.HandleFunc("/", h.Dashboard)
	mux.HandleFunc("/user-agents", h.UserAgentsPage)
	mux.HandleFunc("/api/credentials", h.APICredentials)
	mux.HandleFunc("/api/connection", h.APIGetConnection)
	mux.HandleFunc("/api/connection/test", h.APITestConnection)
	mux.HandleFunc("/api/proxies", h.APIGetProxies)
	mux.HandleFunc("/api/proxies/fetch", h.APIFetchProxies)
	mux.HandleFunc("/api/useragents", h.APIGetUserAgents)
	mux.HandleFunc("/api/status", h.APIGetStatus)
	mux.HandleFunc("/report", h.DownloadReport)
	mux.HandleFunc("/ws", s.hub.ServeWs)

	return sameOriginWrites(mux)
}

// sameOriginWrites only lets same-origin JSON requests change state.
// Non-browser clients send no Origin and pass the origin check.
func sameOriginWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if !sameHostOrigin(r) || r.Header.Get("Sec-Fetch-Site") == "cross-site" {
			writeError(w, errors.New("cross-origin request rejected"), http.StatusForbidden)
			return
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				writeError(w, errors.New("Content-Type must be application/json"), http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the web server and blocks until it is shut down.
func (s *Server) Start() error {
	go s.hub.Run()

	s.srv = &http.Server{
		Addr:         net.JoinHostPort(s.config.WebHost, fmt.Sprintf("%d", s.port)),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		s.Stop()
	}()

	util.Info("Web server starting on %s", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop stops the web server.
func (s *Server) Stop() error {
	s.cancel()
	if s.srv == nil {
		s.hub.Close()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.hub.Close()
	return err
}
