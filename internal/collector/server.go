// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/pkg/types"
)

const shutdownTimeout = 5 * time.Second

type (
	// Server is the loopback collector. Construct it with New, then Start it;
	// Stop it once the build has finished.
	Server struct {
		*lifecycle

		logger     *log.Logger
		listenPort types.ListenPort
		token      string
		policy     rewrite.UnknownFlagPolicy
		settings   atomic.Pointer[Settings]
		store      *Store
		metrics    *metrics
		handler    http.Handler

		// mu guards listener, addr and httpServer.
		mu         sync.Mutex
		listener   net.Listener
		addr       string
		httpServer *http.Server
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithListenPort binds the given loopback port. Zero picks a free one.
func WithListenPort(port types.ListenPort) Option {
	return func(s *Server) { s.listenPort = port }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithUnknownFlagPolicy sets the policy served to hooks.
func WithUnknownFlagPolicy(p rewrite.UnknownFlagPolicy) Option {
	return func(s *Server) { s.policy = p }
}

// WithToken fixes the bearer token instead of generating one.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// New creates a collector serving rules. The server is not listening until
// Start is called.
func New(rules *rewrite.RuleSet, opts ...Option) (*Server, error) {
	s := &Server{
		lifecycle: newLifecycle(),
		logger:    log.New(io.Discard),
		policy:    rewrite.PolicyDefaultZero,
		store:     NewStore(),
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.listenPort.Validate(); err != nil {
		return nil, err
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	if s.token == "" {
		token, err := generateToken(32)
		if err != nil {
			return nil, err
		}
		s.token = token
	}

	s.SetRules(rules)
	s.handler = s.routes()
	return s, nil
}

// Start binds the listener and serves in the background. It returns once
// the server is running.
func (s *Server) Start(ctx context.Context) error {
	if err := s.toStarting(ctx); err != nil {
		return err
	}

	addr := s.listenPort.LoopbackAddress()
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return s.toFailed(fmt.Errorf("failed to listen on %s: %w", addr, err))
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	s.wg.Go(func() { s.serve(srv, listener) })

	s.toRunning()
	s.logger.Debug("collector listening", "addr", s.addr, "rules", len(s.Settings().Rules))
	return nil
}

func (s *Server) serve(srv *http.Server, listener net.Listener) {
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("collector stopped serving", "error", err)
		s.sendError(fmt.Errorf("serve error: %w", err))
	}
}

// Stop shuts the server down, waiting for in-flight requests. Stopping a
// server that is not running is a no-op.
func (s *Server) Stop() error {
	if !s.toStopping() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.toStopped()
	s.logger.Debug("collector stopped", "reports", s.store.Len())
	return err
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the base URL hooks connect to.
func (s *Server) URL() string {
	if addr := s.Addr(); addr != "" {
		return "http://" + addr
	}
	return ""
}

// Token returns the bearer token.
func (s *Server) Token() string {
	return s.token
}

// Env returns the environment entries a hook needs to reach the server.
func (s *Server) Env() []string {
	return []string{
		EnvURL + "=" + s.URL(),
		EnvToken + "=" + s.token,
	}
}

// Handler returns the server's HTTP handler, for use without a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetRules replaces the served rules. Requests in flight keep the settings
// they started with.
func (s *Server) SetRules(rules *rewrite.RuleSet) {
	settings := NewSettings(rules, s.policy)
	s.settings.Store(&settings)
	s.metrics.rules.Set(float64(len(settings.Rules)))
}

// Settings returns the settings currently served.
func (s *Server) Settings() Settings {
	return *s.settings.Load()
}

// Reports returns every report received so far. After Stop the set no
// longer changes.
func (s *Server) Reports() []Report {
	return s.store.Reports()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+settingsPath, s.instrument(settingsPath, s.authenticate(http.HandlerFunc(s.handleSettings))))
	mux.Handle("POST "+reportsPath, s.instrument(reportsPath, s.authenticate(http.HandlerFunc(s.handleReport))))
	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	mux.Handle("GET "+metricsPath, s.metrics.handler())
	return mux
}

func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.metrics.observe(path, time.Since(start))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	expected := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) != 1 {
			writeError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	s.metrics.settingsFetches.Inc()
	writeJSON(w, http.StatusOK, s.Settings())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxReportBytes)
	defer body.Close()

	if state := s.State(); !state.AcceptsReports() {
		writeError(w, "collector is "+state.String(), http.StatusServiceUnavailable)
		return
	}

	var report Report
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&report); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := report.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored := s.store.Add(report)
	s.metrics.reports.WithLabelValues(stored.Outcome.String()).Inc()
	s.logger.Debug("report",
		"id", stored.ID,
		"outcome", stored.Outcome,
		"command", stored.Effective().String(),
		"dir", stored.Directory,
	)
	writeJSON(w, http.StatusCreated, reportReceipt{ID: stored.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
