// Package server assembles the HTTP server: proxy dispatcher, mock
// sibling endpoints, health checks, metrics, audit trail, and config
// reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"prismgate/pkg/auditlog"
	"prismgate/pkg/config"
	"prismgate/pkg/mock"
	"prismgate/pkg/proxy"
	"prismgate/pkg/proxy/middleware"
	"prismgate/pkg/telemetry/health"
	"prismgate/pkg/telemetry/metrics"
)

// Options carries the server's construction parameters.
type Options struct {
	// Config is the validated configuration to serve.
	Config *config.Config

	// ConfigPath is the file the configuration came from. Required for
	// hot reload; empty disables watching regardless of Config.Watch.
	ConfigPath string

	// Credential is the service API key pinned onto the relay endpoint.
	Credential string

	// Version is the build version reported by the health endpoints.
	Version string

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// Server is the assembled prismgate process.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger

	tables  *config.TableHolder
	watcher *config.Watcher
	audit   *auditlog.Store
	pruner  *auditlog.Pruner
}

// New builds a server from options. The returned server owns the audit
// store and config watcher; Shutdown releases them.
func New(opts Options) (*Server, error) {
	cfg := opts.Config

	table, err := config.NewRouteTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}
	holder := config.NewTableHolder(table)

	s := &Server{
		cfg:    cfg,
		logger: opts.Logger,
		tables: holder,
	}

	var sink proxy.AuditSink
	if cfg.Audit.Enabled {
		store, err := auditlog.Open(cfg.Audit.Path, opts.Logger)
		if err != nil {
			return nil, err
		}
		pruner, err := auditlog.NewPruner(store, cfg.Audit.PruneSchedule, cfg.Audit.RetentionDays, opts.Logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		s.audit = store
		s.pruner = pruner
		sink = store
	}

	dispatcher := proxy.NewDispatcher(
		holder,
		proxy.NewForwarder(&http.Client{}, opts.Credential, opts.Logger),
		proxy.NewTranscoder(opts.Logger),
		opts.Logger,
		sink,
	)

	mux := http.NewServeMux()
	mux.Handle("/", dispatcher)
	mock.NewHandler(opts.Logger).Register(mux)
	health.NewHandler(opts.Version).Register(mux)

	var handler http.Handler = mux
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics.Namespace)
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
		handler = m.Instrument(handler)
	}
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	s.httpServer = &http.Server{
		Addr:           cfg.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	if cfg.Watch && opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(opts.ConfigPath, s.applyReload, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.watcher = watcher
	}

	return s, nil
}

// applyReload swaps in a freshly loaded route table.
func (s *Server) applyReload(cfg *config.Config, table *config.RouteTable) {
	s.tables.Swap(table)
}

// Start runs the server until it is shut down. It blocks.
func (s *Server) Start() error {
	if s.watcher != nil {
		s.watcher.Start()
	}
	if s.pruner != nil {
		s.pruner.Start()
	}

	s.logger.Info("server listening",
		"address", s.cfg.Server.ListenAddress,
		"routes", s.tables.Current().Len(),
		"audit", s.cfg.Audit.Enabled,
		"metrics", s.cfg.Metrics.Enabled)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases its resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("failed to stop config watcher", "error", err)
		}
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}

	err := s.httpServer.Shutdown(ctx)

	if s.audit != nil {
		if cerr := s.audit.Close(); cerr != nil {
			s.logger.Warn("failed to close audit store", "error", cerr)
		}
	}

	s.logger.Info("server stopped")
	return err
}
