package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/teamreel/teamreel/internal/audit"
	"github.com/teamreel/teamreel/internal/authz"
	"github.com/teamreel/teamreel/internal/config"
	"github.com/teamreel/teamreel/internal/guard"
	"github.com/teamreel/teamreel/internal/observability"
	"github.com/teamreel/teamreel/internal/session"
)

// Server is the HTTP server with its guarded routes. Reload swaps the
// handler and its dependencies in place, so requests always see a
// consistent configuration.
type Server struct {
	logger     observability.Logger
	httpServer *http.Server

	mu             sync.RWMutex
	cfg            *config.Config
	engine         *gin.Engine
	registry       *prometheus.Registry
	guard          *guard.Guard
	cache          session.Cache
	audit          audit.Logger
	tracer         *observability.Tracer
	sessionWatcher *session.Watcher
}

// New builds the server: metrics registry, session resolver, policy
// evaluator, guard, middleware stack, and routes.
func New(cfg *config.Config, logger observability.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	namespace := cfg.Metrics.Namespace
	authzMetrics := authz.NewMetricsWithRegisterer(namespace, registry)
	authzMetrics.Init()
	sessionMetrics := session.NewMetricsWithRegisterer(namespace, registry)
	sessionMetrics.Init()
	guardMetrics := guard.NewMetricsWithRegisterer(namespace, registry)
	guardMetrics.Init()

	sessionWatcher := session.NewWatcher(
		session.WithWatcherLogger(logger),
		session.WithWatcherMetrics(sessionMetrics),
	)

	resolverOpts := []session.ResolverOption{
		session.WithResolverLogger(logger),
		session.WithResolverMetrics(sessionMetrics),
		session.WithSessionWatcher(sessionWatcher),
	}

	var cache session.Cache
	if cfg.Redis != nil {
		cache = session.NewRedisCache(cfg.Redis.CacheConfig(),
			session.WithRedisCacheLogger(logger),
		)
	} else {
		cache = session.NewMemoryCache(cfg.Session.CacheTTL.Duration())
	}
	resolverOpts = append(resolverOpts, session.WithCache(cache))

	resolver, err := session.NewResolver(cfg.Session.ResolverConfig(), resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("session resolver: %w", err)
	}

	evaluator := authz.NewEvaluator(
		authz.WithEvaluatorLogger(logger),
		authz.WithEvaluatorMetrics(authzMetrics),
	)

	auditLogger := audit.NopLogger()
	if cfg.Audit.Enabled {
		auditMetrics := audit.NewMetricsWithRegisterer(namespace, registry)
		auditMetrics.Init()
		auditLogger, err = audit.NewFileLogger(cfg.Audit.Path,
			audit.WithLogger(logger),
			audit.WithMetrics(auditMetrics),
		)
		if err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
	}

	g := guard.New(resolver, evaluator,
		guard.WithLogger(logger),
		guard.WithMetrics(guardMetrics),
		guard.WithAuthzMetrics(authzMetrics),
		guard.WithAuditLogger(auditLogger),
		guard.WithExtractor(session.NewExtractor(cfg.Session.CookieName)),
	)

	tracer, err := observability.NewTracer(cfg.Tracing.TracerConfig())
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(RequestID(), Recovery(logger), Tracing(tracer), AccessLog(logger))

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		engine:         engine,
		registry:       registry,
		guard:          g,
		cache:          cache,
		audit:          auditLogger,
		tracer:         tracer,
		sessionWatcher: sessionWatcher,
	}

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      http.HandlerFunc(s.serveHTTP),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	return s, nil
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// Handler returns the server's current HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Reload rebuilds the server from a new configuration and swaps it in.
// A configuration that fails to build leaves the running server
// untouched. Listen address and timeout changes apply on restart only.
func (s *Server) Reload(cfg *config.Config) error {
	next, err := New(cfg, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	oldCache, oldAudit := s.cache, s.audit
	oldTracer, oldWatcher := s.tracer, s.sessionWatcher
	s.cfg = cfg
	s.engine = next.engine
	s.registry = next.registry
	s.guard = next.guard
	s.cache = next.cache
	s.audit = next.audit
	s.tracer = next.tracer
	s.sessionWatcher = next.sessionWatcher
	s.mu.Unlock()

	oldWatcher.Close()
	if oldCache != nil {
		_ = oldCache.Close()
	}
	_ = oldAudit.Close()
	_ = oldTracer.Shutdown(context.Background())

	return nil
}

// SessionWatcher returns the watcher carrying out-of-band session
// changes into the resolver's cache.
func (s *Server) SessionWatcher() *session.Watcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionWatcher
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening",
		observability.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.RLock()
	cache, auditLogger := s.cache, s.audit
	tracer, watcher := s.tracer, s.sessionWatcher
	s.mu.RUnlock()

	watcher.Close()
	if cache != nil {
		if cerr := cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := auditLogger.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := tracer.Shutdown(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
