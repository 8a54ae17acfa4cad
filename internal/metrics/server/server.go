// Package server wires the metrics service together
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/revlens/revlens/internal/metrics/adapters/billing"
	"github.com/revlens/revlens/internal/metrics/adapters/http/handlers"
	"github.com/revlens/revlens/internal/metrics/adapters/repository/postgres"
	"github.com/revlens/revlens/internal/metrics/app/service"
	"github.com/revlens/revlens/internal/metrics/domain/repository"
	"github.com/revlens/revlens/internal/metrics/realtime"
	"github.com/revlens/revlens/internal/platform/cache"
	"github.com/revlens/revlens/internal/platform/config"
	"github.com/revlens/revlens/internal/platform/database"
	"github.com/revlens/revlens/internal/platform/logger"
	"github.com/revlens/revlens/internal/platform/metrics"
	"github.com/revlens/revlens/internal/platform/telemetry"
	"github.com/revlens/revlens/pkg/middleware"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	telemetry  *telemetry.Telemetry
	metrics    *metrics.Metrics
	httpServer *http.Server
	db         *database.DB
	cache      *cache.RedisCache
	hub        *realtime.Hub
	refresher  *service.Refresher
}

type Option func(*Server)

func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.config = cfg }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.logger = log }
}

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Server) { s.telemetry = tel }
}

func New(opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return s, nil
}

func (s *Server) initialize() error {
	s.metrics = metrics.NewMetrics(strings.ReplaceAll(s.config.Service.Name, "-", "_"))

	// Snapshot history is optional: without a database there are no MRR trends
	var snapshotRepo repository.SnapshotRepository
	if s.config.Database.Host != "" {
		db, err := database.New(s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		s.db = db

		snapshotRepo, err = postgres.NewSnapshotRepository(db)
		if err != nil {
			return err
		}
	} else {
		s.logger.Warn("no database configured, snapshot history disabled")
	}

	// Cache is optional too: without it every request recomputes
	if s.config.Redis.Host != "" {
		redisCache, err := cache.NewRedisCache(s.config.Redis, "metrics")
		if err != nil {
			s.logger.Warn("failed to initialize Redis cache", "error", err)
		} else {
			s.cache = redisCache
		}
	}

	billingClient := billing.NewClient(s.config.Billing, billing.WithMetrics(s.metrics))

	s.hub = realtime.NewHub(s.logger)

	revenueService := service.NewRevenueService(billingClient, snapshotRepo, s.cache, s.metrics, s.logger, s.config.Billing)
	churnService := service.NewChurnService(billingClient, s.cache, s.metrics, s.logger, s.config.Billing)

	if s.config.Snapshot.Enabled {
		s.refresher = service.NewRefresher(
			revenueService,
			churnService,
			snapshotRepo,
			s.hub,
			s.metrics,
			s.logger,
			s.config.Billing.APIKey,
			s.config.Snapshot.Schedule,
		)
	}

	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}
			s.metrics.InstrumentHandler(path, next).ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"alive"}`)
	}).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ready"}`)
	}).Methods(http.MethodGet)

	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	handler := handlers.NewMetricsHandler(
		revenueService,
		churnService,
		billingClient,
		snapshotRepo,
		s.hub,
		s.config.Billing.APIKey,
		s.logger,
	)
	handler.RegisterRoutes(router)

	chain := middleware.Recovery(&middleware.RecoveryConfig{Logger: s.logger, StackTrace: true})(
		middleware.CORS(&middleware.CORSConfig{AllowedOrigins: s.config.HTTP.AllowedOrigins})(
			middleware.Logging(&middleware.LoggingConfig{
				Logger:    s.logger,
				SkipPaths: []string{"/health/live", "/health/ready", "/metrics"},
			})(router),
		),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTP.Port),
		Handler:      chain,
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}

	return nil
}

func (s *Server) Start() error {
	go s.hub.Run()

	if s.refresher != nil {
		if err := s.refresher.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start refresher: %w", err)
		}
	}

	s.logger.Info("Starting HTTP server", "port", s.config.HTTP.Port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.refresher != nil {
		s.refresher.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.db != nil {
		_ = s.db.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}

	return nil
}
