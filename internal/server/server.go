package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"prom-markup/internal/catalog"
	"prom-markup/internal/config"
	"prom-markup/internal/database"
	custommiddleware "prom-markup/internal/middleware"
	"prom-markup/internal/prom"
	"prom-markup/internal/repository"
	"prom-markup/internal/scheduler"
	"prom-markup/internal/service"
	"prom-markup/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	scheduler *scheduler.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	// Initialize repositories
	changesRepo := repository.NewChangesRepository(db.DB())
	automationRepo := repository.NewAutomationRepository(db.DB())
	settingsRepo := repository.NewSettingsRepository(db.DB())

	// Remote API and scheduling
	promClient, err := prom.NewClient(prom.Config{
		BaseURL:           cfg.PromAPI.BaseURL,
		Timeout:           cfg.PromAPI.Timeout,
		RequestsPerSecond: cfg.PromAPI.RequestsPerSecond,
		BatchSize:         cfg.PromAPI.BatchSize,
	}, service.NewAPIKeySource(settingsRepo), logger.Named("prom"))
	if err != nil {
		return nil, fmt.Errorf("failed to create prom client: %w", err)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler timezone: %w", err)
	}

	runner := service.NewChangesRunner(changesRepo, promClient, service.NewGroupLocks(), logger)
	sched := scheduler.New(automationRepo, runner, logger.Named("scheduler"), scheduler.WithLocation(loc))

	// Initialize services
	store := catalog.NewStore()
	catalogService := service.NewCatalogService(store, catalog.NewFetcher(cfg.Feed.Timeout), logger)
	markupService := service.NewMarkupService(store, changesRepo, automationRepo, runner, sched, logger)
	automationService := service.NewAutomationService(automationRepo, sched)
	settingsService := service.NewSettingsService(settingsRepo, promClient, logger)

	// Initialize handlers
	handlers := []interface{ RegisterRoutes(chi.Router) }{
		transport.NewCatalogHandler(catalogService, logger),
		transport.NewMarkupHandler(markupService, logger),
		transport.NewAutomationHandler(automationService, logger),
		transport.NewSettingsHandler(settingsService, logger),
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithEnvelope(w, status, custommiddleware.Envelope{
			IsSuccess: status == http.StatusOK,
			Data:      map[string]interface{}{"database": health, "automations": len(sched.Active())},
		})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		if cfg.JWT.Secret != "" {
			r.Use(custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger))
			r.Use(custommiddleware.RequireScopeByMethod(logger))
		} else {
			logger.Warn("JWT_SECRET is empty, the API is served without authentication")
		}

		if redisClient != nil {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "prom_markup_rate_limit",
			}, logger))
		}

		for _, h := range handlers {
			h.RegisterRoutes(r)
		}
	})

	server := &Server{
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:     router,
			IdleTimeout: time.Minute,
			ReadTimeout: 10 * time.Second,
			// Catalog loads and markup runs wait on the feed and the remote API
			WriteTimeout: cfg.Feed.Timeout + cfg.PromAPI.Timeout,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		scheduler: sched,
	}

	return server, nil
}

// Start arms every persisted automation
func (s *Server) Start(ctx context.Context) error {
	if err := s.scheduler.LoadAll(ctx); err != nil {
		s.logger.Warn("Some automations could not be armed", zap.Error(err))
	}
	s.logger.Info("Automations armed", zap.Int("count", len(s.scheduler.Active())))
	return nil
}

// Close stops the scheduler, waiting for running automations until ctx is done, and releases connections
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Closing server resources")

	if err := s.scheduler.Stop(ctx); err != nil {
		s.logger.Error("Scheduler did not stop cleanly", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
