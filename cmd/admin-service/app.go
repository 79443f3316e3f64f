package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"eventide/internal/admin"
	"eventide/internal/broker"
	"eventide/internal/condition"
	"eventide/internal/config"
	"eventide/internal/constants"
	"eventide/internal/dedup"
	"eventide/internal/dispatch"
	"eventide/internal/dlq"
	"eventide/internal/engine"
	"eventide/internal/httpclient"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/bootstrap"
	"eventide/pkg/health"
	"eventide/pkg/metrics"
	"eventide/pkg/middleware"
	"eventide/pkg/migrations"
	"eventide/pkg/ratelimit"
	"eventide/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	producer       broker.Producer
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, "file://migrations/postgres"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.Info("Database migrations applied")
	}

	producer, err := broker.NewProducer(a.config.Broker, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	a.producer = producer

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	tp, err := tracing.Init(a.config.Tracing, "admin-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("admin-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Management.RateLimit.Enabled {
		rlCfg := a.config.Management.RateLimit
		router.Use(ratelimit.RateLimitMiddleware(ratelimit.RateLimitConfig{
			RPS:             rlCfg.RPS,
			Burst:           rlCfg.Burst,
			CleanupInterval: time.Duration(rlCfg.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rlCfg.MaxAge) * time.Second,
		}))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rlCfg.RPS, "burst", rlCfg.Burst)
	}

	workflowRepo := workflow.NewRepository(a.db)
	evaluator := condition.NewEvaluator()

	dedupRepo := dedup.NewCircuitBreakerRepository(dedup.NewRepository(a.redis), a.config.CircuitBreaker)
	gate := dedup.NewService(dedupRepo, a.config.Deduplication, a.logger)

	httpClient := httpclient.NewCircuitBreakerClient(httpclient.NewHTTPClient(a.config.Dispatch), a.config.CircuitBreaker)
	dispatcher := dispatch.NewActionDispatcher(a.producer, httpClient, a.logger)
	dlqService := dlq.NewService(a.producer, a.config.DLQ, a.config.Topics, a.logger)

	eng := engine.New(gate, workflowRepo, evaluator, dispatcher, dlqService, a.logger)

	audit := admin.NewAuditLogger(a.db, a.logger)
	svc := admin.NewService(workflowRepo, evaluator, eng, audit, dedupRepo, a.logger)
	handler := admin.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterDedupMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterRateLimitMetrics()
	if a.config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewRedisChecker(a.redis))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down admin service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
