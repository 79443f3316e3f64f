package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

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
	"eventide/pkg/logging"
	"eventide/pkg/metrics"
	"eventide/pkg/models"
	"eventide/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	engine         *engine.Engine
	dlqService     *dlq.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("engine-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker("engine-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initEngine()

	tp, err := tracing.Init(a.Config.Tracing, "engine-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDedupMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *App) initEngine() {
	dedupRepo := dedup.NewRepository(a.redis)
	dedupRepoWrapped := dedup.NewCircuitBreakerRepository(dedupRepo, a.Config.CircuitBreaker)
	gate := dedup.NewService(dedupRepoWrapped, a.Config.Deduplication, a.Logger)

	workflowRepo := workflow.NewRepository(a.db)

	evaluator := condition.NewEvaluator()

	httpClient := httpclient.NewCircuitBreakerClient(httpclient.NewHTTPClient(a.Config.Dispatch), a.Config.CircuitBreaker)
	dispatcher := dispatch.NewActionDispatcher(a.Producer, httpClient, a.Logger)

	a.dlqService = dlq.NewService(a.Producer, a.Config.DLQ, a.Config.Topics, a.Logger)

	a.engine = engine.New(gate, workflowRepo, evaluator, dispatcher, a.dlqService, a.Logger)
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	a.Consumer.SetRawHandler(func(rawCtx context.Context, raw []byte, decodeErr error) {
		if err := a.dlqService.EnqueueRaw(rawCtx, raw, decodeErr); err != nil {
			a.Logger.ErrorwCtx(rawCtx, "Failed to enqueue raw DLQ envelope", "error", err)
		}
	})

	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, "engine-service")
		return a.Consumer.Consume(consumeCtx, a.Config.Topics.Events, a.handleMessage)
	})

	return g.Wait()
}

func (a *App) handleMessage(ctx context.Context, msg models.MessageEnvelope) error {
	return a.engine.Process(ctx, msg.IncomingEvent())
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "engine-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down engine service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
