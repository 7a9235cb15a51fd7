// Package app wires together all dependencies and runs the wishlist sync
// agent.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amourflorals/wishsync/internal/config"
	"github.com/amourflorals/wishsync/internal/engine"
	"github.com/amourflorals/wishsync/internal/event"
	handler "github.com/amourflorals/wishsync/internal/handler/http"
	redisstore "github.com/amourflorals/wishsync/internal/store/redis"
	"github.com/amourflorals/wishsync/internal/upstream"
	"github.com/amourflorals/wishsync/pkg/health"
	"github.com/amourflorals/wishsync/pkg/httpclient"
	pkgkafka "github.com/amourflorals/wishsync/pkg/kafka"
	"github.com/amourflorals/wishsync/pkg/tracing"
)

// App holds the agent's long-lived components.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *redis.Client
	producer   *pkgkafka.Producer
	httpServer *http.Server

	// baseCancel stops queued engine work on shutdown.
	baseCancel      context.CancelFunc
	tracingShutdown func(context.Context) error
}

// NewApp creates the application with all dependencies wired.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		ServiceName:  "wishsync",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Redis wishlist cache.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Kafka producer, optional.
	var (
		producer *pkgkafka.Producer
		events   engine.Publisher = event.Noop{}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("no kafka brokers configured, events disabled")
	}

	// Storefront client behind retry and a circuit breaker.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.StorefrontTimeout) * time.Second
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("storefront"),
		logger,
	)
	storefront := upstream.NewClient(breaker, cfg.StorefrontURL, logger)

	// Engine registry.
	cacheTTL := time.Duration(cfg.CacheTTL) * time.Hour
	wishlistStore := redisstore.New(rdb, cacheTTL)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager := engine.NewManager(baseCtx, engine.Deps{
		Upstream:   storefront,
		Store:      wishlistStore,
		Events:     events,
		Logger:     logger,
		AtomicMove: cfg.AtomicMove,
	})

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if producer != nil {
		healthHandler.Register("kafka", producer.Ping)
	}

	router := handler.NewRouter(handler.NewWishlistHandler(manager), healthHandler, logger, cfg.AllowOrigin)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		rdb:             rdb,
		producer:        producer,
		httpServer:      httpServer,
		baseCancel:      baseCancel,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Stop queued engine work after the server has drained.
	a.baseCancel()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
