package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/amerfu/llmrouter/internal/logger"
	"github.com/amerfu/llmrouter/internal/router"
	"github.com/amerfu/llmrouter/internal/services/backends"
	"github.com/amerfu/llmrouter/internal/services/metrics"
	"github.com/amerfu/llmrouter/internal/services/queue"
	"github.com/amerfu/llmrouter/internal/services/routing"
	"github.com/amerfu/llmrouter/pkg/circuitbreaker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Initialize(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Router exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		client, err := newRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
	}

	registry, err := newRegistry(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := metrics.Fanout{metrics.NewCollector(promRegistry)}
	var tracker *metrics.LatencyTracker
	if redisClient != nil {
		tracker = metrics.NewLatencyTracker(redisClient, cfg.Queue.KeyPrefix, log)
		sinks = append(sinks, tracker)
	}

	var (
		backend  backends.Backend
		breakers *circuitbreaker.Manager
	)
	if cfg.MockMode() {
		backend = backends.NewSimulatedBackend(cfg.Simulation.MinDelay, cfg.Simulation.MaxDelay)
	} else {
		backend = backends.NewLiveBackend(cfg.Timeout(), log)
		if cfg.CircuitBreaker.Enabled {
			breakers = circuitbreaker.NewManager(cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.Cooldown)
			backend = backends.NewBreakerBackend(backend, breakers, log)
		}
	}

	routingRouter := routing.NewRouter(cfg, registry, backend, log)

	apiServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.NewRouter(cfg, log, router.Dependencies{
			Router:     routingRouter,
			Registry:   registry,
			Sink:       sinks,
			Tracker:    tracker,
			Breakers:   breakers,
			Prometheus: promRegistry,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	servers := map[string]*http.Server{"api": apiServer}

	if cfg.Monitoring.EnableMetrics && cfg.Server.MetricsPort > 0 && cfg.Server.MetricsPort != cfg.Server.Port {
		servers["metrics"] = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:      router.NewMetricsRouter(cfg, log, promRegistry),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
	}

	log.Info("LLM router starting",
		zap.String("mode", cfg.Mode()),
		zap.Strings("models", cfg.ModelIDs()),
		zap.String("fallback_model", cfg.FallbackModel()),
		zap.String("queue_backend", cfg.Queue.Backend),
		zap.Bool("latency_tracking", tracker != nil))

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range servers {
		g.Go(func() error {
			log.Info("Server listening", zap.String("server", name), zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()

		for name, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", zap.String("server", name), zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Servers shutdown complete")
	return nil
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Override with explicit password and DB if provided
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func newRegistry(ctx context.Context, cfg *config.Config, client *redis.Client, log *zap.Logger) (queue.Registry, error) {
	if cfg.Queue.Backend != "redis" {
		return queue.NewMemoryRegistry(cfg.ModelIDs()), nil
	}
	if client == nil {
		return nil, errors.New("queue backend redis requires redis.url")
	}
	return queue.NewRedisRegistry(ctx, client, cfg.Queue.KeyPrefix, cfg.ModelIDs(), log)
}
