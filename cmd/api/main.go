package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/config"
	httpserver "github.com/taskops/reporting-service/internal/http"
	"github.com/taskops/reporting-service/internal/http/handlers"
	"github.com/taskops/reporting-service/internal/queue"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/service"
	"github.com/taskops/reporting-service/internal/upstream"
	"github.com/taskops/reporting-service/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[reporting] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	reportCache, cacheBackend, cacheCloser := setupCache(ctx, cfg, logger)
	defer cacheCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	clients := upstream.NewClient(upstream.Config{
		Endpoints: upstream.Endpoints{
			UserService:        cfg.UserServiceURL,
			ProjectTaskService: cfg.ProjectTaskServiceURL,
			CommentService:     cfg.CommentServiceURL,
			AttachmentService:  cfg.AttachmentServiceURL,
			ActivityLogService: cfg.ActivityLogServiceURL,
		},
		Timeout: time.Duration(cfg.UpstreamTimeoutMS) * time.Millisecond,
		Logger:  logger,
	})

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	reports := service.NewReportsService(repo, producer, reportCache, clients, cacheTTL, logger)
	api := handlers.NewAPI(reports, cacheBackend)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Verifier:       clients,
		Logger:         logger,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		generator := worker.NewGenerator(consumer, repo, reportCache, clients, worker.GeneratorConfig{
			JobTimeout:  time.Duration(cfg.JobTimeoutMS) * time.Millisecond,
			FanOutLimit: cfg.FanOutConcurrency,
			CacheTTL:    cacheTTL,
		}, logger)
		go generator.Start(ctx)
		logger.Printf("report worker enabled and started")
	} else {
		logger.Printf("report worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ReportsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryReportsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresReportsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryReportsRepository(), func() {}
	}
	logger.Printf("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupCache(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (cache.ReportCache, string, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory cache")
		return cache.NewMemoryReportCache(cache.Config{MaxEntries: cfg.CacheMaxEntries}), "memory", func() {}
	}

	redisCache, err := cache.NewRedisReportCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Printf("failed to initialize redis cache, fallback to memory: %v", err)
		return cache.NewMemoryReportCache(cache.Config{MaxEntries: cfg.CacheMaxEntries}), "memory", func() {}
	}
	logger.Printf("redis cache initialized")
	return redisCache, "redis", func() {
		_ = redisCache.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(cfg.QueueBufferSize, cfg.QueueMaxAttempts, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: cfg.QueueMaxAttempts,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(cfg.QueueBufferSize, cfg.QueueMaxAttempts, logger)
		return local, local, func() {}
	}
	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}
