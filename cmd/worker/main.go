package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/documents"
	"jobgenie/internal/metrics"
	"jobgenie/internal/pdf"
	"jobgenie/internal/profile"
	"jobgenie/internal/resources"
	"jobgenie/internal/scheduler"
	"jobgenie/internal/skills"
	"jobgenie/internal/storage"
	"jobgenie/internal/tasks"
	"jobgenie/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	var provider resources.Provider = resources.DisabledProvider{}
	if cfg.YouTube.APIKey != "" {
		yt, err := resources.NewYouTubeProvider(ctx, cfg.YouTube.APIKey)
		if err != nil {
			log.Fatalf("init youtube provider: %v", err)
		}
		provider = yt
	}
	resourceCache := resources.NewCache(
		resources.NewRedisStore(redisClient, cfg.Resources.Retention),
		provider,
		resources.WithTTL(cfg.Resources.TTL),
		resources.WithLogger(logger),
	)

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	exportHandler := worker.NewExportTaskHandler(documents.NewStore(db), pdf.NewRenderer(), storageClient, redisClient, logger)
	prewarmHandler := worker.NewPrewarmTaskHandler(resourceCache, logger,
		profile.NewService(db).AllSkills,
		skills.NewStore(db).AllSkillNames,
	)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeDocumentExport, exportHandler)
	mux.Handle(tasks.TypeResourcePrewarm, prewarmHandler)

	queue := asynq.NewClient(redisOpt)
	defer queue.Close()
	cron := scheduler.New(queue, cfg.Resources.PrewarmSpec, logger)
	if err := cron.Start(ctx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer cron.Stop()

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := server.Start(mux); err != nil {
		log.Fatalf("start worker server: %v", err)
	}
	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	<-ctx.Done()
	logger.Info("shutting down worker")
	server.Shutdown()
}
