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

	"jobgenie/internal/api"
	"jobgenie/internal/auth"
	"jobgenie/internal/billing"
	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/documents"
	"jobgenie/internal/jobs"
	"jobgenie/internal/linkedin"
	"jobgenie/internal/llm"
	"jobgenie/internal/profile"
	"jobgenie/internal/quota"
	"jobgenie/internal/resources"
	"jobgenie/internal/skills"
	"jobgenie/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("db", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer queue.Close()

	objects, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	authService, err := auth.NewAuthServiceFromFiles(
		cfg.Auth.PrivateKeyPath,
		cfg.Auth.PublicKeyPath,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	model, err := llm.NewClient(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("init ai client: %v", err)
	}
	defer model.Close()

	var provider resources.Provider = resources.DisabledProvider{}
	if cfg.YouTube.APIKey != "" {
		yt, err := resources.NewYouTubeProvider(ctx, cfg.YouTube.APIKey)
		if err != nil {
			log.Fatalf("init youtube provider: %v", err)
		}
		provider = yt
	} else {
		logger.Warn("youtube api key missing, learning resources come from cache only")
	}
	resourceCache := resources.NewCache(
		resources.NewRedisStore(redisClient, cfg.Resources.Retention),
		provider,
		resources.WithTTL(cfg.Resources.TTL),
		resources.WithLogger(logger),
	)

	gate := quota.NewGate(db)
	profiles := profile.NewService(db)
	savedJobs := jobs.NewStore(db)

	svc := api.Services{
		DB:        db,
		Redis:     redisClient,
		Queue:     queue,
		Auth:      authService,
		Sessions:  auth.NewSessionNotifier(redisClient),
		Profiles:  profiles,
		Objects:   objects,
		Scanner:   api.NewClamdScanner(cfg.Clamd.Address),
		JobSearch: jobs.NewAdzunaClient(cfg.Adzuna.AppID, cfg.Adzuna.AppKey, cfg.Adzuna.Country, logger),
		SavedJobs: savedJobs,
		Skills:    skills.NewStore(db),
		Resources: resourceCache,
		Documents: documents.NewService(documents.NewStore(db), gate, profiles, savedJobs, model, queue, objects, logger),
		Quota:     gate,
		LinkedIn:  linkedin.NewOptimizer(model),
		Billing: billing.NewService(db,
			billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
			gate, cfg.Stripe, logger),
	}

	router := api.NewRouter(cfg.API.Origins(), logger)
	api.RegisterRoutes(router, cfg, svc, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
}
