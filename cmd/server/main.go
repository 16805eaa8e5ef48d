package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/adapters/http"
	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/adapters/postgres"
	redisRepo "github.com/lengolf/chat-inbox/internal/adapters/redis"
	"github.com/lengolf/chat-inbox/internal/adapters/webpush"
	"github.com/lengolf/chat-inbox/internal/config"
	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/events"
	"github.com/lengolf/chat-inbox/internal/scheduler"
	"github.com/lengolf/chat-inbox/internal/service"
	"github.com/lengolf/chat-inbox/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is an optimization for dedup; the unique index still guards duplicates without it
	var eventCache core.EventCache
	if rdb, err := connectRedis(ctx, cfg); err != nil {
		log.Warn("redis unavailable, dedup falls back to the database", zap.Error(err))
	} else {
		defer rdb.Close()
		eventCache = redisRepo.NewRepository(rdb, cfg.DedupTTL)
		log.Info("redis connection established")
	}

	// Connect to PostgreSQL
	postgresRepo, err := postgres.NewRepository(cfg.DBURL)
	if err != nil {
		log.Fatal("failed to initialize postgres repository", zap.Error(err))
	}
	if cfg.AppEnv != "production" {
		if err := postgresRepo.AutoMigrate(); err != nil {
			log.Fatal("failed to migrate schema", zap.Error(err))
		}
	}
	log.Info("postgres connection established")

	graphClient := meta.NewClient(cfg.MetaGraphBaseURL, cfg.MetaGraphVersion, cfg.MetaPageAccessToken, cfg.HTTPClientTimeout)

	var pushSender core.PushSender
	vapidPublicKey := ""
	if cfg.PushEnabled() {
		sender, err := webpush.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, cfg.PushTTLSeconds, cfg.HTTPClientTimeout)
		if err != nil {
			log.Fatal("failed to initialize push sender", zap.Error(err))
		}
		pushSender = sender
		vapidPublicKey = sender.PublicKey()
	}

	eventBus := events.NewEventBus()

	notifier := service.NewNotifier(
		postgresRepo.SubscriptionRepository(),
		pushSender,
		cfg.InboxBaseURL,
		cfg.HTTPClientTimeout,
		logger.Named(log, "notifier"),
	)

	ingestService := service.NewIngestService(
		postgresRepo.InboxStore(),
		eventCache,
		graphClient,
		notifier,
		eventBus,
		postgresRepo.WebhookLogRepository(),
		logger.Named(log, "ingest"),
	)

	inboxService := service.NewInboxService(
		postgresRepo.InboxReader(),
		postgresRepo.SubscriptionRepository(),
		eventBus,
		vapidPublicKey,
		cfg.JWTSecret,
	)

	maintenance := service.NewMaintenanceService(
		postgresRepo.MaintenanceRepository(),
		cfg.ConversationIdleDays,
		cfg.WebhookLogRetentionDays,
		logger.Named(log, "maintenance"),
	)
	cronScheduler := scheduler.NewScheduler(cfg.MaintenanceCron, maintenance, logger.Named(log, "scheduler"))
	if err := cronScheduler.Start(); err != nil {
		log.Error("maintenance jobs disabled", zap.Error(err))
	} else {
		defer cronScheduler.Stop()
	}

	app := http.NewRouter(
		http.NewHandler(ingestService, cfg.MetaVerifyToken, cfg.MetaAppSecret, cfg.WebhookProcessTimeout, logger.Named(log, "webhook")),
		http.NewInboxHandler(inboxService, logger.Named(log, "inbox")),
		inboxService,
		logger.Named(log, "http"),
	)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.AppPort)
	log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
	if err := app.Listen(addr); err != nil {
		log.Error("server stopped", zap.Error(err))
	}

	// Let in-flight push fan-outs finish before exiting
	notifier.Wait()
	log.Info("server exited")
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		redisOpts.Password = cfg.RedisPassword
	}

	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}
